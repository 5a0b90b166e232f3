// Package bootstrap wires configuration, logging, metrics and the status
// engine behind the lazystatus command line.
package bootstrap

import (
	urfavecli "github.com/urfave/cli/v3"
)

// globalFlags returns all global flags for the application.
// Note: --version is provided automatically by urfave/cli via Command.Version
func globalFlags() []urfavecli.Flag {
	return []urfavecli.Flag{
		&urfavecli.StringFlag{
			Name:    "repo",
			Aliases: []string{"r"},
			Usage:   "Working tree to watch (defaults to the current directory)",
		},
		&urfavecli.StringFlag{
			Name:  "config-file",
			Usage: "Path to configuration file",
		},
		&urfavecli.StringSliceFlag{
			Name:    "config",
			Aliases: []string{"C"},
			Usage:   "Override config values (repeatable): --config=lazystatus.key=value",
		},
		&urfavecli.StringFlag{
			Name:    "theme",
			Aliases: []string{"t"},
			Usage:   "Override the UI theme",
		},
		&urfavecli.StringFlag{
			Name:  "debug-log",
			Usage: "Path to debug log file",
		},
		&urfavecli.StringFlag{
			Name:  "log-level",
			Usage: "Minimum log level: debug, info, warn or error",
		},
		&urfavecli.StringFlag{
			Name:  "backend",
			Usage: "Git backend: gogit or cli",
		},
		&urfavecli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address, e.g. :9090",
		},
	}
}

// flagOverrides maps global flags onto configuration keys. Flags are applied
// after --config values so they take precedence.
var flagOverrides = []struct {
	flag string
	key  string
}{
	{"backend", "backend"},
	{"debug-log", "debug_log"},
	{"log-level", "log_level"},
	{"metrics-addr", "metrics_addr"},
	{"theme", "theme"},
}

// cliOverrides collects --config values and the dedicated flags as
// key=value overrides.
func cliOverrides(cmd *urfavecli.Command) []string {
	overrides := append([]string{}, cmd.StringSlice("config")...)
	for _, o := range flagOverrides {
		if v := cmd.String(o.flag); v != "" {
			overrides = append(overrides, o.key+"="+v)
		}
	}
	return overrides
}
