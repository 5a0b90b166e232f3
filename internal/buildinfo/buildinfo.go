// Package buildinfo holds the build metadata of the lazystatus binary. The
// linker fills the variables in cmd/lazystatus, which forwards them with Set.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Info describes one build.
type Info struct {
	Version string
	Commit  string
	Date    string
	BuiltBy string
}

var current = Info{
	Version: "dev",
	Commit:  "none",
	Date:    "unknown",
	BuiltBy: "unknown",
}

// Set stores linker-provided metadata.
func Set(version, commit, date, builtBy string) {
	current = Info{Version: version, Commit: commit, Date: date, BuiltBy: builtBy}
}

// Get returns the current metadata.
func Get() Info { return current }

// Version returns the build version string.
func Version() string { return current.Version }

// Enrich replaces placeholder values with what the Go runtime recorded:
// the VCS revision for the commit and the toolchain for the builder.
func Enrich() {
	if current.Commit != "none" && current.BuiltBy != "unknown" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if current.Commit == "none" {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				current.Commit = setting.Value
			case "vcs.time":
				if current.Date == "unknown" {
					current.Date = setting.Value
				}
			}
		}
	}
	if current.BuiltBy == "unknown" {
		current.BuiltBy = info.GoVersion
	}
}

// String renders the metadata for --version.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("%s (commit %s, built %s by %s)", i.Version, commit, i.Date, i.BuiltBy)
}
