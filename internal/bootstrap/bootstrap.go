package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	urfavecli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/chmouel/lazystatus/internal/app"
	"github.com/chmouel/lazystatus/internal/buildinfo"
	"github.com/chmouel/lazystatus/internal/config"
	"github.com/chmouel/lazystatus/internal/engine"
	"github.com/chmouel/lazystatus/internal/git"
	"github.com/chmouel/lazystatus/internal/log"
	"github.com/chmouel/lazystatus/internal/metrics"
)

// Run executes the command line described by args.
func Run(ctx context.Context, args []string) error {
	return NewCommand().Run(ctx, args)
}

// NewCommand returns the root command. Without a subcommand it starts the
// interactive client.
func NewCommand() *urfavecli.Command {
	buildinfo.Enrich()
	return &urfavecli.Command{
		Name:                  "lazystatus",
		Usage:                 "Live view of a git working tree status",
		Version:               buildinfo.Get().String(),
		EnableShellCompletion: true,
		Flags:                 globalFlags(),
		Commands: []*urfavecli.Command{
			watchCommand(),
			statusCommand(),
			stageCommand(),
			unstageCommand(),
		},
		Action: handleWatchAction,
	}
}

// session holds everything a command needs and releases it on Close.
type session struct {
	cfg         *config.AppConfig
	engine      *engine.Engine
	stopMetrics func()
}

func (s *session) Close() {
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			log.Warnf("closing engine: %v", err)
		}
	}
	if s.stopMetrics != nil {
		s.stopMetrics()
	}
	if err := log.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing debug log: %v\n", err)
	}
}

// openSession loads the configuration, sets up logging and metrics and
// creates the engine with the given threading affectors.
func openSession(cmd *urfavecli.Command, affectors ...engine.ThreadingAffector) (*session, error) {
	cfg, err := loadCLIConfig(cmd)
	if err != nil {
		_ = log.SetFile("")
		return nil, err
	}
	setupLogging(cfg)

	opts, err := app.EngineOptions(cfg)
	if err != nil {
		_ = log.Close()
		return nil, err
	}

	s := &session{cfg: cfg}
	if cfg.MetricsAddr != "" {
		s.stopMetrics = startMetricsServer(cfg.MetricsAddr)
	}
	opts.Affectors = append(opts.Affectors, affectors...)
	s.engine = engine.New(opts)
	log.L().Info("session started",
		zap.String("repo", cfg.RepoPath),
		zap.String("backend", cfg.Backend),
		zap.Stringer("threading", s.engine.Threading()),
	)
	return s, nil
}

// loadCLIConfig resolves the configuration for the working tree the command
// targets. The repository path comes from --repo, the configuration or the
// current directory, and is widened to the enclosing working tree root.
func loadCLIConfig(cmd *urfavecli.Command) (*config.AppConfig, error) {
	if name := cmd.String("theme"); name != "" && config.NormalizeThemeName(name) == "" {
		return nil, fmt.Errorf("unknown theme %q", name)
	}
	opts := config.LoadOptions{
		ConfigFile: cmd.String("config-file"),
		RepoPath:   cmd.String("repo"),
		Overrides:  cliOverrides(cmd),
	}
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	start := cfg.RepoPath
	if start == "" {
		if start, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	if start, err = filepath.Abs(start); err != nil {
		return nil, err
	}
	root, err := git.FindRoot(start)
	if err != nil {
		// the engine reports the invalid repository through its gate
		root = start
	}
	if root == cfg.RepoPath {
		return cfg, nil
	}

	opts.RepoPath = root
	cfg, err = config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.AppConfig) {
	if cfg.DebugLog == "" {
		// No debug log configured, discard any buffered logs
		_ = log.SetFile("")
	} else {
		path := cfg.DebugLog
		if expanded, err := config.ExpandPath(path); err == nil {
			path = expanded
		}
		if err := log.SetFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error opening debug log file %q: %v\n", path, err)
		}
	}
	log.SetLevel(cfg.LogLevel)
}

// startMetricsServer serves /metrics on addr and returns its shutdown func.
func startMetricsServer(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.L().Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.L().Error("metrics server error", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
