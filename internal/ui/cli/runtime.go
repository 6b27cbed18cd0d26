// Package cli is the vinec command line: build, dev and history.
package cli

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	coreapp "vinec/internal/core/app"
	"vinec/internal/core/config"
	"vinec/internal/data/history"
	"vinec/internal/shared/observability"
)

func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "vinec v%s\n", versionString)
		return 0
	}

	cleanupLogs := configureLogging(opts.ui, opts.verbose, stderr)
	defer cleanupLogs()

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to detect working directory", "error", err)
		return 1
	}

	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	applyOptions(opts, cfg)

	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		slog.Error("failed to resolve runtime paths", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.command {
	case commandBuild:
		return runBuild(ctx, cfg, paths, stdout)
	case commandDev:
		return runDev(ctx, cfg, cfgPath, paths, opts, stdout)
	case commandHistory:
		return runHistory(cfg, paths, opts, stdout)
	}
	return 2
}

// applyOptions lets command flags and positional paths override the file.
func applyOptions(opts cliOptions, cfg *config.Config) {
	if len(opts.args) > 0 {
		cfg.Watch.Paths = append([]string(nil), opts.args...)
	}
	if opts.outDir != "" {
		cfg.Build.OutDir = opts.outDir
	}
}

// loadConfig reads path, or vinec.toml in the detected project root when
// path is empty. Without a file the defaults apply.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	if strings.TrimSpace(path) != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	root, err := config.DetectProjectRoot([]string{cwd})
	if err != nil {
		return nil, "", err
	}
	candidate := filepath.Join(root, config.DefaultFile)
	cfg, err := config.Load(candidate)
	if err == nil {
		return cfg, candidate, nil
	}
	if os.IsNotExist(err) {
		slog.Debug("no config file found, using defaults", "looked_for", candidate)
		return config.DefaultConfig(), "", nil
	}
	return nil, "", err
}

func newApp(cfg *config.Config, paths config.ResolvedPaths, explain bool) (*coreapp.App, error) {
	opts, err := coreapp.CompilerOptions(cfg, paths)
	if err != nil {
		return nil, err
	}
	opts.Explain = explain
	return coreapp.NewWithOptions(cfg, paths, opts), nil
}

func runBuild(ctx context.Context, cfg *config.Config, paths config.ResolvedPaths, stdout io.Writer) int {
	a, err := newApp(cfg, paths, false)
	if err != nil {
		slog.Error("failed to initialize compiler", "error", err)
		return 1
	}

	files, err := coreapp.ScanDirectories(paths.WatchPaths, cfg.Watch.Exclude.Dirs, cfg.Watch.Exclude.Files)
	if err != nil {
		slog.Error("scan failed", "error", err)
		return 1
	}
	inputs, err := coreapp.ReadInputs(files)
	if err != nil {
		slog.Error("failed to read sources", "error", err)
		return 1
	}

	res, err := a.Build(ctx, inputs)
	coreapp.PrintDiagnostics(stdout, res.Diagnostics)
	if err != nil {
		slog.Error("build failed", "error", err)
		return 1
	}
	coreapp.PrintBuildSummary(stdout, paths.ProjectRoot, res)
	if res.Diagnostics.HasErrors() || len(res.Failed) > 0 {
		return 1
	}
	return 0
}

func runDev(ctx context.Context, cfg *config.Config, cfgPath string, paths config.ResolvedPaths, opts cliOptions, stdout io.Writer) int {
	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(ctx, cfg.Tracing.OTLPEndpoint, cfg.Tracing.ServiceName, true)
		if err != nil {
			slog.Error("failed to start tracing", "error", err)
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	a, err := newApp(cfg, paths, opts.explain)
	if err != nil {
		slog.Error("failed to initialize compiler", "error", err)
		return 1
	}
	defer a.Close()

	if cfg.History.Enabled {
		store, err := history.OpenWithTimeout(paths.HistoryPath, cfg.History.BusyTimeout)
		if err != nil {
			slog.Warn("history disabled", "path", paths.HistoryPath, "error", err, "corrupt", history.IsCorruptError(err))
		} else {
			defer store.Close()
			writer := coreapp.NewHistoryWriter(store, cfg.Cache.QueueCapacity, cfg.History.Retention)
			a.AddPublisher(writer)
			writer.Start()
			defer func() {
				dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := writer.Close(dctx); err != nil {
					slog.Warn("history drain incomplete", "error", err)
				}
			}()
		}
	}

	if cfg.Server.Enabled {
		hub := coreapp.NewHub(a.SessionID, cfg.Server.MaxClients, cfg.Server.ConnectRate)
		a.AddPublisher(hub)
		srv := coreapp.NewServer(cfg.Server.Address, a, hub)
		if err := srv.Start(); err != nil {
			slog.Error("failed to start dev server", "error", err)
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(sctx)
		}()
	}

	if cfgPath != "" {
		cw := config.NewWatcher(cfgPath, a.ApplyConfig)
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config hot reload unavailable", "error", err)
		} else {
			defer cw.Stop()
		}
	}

	if !opts.ui {
		a.SetUpdateHandler(func(u coreapp.Update) {
			fmt.Fprintln(stdout, coreapp.Describe(u.Event))
			coreapp.PrintDiagnostics(stdout, u.Diagnostics)
		})
		if err := a.Run(ctx); err != nil {
			slog.Error("dev session failed", "error", err)
			return 1
		}
		return 0
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()
	if err := runUI(ctx, a); err != nil {
		slog.Error("failed to run UI", "error", err)
		return 1
	}
	cancel()
	if err := <-errCh; err != nil {
		slog.Error("dev session failed", "error", err)
		return 1
	}
	return 0
}

func runHistory(cfg *config.Config, paths config.ResolvedPaths, opts cliOptions, stdout io.Writer) int {
	since, err := parseSince(opts.since, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}
	if _, err := os.Stat(paths.HistoryPath); os.IsNotExist(err) {
		fmt.Fprintln(stdout, "no history recorded yet")
		return 0
	}

	store, err := history.OpenWithTimeout(paths.HistoryPath, cfg.History.BusyTimeout)
	if err != nil {
		if history.IsCorruptError(err) {
			slog.Error("history database is corrupt, remove it to start over", "path", paths.HistoryPath, "error", err)
		} else {
			slog.Error("failed to open history", "path", paths.HistoryPath, "error", err)
		}
		return 1
	}
	defer store.Close()

	file := opts.file
	if file != "" && !filepath.IsAbs(file) {
		file = config.ResolveRelative(paths.ProjectRoot, file)
	}
	events, err := store.LoadFiltered(history.Filter{Since: since, FileID: file, Limit: opts.limit})
	if err != nil {
		slog.Error("failed to load history", "error", err)
		return 1
	}
	if len(events) == 0 {
		fmt.Fprintln(stdout, "no events in range")
		return 0
	}

	for _, e := range events {
		fmt.Fprintf(stdout, "%s  %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), coreapp.Describe(e))
	}
	summary, err := history.Summarize(events, opts.top)
	if err != nil {
		slog.Error("failed to summarize history", "error", err)
		return 1
	}
	fmt.Fprintln(stdout)
	coreapp.PrintSummary(stdout, summary)
	return 0
}

// parseSince accepts a duration back from now, RFC3339 or a date.
func parseSince(value string, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, nil
	}

	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return now.Add(-d).UTC(), nil
	}

	rfc3339, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return rfc3339.UTC(), nil
	}

	dateOnly, err := time.Parse("2006-01-02", raw)
	if err == nil {
		return dateOnly.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("--since must be a duration, RFC3339 or YYYY-MM-DD, got %q", value)
}

func configureLogging(uiMode, verbose bool, stderr io.Writer) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := stderr
	closeFn := func() {}
	if uiMode {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
				fmt.Fprintf(stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
			} else {
				f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
				if err == nil {
					output = f
					closeFn = func() { _ = f.Close() }
				} else {
					fmt.Fprintf(stderr, "warning: failed to open log file %s: %v\n", logPath, err)
				}
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return closeFn
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "vinec", "vinec.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "vinec", "vinec.log")
	}

	return "vinec.log"
}
