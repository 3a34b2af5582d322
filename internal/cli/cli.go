// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Root command, global flags and shared wiring for adkchat.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/config"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/lifecycle"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/logging"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/orchestrator"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/prefs"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/store"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/telemetry"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Annotation keys read by the root command before a subcommand runs.
const (
	// annotLogToFile sends logs to the log file instead of stderr. Set by
	// commands that own the terminal.
	annotLogToFile = "adkchat/log-to-file"
	// annotNoConfig skips config loading.
	annotNoConfig = "adkchat/no-config"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

// globalFlags holds the persistent flags. Server flags override the config
// file and environment.
type globalFlags struct {
	ConfigPath   string
	APIURL       string
	AppName      string
	UserID       string
	SessionID    string
	ResponseMode string
	LogLevel     string
}

// App is the state shared by every command of one invocation.
type App struct {
	flags globalFlags
	root  *cobra.Command

	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	metrics *telemetry.Metrics

	closers []io.Closer
}

// NewRootCmd builds the adkchat command tree.
func NewRootCmd() *cobra.Command {
	_, root := newRoot()
	return root
}

func newRoot() (*App, *cobra.Command) {
	app := &App{logger: logging.Discard()}

	root := &cobra.Command{
		Use:   "adkchat",
		Short: "Terminal chat client for ADK agent servers",
		Long: `adkchat talks to an ADK agent server: it resolves a session, sends
messages and shows the agent's replies, streamed or in one piece.

Run without a command to open the full-screen chat.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		Annotations:   map[string]string{annotLogToFile: "true"},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			app.Close()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	app.root = root

	pf := root.PersistentFlags()
	pf.StringVarP(&app.flags.ConfigPath, "config", "c", "", "config file (default: first of config.toml, config.yaml, config.json in ~/.adkchat)")
	pf.StringVar(&app.flags.APIURL, "api-url", "", "ADK server base URL")
	pf.StringVar(&app.flags.AppName, "app-name", "", "agent application name")
	pf.StringVar(&app.flags.UserID, "user-id", "", "user identifier")
	pf.StringVar(&app.flags.SessionID, "session-id", "", "session identifier")
	pf.StringVar(&app.flags.ResponseMode, "response-mode", "", "stream or standard")
	pf.StringVar(&app.flags.LogLevel, "log-level", "", "debug, info, warn or error")

	tui := newTUICmd(app)
	root.Flags().AddFlagSet(tui.Flags())
	root.RunE = tui.RunE

	root.AddCommand(
		tui,
		newChatCmd(app),
		newAskCmd(app),
		newAppsCmd(app),
		newHealthCmd(app),
		newSessionCmd(app),
		newConfigCmd(app),
		newServeMockCmd(app),
	)
	return app, root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, root := newRoot()
	err := root.ExecuteContext(ctx)
	// PersistentPostRun is skipped when a command fails.
	app.Close()
	if err != nil {
		DisplayError(os.Stderr, err)
		stop()
		os.Exit(GetExitCode(err))
	}
}

// =============================================================================
// SETUP
// =============================================================================

// setup loads the config, applies flags and builds the logger.
func (a *App) setup(cmd *cobra.Command) error {
	if cmd.Annotations[annotNoConfig] == "true" {
		return nil
	}
	if err := a.loadConfig(); err != nil {
		return err
	}

	logOpts := logging.Options{Level: a.cfg.Logging.Level, Format: a.cfg.Logging.Format}
	if cmd.Annotations[annotLogToFile] == "true" {
		path, err := a.cfg.LogFile()
		if err != nil {
			return err
		}
		logOpts.Sink = "file:" + path
	}
	logger, closer, err := logging.New(logOpts)
	if err != nil {
		return NewCommandError(cmd.Name(), "setup", "cannot open log", err)
	}
	a.logger = logger
	a.closers = append(a.closers, closer)
	slog.SetDefault(logger)

	if a.cfg.Metrics.Enabled {
		a.metrics = telemetry.New()
		a.serveMetrics(cmd.Context())
	}
	return nil
}

// loadConfig reads the config file and applies the server flags.
func (a *App) loadConfig() error {
	var (
		cfg *config.Config
		err error
	)
	if a.flags.ConfigPath != "" {
		cfg, err = config.LoadFromPath(a.flags.ConfigPath)
		if err != nil {
			return err
		}
		a.cfgPath = a.flags.ConfigPath
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return err
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n", WarningStyle.Render("[WARN]"), err)
		}
		if a.cfgPath, err = config.FindConfigFile(); err != nil {
			return err
		}
	}

	if err := a.applyFlags(cfg); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// applyFlags writes explicitly set flags into cfg and validates the result.
func (a *App) applyFlags(cfg *config.Config) error {
	for _, f := range []struct {
		name string
		val  string
		dst  *string
	}{
		{"api-url", a.flags.APIURL, &cfg.Server.APIURL},
		{"app-name", a.flags.AppName, &cfg.Server.AppName},
		{"user-id", a.flags.UserID, &cfg.Server.UserID},
		{"session-id", a.flags.SessionID, &cfg.Server.SessionID},
		{"response-mode", a.flags.ResponseMode, &cfg.Chat.ResponseMode},
		{"log-level", a.flags.LogLevel, &cfg.Logging.Level},
	} {
		if a.flagChanged(f.name) {
			*f.dst = f.val
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (a *App) flagChanged(name string) bool {
	if a.root == nil {
		return false
	}
	f := a.root.PersistentFlags().Lookup(name)
	return f != nil && f.Changed
}

// serveMetrics exposes /metrics until ctx is done.
func (a *App) serveMetrics(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics listener stopped", "addr", a.cfg.Metrics.Addr, "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.logger.Info("metrics enabled", "addr", a.cfg.Metrics.Addr)
}

// Close releases everything opened during setup, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

// =============================================================================
// WIRING
// =============================================================================

// newClient builds the ADK transport from the transport settings.
func (a *App) newClient() (*adk.Client, error) {
	c, err := adk.NewClient(a.cfg.Server.APIURL)
	if err != nil {
		return nil, NewCommandError("client", "create", "bad server address", err)
	}
	return c.WithTimeout(a.cfg.Timeout()).
		WithMaxRetries(a.cfg.Transport.MaxRetries).
		WithBackoff(a.cfg.RetryBaseDelay(), a.cfg.RetryMaxDelay()).
		WithRateLimitFallback(a.cfg.RateLimitFallback()).
		WithUserAgent(a.cfg.Transport.UserAgent).
		WithLogger(a.logger).
		WithMetrics(a.metrics), nil
}

// openStore creates a store seeded from the config. With persist set the
// configured prefs backend keeps config, mode and title across runs.
func (a *App) openStore(persist bool) (*store.Store, error) {
	opts := []store.Option{
		store.WithInitialConfig(a.cfg.ChatConfig()),
		store.WithLogger(a.logger),
	}
	if persist {
		spec, err := a.cfg.StorageSpec()
		if err != nil {
			return nil, err
		}
		kv, err := prefs.Open(spec)
		if err != nil {
			return nil, NewCommandError("storage", "open", spec, err)
		}
		a.closers = append(a.closers, kv)
		opts = append(opts, store.WithPersistence(kv))
	}
	return store.New(opts...), nil
}

// orchestratorOptions returns the send limiter, metrics and logger options.
func (a *App) orchestratorOptions() []orchestrator.Option {
	return []orchestrator.Option{
		orchestrator.WithLimiter(adk.NewSendLimiter(a.cfg.Chat.SendLimit, a.cfg.SendWindow())),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithLogger(a.logger),
	}
}

// propsFor turns cfg into component attributes and then props. Values
// left at their built-in defaults are dropped unless set by a flag, so they
// do not override persisted preferences.
func (a *App) propsFor(cfg *config.Config) lifecycle.Props {
	def := config.Default()
	attrs := make(map[string]string)
	set := func(attr, flag, v, d string) {
		if v != d || a.flagChanged(flag) {
			attrs[attr] = v
		}
	}
	set(lifecycle.AttrAPIURL, "api-url", cfg.Server.APIURL, def.Server.APIURL)
	set(lifecycle.AttrAppName, "app-name", cfg.Server.AppName, def.Server.AppName)
	set(lifecycle.AttrUserID, "user-id", cfg.Server.UserID, def.Server.UserID)
	set(lifecycle.AttrSessionID, "session-id", cfg.Server.SessionID, def.Server.SessionID)
	set(lifecycle.AttrResponseMode, "response-mode", cfg.Chat.ResponseMode, def.Chat.ResponseMode)
	set(lifecycle.AttrMode, "", cfg.Chat.Mode, def.Chat.Mode)
	set(lifecycle.AttrTitle, "", cfg.Chat.Title, def.Chat.Title)
	return lifecycle.PropsFromAttributes(attrs)
}
