// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - serve-mock command: a local ADK-compatible backend.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/server"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/telemetry"
)

// serveOptions are the serve-mock flags.
type serveOptions struct {
	Addr       string
	Apps       []string
	ChunkDelay time.Duration
	RateLimit  int
	Faults     server.Faults
	Metrics    bool
}

func newServeMockCmd(a *App) *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Run a local echo agent server",
		Long: `Run a local server that speaks the ADK HTTP API and echoes every
message back. Faults can be injected to exercise retries and rate limits.`,
		Example: `  adkchat serve-mock
  adkchat serve-mock --addr 127.0.0.1:9000 --apps helper,planner
  adkchat serve-mock --rate-limit-runs 2 --retry-after 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServeMock(cmd.Context(), cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Addr, "addr", server.DefaultAddr, "listen address")
	f.StringSliceVar(&opts.Apps, "apps", nil, "app names to serve (default "+model.DefaultAppName+")")
	f.DurationVar(&opts.ChunkDelay, "chunk-delay", server.DefaultChunkDelay, "delay between streamed chunks")
	f.IntVar(&opts.RateLimit, "rate-limit", 0, "requests per minute per client IP (0 disables)")
	f.IntVar(&opts.Faults.RateLimitRuns, "rate-limit-runs", 0, "answer this many run calls with 429")
	f.StringVar(&opts.Faults.RetryAfter, "retry-after", "", "Retry-After value sent with injected 429s")
	f.IntVar(&opts.Faults.FailRuns, "fail-runs", 0, "answer this many run calls with --fail-status")
	f.IntVar(&opts.Faults.FailStatus, "fail-status", 503, "status for injected failures")
	f.DurationVar(&opts.Faults.Latency, "latency", 0, "delay before every run call is answered")
	f.BoolVar(&opts.Metrics, "metrics", false, "serve Prometheus metrics on /metrics")
	return cmd
}

func (a *App) runServeMock(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	srv := server.NewServer(opts.Addr).
		WithChunkDelay(opts.ChunkDelay).
		WithFaults(opts.Faults).
		WithLogger(a.logger)
	if len(opts.Apps) > 0 {
		srv = srv.WithApps(opts.Apps...)
	}
	if opts.RateLimit > 0 {
		srv = srv.WithRateLimit(server.NewRateLimiter(opts.RateLimit, time.Minute))
	}
	if opts.Metrics {
		m := a.metrics
		if m == nil {
			m = telemetry.New()
		}
		srv = srv.WithMetrics(m)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Mock ADK server on http://%s\n", RenderStatus("ok"), srv.Addr())
	apps := opts.Apps
	if len(apps) == 0 {
		apps = []string{model.DefaultAppName}
	}
	fmt.Fprintf(out, "  %s%s\n", RenderLabel("Apps:", 10), strings.Join(apps, ", "))
	fmt.Fprintln(out, DimStyle.Render("  Press Ctrl+C to stop."))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return NewCommandError("serve-mock", "listen", opts.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return NewCommandError("serve-mock", "shutdown", "server did not stop cleanly", err)
	}
	stats := srv.Stats().GetStats()
	fmt.Fprintln(out, SummaryStyle.Render(fmt.Sprintf("Served %d runs (%d streamed), created %d sessions.",
		stats.Runs+stats.StreamRuns, stats.StreamRuns, stats.SessionsCreated)))
	return nil
}
