package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/vprompt/pkg/inspect"
	"github.com/vango-dev/vprompt/pkg/reconcile"
	"github.com/vango-dev/vprompt/pkg/telemetry"
)

func inspectCmd(a *app) *cobra.Command {
	var (
		addr    string
		metrics bool
		noStdin bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <tree>",
		Short: "Serve a live inspector for a tree document",
		Long: `Serve a live inspector for a tree document.

Every line read from stdin is pumped into the tree, which is then
reconciled. Each committed snapshot is pushed to websocket clients.

Endpoints:
  GET  /snapshot        current snapshot
  GET  /paths           node paths
  GET  /query?path=...  matching nodes
  GET  /prompt          rendered prompt
  POST /pump            pump the JSON request body
  GET  /ws              snapshot stream
  GET  /metrics         prometheus metrics (with --metrics)

Examples:
  tail -f build.log | vprompt inspect prompt.yaml
  vprompt inspect prompt.yaml --addr=:7070 --metrics --no-stdin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Inspect.Addr = addr
			}
			if metrics {
				a.cfg.Metrics.Enabled = true
			}
			return runInspect(cmd, a, args[0], !noStdin)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from vprompt.json)")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Serve prometheus metrics on /metrics")
	cmd.Flags().BoolVar(&noStdin, "no-stdin", false, "Do not pump stdin lines")

	return cmd
}

func runInspect(cmd *cobra.Command, a *app, path string, readStdin bool) error {
	var (
		opts     []reconcile.Option
		gatherer prometheus.Gatherer
	)
	if a.cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m := telemetry.New(
			telemetry.WithNamespace(a.cfg.Metrics.Namespace),
			telemetry.WithRegistry(reg),
		)
		opts = append(opts, reconcile.WithObserver(m))
		gatherer = reg
	}

	rcfg, err := a.rendererConfig(cmd, 0, "", "")
	if err != nil {
		return err
	}
	rec, err := a.reconciler(path, opts...)
	if err != nil {
		return err
	}

	srv := inspect.New(rec, inspect.Config{
		Logger:         a.logger,
		RendererConfig: rcfg,
		Gatherer:       gatherer,
		PipeName:       a.cfg.Inspect.Pipe,
	})
	defer srv.Close()

	ctx := cmd.Context()
	if _, err := srv.Reconcile(ctx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              a.cfg.Inspect.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// stdin reads cannot be interrupted, so the reader is not part of the
	// group and may outlive it until the process exits.
	if readStdin {
		go pumpLines(ctx, cmd.InOrStdin(), srv, a.logger)
	}

	success(cmd, "Inspector listening on http://%s", a.cfg.Inspect.Addr)
	return g.Wait()
}

// pumpLines pumps every line of r into the inspector until r is exhausted
// or ctx is done.
func pumpLines(ctx context.Context, r io.Reader, srv *inspect.Server, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if _, err := srv.Pump(ctx, scanner.Text()); err != nil {
			logger.Warn("pump failed", "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("stdin read failed", "error", err)
		return
	}
	logger.Debug("stdin closed")
}
