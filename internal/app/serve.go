package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rbright/hark/internal/asr"
	"github.com/rbright/hark/internal/cli"
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/engine/remote"
	"github.com/rbright/hark/internal/metrics"
	"github.com/samber/do/v2"
	"golang.org/x/sync/errgroup"
)

const metricsShutdownTimeout = 5 * time.Second

// withMetricsServer runs fn while serving /metrics when metrics.addr is set.
// The server stops once fn returns; a server failure cancels fn.
func (r Runner) withMetricsServer(ctx context.Context, inj injector, fn func(context.Context) error) int {
	addr := strings.TrimSpace(configFrom(inj).Metrics.Addr)
	if addr == "" {
		return r.exitCode(fn(ctx))
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return r.exitCode(fmt.Errorf("listen for metrics on %s: %w", addr, err))
	}
	srv := metrics.NewServer(addr, do.MustInvoke[*prometheus.Registry](inj), loggerFrom(inj))

	g, gctx := errgroup.WithContext(ctx)
	var runErr error
	g.Go(func() error {
		return srv.Serve(lis)
	})
	g.Go(func() error {
		runErr = fn(gctx)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && runErr == nil {
		runErr = fmt.Errorf("metrics server: %w", err)
	}
	return r.exitCode(runErr)
}

func (r Runner) exitCode(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	return 1
}

// commandServe hosts the configured local recognizer for remote clients
// until ctx is cancelled.
func (r Runner) commandServe(ctx context.Context, parsed cli.Parsed, inj injector) error {
	cfg := configFrom(inj)
	logger := loggerFrom(inj)
	mode := engine.Mode(parsed.Mode)

	rec, symbols, err := asr.OpenEngine(ctx, cfg, mode, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rec.Close() }()

	addr := parsed.Listen
	if addr == "" {
		addr = cfg.Engine.Listen
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := remote.NewServer(rec, remote.ServerOptions{
		Mode:    mode,
		Symbols: symbols,
		Logger:  logger,
		Metrics: metricsFrom(inj),
	})
	fmt.Fprintf(r.Stdout, "serving %s recognizer on %s\n", mode, lis.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		srv.Stop()
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
