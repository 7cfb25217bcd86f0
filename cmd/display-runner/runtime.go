package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Swind/go-display-runner/core"
	"github.com/Swind/go-display-runner/display/headless"
	"github.com/Swind/go-display-runner/display/terminal"
	"github.com/Swind/go-display-runner/display/x11"
	promexp "github.com/Swind/go-display-runner/observability/prometheus"
)

// runtimeEnv is everything a command needs to drive windows.
type runtimeEnv struct {
	svc     *core.Service
	windows *windowSet
	log     core.Logger

	// quit is closed when the user asks the backend to exit
	quit     chan struct{}
	quitOnce sync.Once

	poller  *promexp.SnapshotPoller
	httpSrv *http.Server
}

// startRuntime builds the backend selected in cfg, the service around it and,
// if configured, the metrics endpoint.
func startRuntime(ctx context.Context, name string) (*runtimeEnv, error) {
	coreCfg, err := cfg.CoreConfig(name)
	if err != nil {
		return nil, err
	}
	env := &runtimeEnv{
		log:  core.NewSlogLogger(logger),
		quit: make(chan struct{}),
	}
	coreCfg.Logger = env.log

	var reg *prom.Registry
	if cfg.Metrics.Listen != "" {
		reg = prom.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		exporter, err := promexp.NewMetricsExporter(cfg.Metrics.Namespace, reg, promexp.ExporterOptions{})
		if err != nil {
			return nil, fmt.Errorf("metrics exporter: %w", err)
		}
		coreCfg.Metrics = exporter

		env.poller, err = promexp.NewSnapshotPoller(cfg.Metrics.Namespace, reg, time.Second)
		if err != nil {
			return nil, fmt.Errorf("snapshot poller: %w", err)
		}
	}

	env.svc = core.NewService(env.newDisplay(), coreCfg)
	env.windows = newWindowSet(env.svc)

	if reg != nil {
		env.poller.AddService(name, env.svc)
		env.poller.Start(ctx)
		env.serveMetrics(reg)
	}
	return env, nil
}

func (e *runtimeEnv) newDisplay() core.Display {
	switch cfg.Backend {
	case "terminal":
		return terminal.New(terminal.Options{Logger: e.log, OnQuit: e.requestQuit})
	case "headless":
		return headless.New()
	default:
		return x11.New(x11.Options{
			Logger: e.log,
			// Closing a window from the WM closes that source
			OnCloseRequest: func(name string) { e.windows.close(name) },
		})
	}
}

func (e *runtimeEnv) requestQuit() {
	e.quitOnce.Do(func() { close(e.quit) })
}

func (e *runtimeEnv) serveMetrics(reg *prom.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	e.httpSrv = &http.Server{
		Addr:              cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := e.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", cfg.Metrics.Listen, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", cfg.Metrics.Listen)
}

// wait blocks until ctx is done or the backend asks to quit.
func (e *runtimeEnv) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-e.quit:
	}
}

// shutdown stops the service and the metrics endpoint, then logs a summary.
func (e *runtimeEnv) shutdown() {
	e.windows.closeAll()
	e.svc.Stop()

	if e.poller != nil {
		e.poller.Stop()
	}
	if e.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.httpSrv.Shutdown(ctx)
	}

	stats := e.svc.Stats()
	logger.Info("display stopped",
		"applied", humanize.Comma(int64(stats.Applied)),
		"failed", stats.Failed,
		"rejected", stats.Rejected,
		"coalesced", stats.Coalesced,
		"pumps", humanize.Comma(int64(stats.Pumps)),
	)
}
