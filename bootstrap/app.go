package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/analyticore/gatekit/breaker"
	"github.com/analyticore/gatekit/cache"
	"github.com/analyticore/gatekit/component"
	"github.com/analyticore/gatekit/config"
	apperrors "github.com/analyticore/gatekit/errors"
	"github.com/analyticore/gatekit/gateway"
	"github.com/analyticore/gatekit/logger"
	"github.com/analyticore/gatekit/observability"
	"github.com/analyticore/gatekit/registry"
	"github.com/analyticore/gatekit/server"
	"github.com/analyticore/gatekit/version"
)

// App is an assembled gatekit process. All fields are wired by New and
// safe to use until Run (or Shutdown) returns.
type App struct {
	Name    string
	Version string
	Cfg     *config.Config

	Logger     *logger.Logger
	Components *component.Registry

	Breakers *breaker.Manager
	Registry *registry.Registry
	Gateway  *gateway.Gateway
	Server   *server.Server

	shared         *cache.RedisStore
	collector      *observability.Collector
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider

	summary         *Summary
	gracefulTimeout time.Duration

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// New wires an App from the root configuration. The config is defaulted
// and validated first, so a zero Config yields a working development
// process.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg.Version == "" {
		cfg.Version = version.GetVersionInfo().Version
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := resolveOptions(opts)

	log := o.logger
	if log == nil {
		log = logger.New(&cfg.Logging, cfg.Name)
	}

	app := &App{
		Name:            cfg.Name,
		Version:         cfg.Version,
		Cfg:             cfg,
		Logger:          log,
		Components:      component.NewRegistry(log),
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	app.Breakers = breaker.NewManager(cfg.Breaker)
	app.Registry = registry.New(cfg.Registry, app.Breakers, log)

	if o.fallbackDefaults != nil {
		cfg.Gateway.FallbackDefaults = o.fallbackDefaults
	}
	app.Gateway = gateway.New(cfg.Gateway, app.Registry, app.Breakers, log)

	handler := o.handler
	if handler == nil {
		handler = apperrors.NewHandler(nil)
	}
	handler.OnAlert = func(rec apperrors.Record) {
		log.Error("alerting failure", logger.Fields(
			"category", rec.Category.String(),
			"source", rec.Source,
			"summary", rec.Summary,
		))
	}
	app.Gateway.SetHandler(handler)

	if cfg.Redis.Enabled {
		store, err := cache.NewRedisStore(cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: redis: %w", err)
		}
		app.shared = store
		app.Gateway.SetSharedCache(store)
	}

	if err := app.Components.Register(registry.NewMonitor(app.Registry)); err != nil {
		return nil, err
	}
	if err := app.Components.Register(gateway.NewPool(app.Gateway)); err != nil {
		return nil, err
	}

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, log)
		srv.ApplyMiddleware()
		srv.RegisterRoutes(server.Deps{
			ServiceName: cfg.Name,
			Components:  app.Components,
			Gateway:     app.Gateway,
			Registry:    app.Registry,
			Breakers:    app.Breakers,
		})
		app.Server = srv
		if err := app.Components.Register(server.NewComponent(srv)); err != nil {
			return nil, err
		}
	}

	app.summary = NewSummary(cfg.Name, cfg.Version)
	return app, nil
}

// RegisterService adds a backend to the dispatch pool. The returned
// descriptor carries the assigned ID.
func (a *App) RegisterService(ctx context.Context, desc registry.Descriptor, eng registry.Engine) (registry.Descriptor, error) {
	return a.Registry.Register(ctx, desc, eng)
}

// ReadyCheck verifies that every registered component reports healthy.
func (a *App) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status != component.StatusHealthy {
			detail := h.Name + "=" + string(h.Status)
			if h.Message != "" {
				detail += " (" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run executes the full lifecycle: start components, run hooks, block on
// a shutdown signal, then stop everything gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	a.WaitForSignal(ctx)
	return a.stop()
}

// RunTask runs a finite task with the full lifecycle around it. The task's
// context is canceled on SIGINT/SIGTERM; shutdown still runs afterwards.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("signal received, canceling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)
	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

// startup initializes telemetry, starts every component and runs the
// start/ready hooks.
func (a *App) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("starting", logger.Fields(
		"name", a.Name,
		"version", a.Version,
		"environment", a.Cfg.Environment,
	))

	mp, err := observability.InitMeter(ctx, a.Cfg.Metrics, a.Logger)
	if err != nil {
		return fmt.Errorf("bootstrap: metrics: %w", err)
	}
	a.meterProvider = mp

	tp, err := observability.InitTracer(ctx, a.Cfg.Tracing, a.Logger)
	if err != nil {
		return fmt.Errorf("bootstrap: tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("bootstrap: start components: %w", err)
	}

	if a.meterProvider != nil {
		collector, err := observability.NewCollector(
			observability.Meter("gatekit"), a.Gateway, a.Registry, a.Breakers)
		if err != nil {
			return fmt.Errorf("bootstrap: collector: %w", err)
		}
		a.collector = collector
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("bootstrap: start hook: %w", err)
	}

	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("ready check reported issues", logger.Fields("error", err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("bootstrap: ready hook: %w", err)
	}

	a.summary.SetStartupDuration(time.Since(start))
	a.summary.Display(ctx, a)
	return nil
}

// WaitForSignal blocks until SIGINT/SIGTERM or context cancellation.
func (a *App) WaitForSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("shutdown signal received", logger.Fields("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.Info("context canceled, shutting down")
	}
}

// Shutdown stops the process without waiting for a signal.
func (a *App) Shutdown(context.Context) error {
	return a.stop()
}

func (a *App) stop() error {
	a.Logger.Info("shutting down", logger.Fields("timeout", a.gracefulTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	record := func(what string, err error) {
		if err == nil {
			return
		}
		a.Logger.Error("shutdown step failed", logger.Fields("step", what, "error", err.Error()))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}

	record("stop hooks", runHooks(ctx, a.onStop))
	if a.collector != nil {
		record("collector", a.collector.Close())
	}
	record("components", a.Components.StopAll(ctx))
	if a.shared != nil {
		record("redis", a.shared.Close())
	}
	if a.meterProvider != nil {
		record("metrics", a.meterProvider.Shutdown(ctx))
	}
	if a.tracerProvider != nil {
		record("tracing", a.tracerProvider.Shutdown(ctx))
	}

	a.Logger.Info("shutdown complete")
	return shutdownErr
}
