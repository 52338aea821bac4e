package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"MarineIntel/internal/config"
	"MarineIntel/internal/domain"
	"MarineIntel/internal/httpapi"
	"MarineIntel/internal/infrastructure/archive"
	"MarineIntel/internal/infrastructure/fetcher"
	"MarineIntel/internal/infrastructure/index"
	"MarineIntel/internal/infrastructure/llm"
	"MarineIntel/internal/infrastructure/scheduler"
	"MarineIntel/internal/infrastructure/state"
	"MarineIntel/internal/logging"
	"MarineIntel/internal/ports"
	"MarineIntel/internal/usecase"
)

// Application wires configuration to adapters, the engine, and lifecycle.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	engine  *usecase.Engine
	timers  *scheduler.Timers
	server  *http.Server
	store   *state.Store
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := state.Open(cfg.State.Path, cfg.State.SeenCap, cfg.State.SeenTail,
		baseLogger.With("component", "state"))
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	feeds := fetcher.NewFeedFetcher(nil, cfg.Fetch, baseLogger.With("component", "fetcher"))
	monitor := fetcher.NewRegulatoryMonitor(nil, cfg.Regulatory, cfg.Fetch.Timeout,
		baseLogger.With("component", "regulatory"))

	var generator ports.Generator
	if cfg.LLM.APIKey != "" {
		generator = llm.NewClient(cfg.LLM)
	}

	var notifier ports.IndexNotifier
	if cfg.Index.Endpoint != "" {
		notifier = index.NewNotifier(cfg.Index)
	}

	reports := archive.NewFS(cfg.Archive.Dir, cfg.Archive.FallbackDir)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Generator: generator,
		Archive:   reports,
		Notifier:  notifier,
		Logger:    baseLogger.With("component", "pipeline"),
	})

	sourcesPath := cfg.SourcesPath
	engine := usecase.NewEngine(usecase.EngineDeps{
		Store:       store,
		Sources:     func() ([]domain.Source, error) { return config.LoadSources(sourcesPath) },
		Feeds:       feeds,
		Monitor:     monitor,
		Pipeline:    pipeline,
		SourceDelay: cfg.Fetch.SourceDelay,
		Location:    cfg.Scheduler.Location(),
		Logger:      baseLogger.With("component", "engine"),
	})

	timers := scheduler.New(cfg.Scheduler, baseLogger.With("component", "scheduler"))

	api := httpapi.New(engine, reports, baseLogger.With("component", "httpapi"))
	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: api.Handler(),
	}

	return &Application{
		cfg:    cfg,
		logger: baseLogger,
		engine: engine,
		timers: timers,
		server: server,
		store:  store,
	}, nil
}

// Run restores state, starts both schedules and the control surface, and
// blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	a.engine.Restore(ctx)

	poll := func(time.Time) { a.engine.Poll(ctx) }
	report := func(at time.Time) {
		if err := a.engine.DailyReport(ctx, at); err != nil {
			a.logger.Error("daily report failed", "error", err)
		}
	}
	if err := a.timers.Start(ctx, poll, report); err != nil {
		return fmt.Errorf("start timers: %w", err)
	}

	go func() {
		a.logger.Info("control surface listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server stopped", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.server.Shutdown(shutdownCtx)
	_ = a.timers.Stop(shutdownCtx)
	a.engine.Drain()
	_ = a.store.Close()

	return nil
}
