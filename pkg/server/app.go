package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "TrendSentry/internal/domain/repository"
	"TrendSentry/internal/engine"
	"TrendSentry/internal/service/telegram"
	"TrendSentry/internal/usecase"
	pkgch "TrendSentry/pkg/clickhouse"
	"TrendSentry/pkg/config"
	xhttp "TrendSentry/pkg/http"
	applogger "TrendSentry/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	manager   *engine.Manager
	collector *usecase.PriceCollector
	bot       *telegram.CommandBot
	store     domrepo.SignalStore
	events    domrepo.EventPublisher
	chClient  *pkgch.Client

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	manager *engine.Manager,
	collector *usecase.PriceCollector,
	bot *telegram.CommandBot,
	store domrepo.SignalStore,
	events domrepo.EventPublisher,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		manager:   manager,
		collector: collector,
		bot:       bot,
		store:     store,
		events:    events,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.store.Init(ctx); err != nil {
		return err
	}

	// Live price feed first so the monitor has data from its first cycle.
	if err := a.collector.Start(ctx); err != nil {
		a.log.Warn("price stream unavailable, monitor falls back to REST", applogger.Error(err))
	} else {
		a.log.Info("price collector started", applogger.Strings("symbols", a.cfg.Engine.Symbols))
	}

	if err := a.manager.Initialize(ctx); err != nil {
		return err
	}

	a.bot.Start(ctx)

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services in dependency order.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.manager.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("worker pool shutdown error", applogger.Error(err))
	}

	a.bot.Stop()

	if err := a.collector.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("price collector stop error", applogger.Error(err))
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("event publisher close error", applogger.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("signal store close error", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
