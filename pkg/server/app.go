package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TrendScan/internal/domain/models"
	"TrendScan/internal/usecase"
	"TrendScan/pkg/config"
	xhttp "TrendScan/pkg/http"
	applogger "TrendScan/pkg/logger"
)

// App encapsulates the entire application lifecycle: the HTTP API, the
// scheduled scan loop, and graceful teardown of sink resources.
type App struct {
	cfg        *config.Config
	scans      *usecase.ScanOrchestrator
	handler    xhttp.Handler
	sinks      io.Closer
	httpServer *xhttp.Server
	l          *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	scans *usecase.ScanOrchestrator,
	handler xhttp.Handler,
	sinks io.Closer,
	l *applogger.Logger,
) *App {
	return &App{
		cfg:     cfg,
		scans:   scans,
		handler: handler,
		sinks:   sinks,
		l:       l,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	if a.cfg.Scan.ScheduleInterval > 0 {
		go a.scheduleLoop(ctx)
		a.l.Info("scheduled scans enabled",
			applogger.Duration("interval", a.cfg.Scan.ScheduleInterval),
			applogger.Strings("symbols", a.cfg.MarketData.Symbols),
		)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// ScanOnce runs a single batch scan with the configured defaults. Used by
// the one-shot CLI mode.
func (a *App) ScanOnce(ctx context.Context) (*models.ScanResult, error) {
	return a.scans.Scan(ctx, a.cfg.MarketData.Symbols, a.configuredParams())
}

func (a *App) configuredParams() models.ScanParams {
	return models.ScanParams{
		Degree:       a.cfg.Scan.Degree,
		KStd:         a.cfg.Scan.KStd,
		LookbackDays: a.cfg.Scan.LookbackDays,
		Interval:     a.cfg.Scan.Interval,
	}
}

// scheduleLoop runs a scan immediately, then on every tick until ctx ends.
func (a *App) scheduleLoop(ctx context.Context) {
	a.runScheduledScan(ctx)

	t := time.NewTicker(a.cfg.Scan.ScheduleInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.runScheduledScan(ctx)
		}
	}
}

func (a *App) runScheduledScan(ctx context.Context) {
	result, err := a.scans.Scan(ctx, a.cfg.MarketData.Symbols, a.configuredParams())
	if err != nil {
		a.l.Error("scheduled scan failed", applogger.Error(err))
		return
	}
	a.l.Info("scheduled scan complete",
		applogger.Int("signals", len(result.Signals)),
		applogger.Int("failures", len(result.Failures)),
	)
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.sinks != nil {
		if err := a.sinks.Close(); err != nil {
			a.l.Warn("sink close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
