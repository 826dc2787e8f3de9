package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clinickit/clinic-auth-api/internal/config"
	"github.com/clinickit/clinic-auth-api/internal/observability"
	"github.com/clinickit/clinic-auth-api/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App owns the HTTP server and the background janitor.
type App struct {
	cfg     *config.Config
	handler http.Handler
	janitor *service.Janitor
	obs     *observability.Runtime
	logger  *slog.Logger
}

func New(cfg *config.Config, handler http.Handler, janitor *service.Janitor, obs *observability.Runtime, logger *slog.Logger) *App {
	return &App{cfg: cfg, handler: handler, janitor: janitor, obs: obs, logger: logger}
}

// Run blocks until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", "addr", srv.Addr, "env", a.cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if a.janitor != nil {
		g.Go(func() error {
			a.janitor.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	if a.obs != nil {
		obsCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if obsErr := a.obs.Shutdown(obsCtx); obsErr != nil {
			a.logger.Error("observability shutdown", "error", obsErr)
		}
	}
	return err
}
