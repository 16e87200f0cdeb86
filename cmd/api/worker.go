package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/famalink/telemed-api/internal/config"
	"github.com/famalink/telemed-api/internal/handler/health"
	"github.com/famalink/telemed-api/internal/middleware"
	internalworker "github.com/famalink/telemed-api/internal/worker"
	"github.com/famalink/telemed-api/pkg/messaging"
	"github.com/famalink/telemed-api/pkg/worker"
)

func newWorkerCmd(load func() (*config.Config, error)) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the outbox relay, outbox cleanup and notification delivery without the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			svcs, err := a.services(true)
			if err != nil {
				return err
			}

			var wg sync.WaitGroup
			if err := a.startWorkers(ctx, &wg, svcs); err != nil {
				return err
			}

			// Probes and metrics only; the worker serves no API.
			if cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}
			engine := gin.New()
			engine.Use(middleware.Recovery())
			health.NewHandler(a.checks).RegisterRoutes(engine)
			engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{})))

			srv := &http.Server{
				Addr:              addr,
				Handler:           engine,
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				log.Info().Str("addr", addr).Msg("Worker health server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("Worker health server failed")
					stop()
				}
			}()

			<-ctx.Done()
			log.Info().Msg("Shutting down worker")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Worker health server forced to shutdown")
			}
			wg.Wait()
			log.Info().Msg("Worker stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "health-addr", ":8081", "listen address for health and metrics")
	return cmd
}

// startWorkers launches the outbox processor, the outbox cleanup and the
// notification subscriber. They stop when ctx is done; wg tracks them.
func (a *app) startWorkers(ctx context.Context, wg *sync.WaitGroup, svcs *services) error {
	out := a.cfg.Outbox

	if out.Enabled {
		processor, err := worker.NewOutboxProcessor(a.repos.outbox, a.broker, worker.OutboxProcessorConfig{
			BatchSize:    out.BatchSize,
			PollInterval: out.PollInterval,
			MaxAttempts:  out.MaxAttempts,
			Channel:      out.Channel,
		}, a.log, a.metrics)
		if err != nil {
			return err
		}
		cleanup := internalworker.NewOutboxCleanupWorker(a.repos.outbox, out.Retention, out.CleanupInterval)

		wg.Add(2)
		go func() {
			defer wg.Done()
			processor.Start(ctx)
		}()
		go func() {
			defer wg.Done()
			cleanup.Start(ctx)
		}()
		log.Info().Str("channel", out.Channel).Msg("Outbox workers started")
	} else {
		log.Warn().Msg("Outbox relay disabled, appointment events stay pending")
	}

	return a.subscribe(ctx, svcs)
}

// subscribe feeds appointment events to the notification service.
func (a *app) subscribe(ctx context.Context, svcs *services) error {
	if err := svcs.notification.Start(ctx, messaging.NewBrokerAdapter(a.broker), a.cfg.Outbox.Channel); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", a.cfg.Outbox.Channel, err)
	}
	return nil
}
