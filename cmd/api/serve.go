package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/famalink/telemed-api/internal/config"
	appointmenth "github.com/famalink/telemed-api/internal/handler/appointment"
	authh "github.com/famalink/telemed-api/internal/handler/auth"
	calendarh "github.com/famalink/telemed-api/internal/handler/calendar"
	consultationh "github.com/famalink/telemed-api/internal/handler/consultation"
	doctorh "github.com/famalink/telemed-api/internal/handler/doctor"
	"github.com/famalink/telemed-api/internal/handler/health"
	patienth "github.com/famalink/telemed-api/internal/handler/patient"
	realtimeh "github.com/famalink/telemed-api/internal/handler/realtime"
	"github.com/famalink/telemed-api/internal/middleware"
	"github.com/famalink/telemed-api/internal/router"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	var runWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return serve(ctx, stop, cfg, runWorkers)
		},
	}
	cmd.Flags().BoolVar(&runWorkers, "workers", true,
		"also run the outbox relay and deliver notifications; disable on API-only replicas")
	return cmd
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *config.Config, runWorkers bool) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	svcs, err := a.services(runWorkers)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if runWorkers {
		err = a.startWorkers(ctx, &wg, svcs)
	} else {
		// API replicas still refresh caches and push to their own sockets.
		err = a.subscribe(ctx, svcs)
	}
	if err != nil {
		return err
	}

	r := router.NewRouter(router.Config{
		ServiceName:    "telemed-api",
		Release:        cfg.IsProduction(),
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      rate.Limit(cfg.RateLimit.RPS),
		RateBurst:      cfg.RateLimit.Burst,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, middleware.NewAuthMiddleware(svcs.auth), a.metrics, router.Handlers{
		Auth:         authh.NewHandler(svcs.auth),
		Appointment:  appointmenth.NewHandler(svcs.appointment, svcs.calendar, a.location),
		Calendar:     calendarh.NewHandler(svcs.calendar),
		Patient:      patienth.NewHandler(svcs.patient),
		Consultation: consultationh.NewHandler(svcs.consultation),
		Doctor:       doctorh.NewHandler(svcs.doctor),
		Health:       health.NewHandler(a.checks),
		Realtime:     realtimeh.NewHandler(a.hub),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Bool("workers", runWorkers).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	wg.Wait()

	log.Info().Msg("Server exited properly")
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
