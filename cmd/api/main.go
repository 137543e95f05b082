package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicdesk/scheduling/internal/api/router"
	"github.com/clinicdesk/scheduling/internal/app/bootstrap"
	"github.com/clinicdesk/scheduling/internal/appointments"
	"github.com/clinicdesk/scheduling/internal/availability"
	appconfig "github.com/clinicdesk/scheduling/internal/config"
	"github.com/clinicdesk/scheduling/internal/notify"
	"github.com/clinicdesk/scheduling/internal/observability/metrics"
	"github.com/clinicdesk/scheduling/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	loc := cfg.Location()

	pool := bootstrap.BuildPgxPool(ctx, cfg, logger, true)
	if pool != nil {
		defer pool.Close()
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)

	store := bootstrap.BuildStore(pool, logger)
	sequencer := bootstrap.BuildSequencer(redisClient, store)

	hours := availability.UniformWeek(cfg.BusinessOpen, cfg.BusinessClose, cfg.ClosedWeekdays)
	calc := availability.New(hours, cfg.DefaultDurationMins, cfg.MinBookingLead, loc)

	apptMetrics := metrics.NewAppointmentMetrics(nil)
	notifier := notify.NewLogNotifier(logger)

	svc := appointments.NewService(store, sequencer, calc, notifier, apptMetrics, logger, appointments.Defaults{
		DurationMins:        cfg.DefaultDurationMins,
		WalkInWaitMins:      cfg.WalkInWaitMins,
		PatientMinLead:      cfg.PatientMinLead,
		PatientMaxAheadDays: cfg.PatientMaxAheadDays,
	}, loc)

	routerCfg := &router.Config{
		Logger:              logger,
		AppointmentsHandler: appointments.NewHandler(svc, logger),
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerSec:     cfg.RateLimitPerSec,
		RateLimitBurst:      cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
