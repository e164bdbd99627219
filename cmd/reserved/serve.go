package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"

	"table-reservation-backend/config"
	"table-reservation-backend/internal/api"
	"table-reservation-backend/internal/availability"
	"table-reservation-backend/internal/clock"
	"table-reservation-backend/internal/db"
	"table-reservation-backend/internal/hold"
	"table-reservation-backend/internal/mw"
	"table-reservation-backend/internal/notification"
	"table-reservation-backend/internal/slots"
	"table-reservation-backend/internal/store"
)

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	gormDB, err := db.Init(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB, store.Options{
		DefaultPolicy: slots.Policy{
			DiningMinutes: cfg.Schedule.DefaultDiningMinutes,
			BufferMinutes: cfg.Schedule.BufferMinutes(),
		},
		CacheTTL:       cfg.Schedule.SettingsCacheTTL,
		Retries:        cfg.Schedule.ReadRetries,
		RetryBaseDelay: cfg.Schedule.ReadRetryBaseDelay,
	})
	logger.Println("data store initialized")

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	opts := availability.Options{
		Location:        cfg.Venue.Location,
		IntervalMinutes: cfg.Schedule.SlotIntervalMinutes,
		DefaultTables:   cfg.Schedule.DefaultTables,
	}
	if cfg.Push.Enabled() {
		workers := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, &webpushOptions)
		workers.Start(ctx)
		opts.Notifier = workers
	} else {
		logger.Println("VAPID keys not configured; staff push notifications are disabled")
	}

	clk := clock.NewSystem()
	svc := availability.NewService(appStore, hold.NewLedger(clk, cfg.Schedule.HoldDuration), clk, opts)

	pages := mw.NewResponseCache(time.Duration(cfg.Server.CacheTTLSeconds) * time.Second)
	handler := api.NewHandler(svc, appStore, &webpushOptions, pages)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler, cfg.Server),
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	logger.Println("Server gracefully stopped")
	return nil
}
