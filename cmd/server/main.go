package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/flipwise/flipwise/internal/app"
	"github.com/flipwise/flipwise/internal/config"
	"github.com/flipwise/flipwise/internal/logger"
	"github.com/flipwise/flipwise/internal/routes"
	gfshutdown "github.com/gelmium/graceful-shutdown"
)

func main() {
	cfg := config.Load()

	logger.Init(logger.Options{
		Development: cfg.IsDevelopment(),
		SentryDSN:   cfg.SentryDSN,
		Environment: cfg.AppEnv,
	})
	defer logger.Flush(2 * time.Second)

	app, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		logger.Flush(2 * time.Second)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.SetupRoutes(app),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.PaymentTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv, "payment_provider", app.PaymentGateway.Name())
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// In-flight requests drain before the database closes.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				slog.Info("graceful shutdown initiated")
				err := server.Shutdown(ctx)
				closeErr := app.Close()
				if closeErr != nil {
					slog.Error("failed to close app", "error", closeErr)
				}
				return errors.Join(err, closeErr)
			},
		},
	)

	exitCode := <-wait
	slog.Info("server stopped", "exit_code", exitCode)
	logger.Flush(2 * time.Second)
	os.Exit(exitCode)
}
