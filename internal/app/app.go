package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flipwise/flipwise/internal/config"
	"github.com/flipwise/flipwise/internal/db"
	"github.com/flipwise/flipwise/internal/markdown"
	"github.com/flipwise/flipwise/internal/middleware"
	"github.com/flipwise/flipwise/internal/repository"
	"github.com/flipwise/flipwise/internal/service"
	"github.com/flipwise/flipwise/internal/service/payment"
	"github.com/flipwise/flipwise/internal/storage"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const drainTimeout = 15 * time.Second

type App struct {
	Cfg                *config.Config
	DB                 *sqlx.DB
	Redis              *redis.Client
	AuthService        *service.AuthService
	TokenService       *service.TokenService
	EmailService       *service.EmailService
	FlashcardService   *service.FlashcardService
	EntitlementService *service.EntitlementService
	PaymentGateway     payment.Gateway
	AuthLimiter        middleware.Limiter
	ClientIP           *middleware.ClientIP

	memoryLimiter *middleware.RateLimiter
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &App{Cfg: cfg, DB: database}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	flashcardRepository := repository.NewFlashcardRepository(database)
	paymentRepository := repository.NewPaymentRepository(database)

	// Webhook archive
	archive, err := storage.New(cfg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Payment gateway based on config
	gateway, err := payment.NewGateway(cfg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize payment gateway: %w", err)
	}

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)

	a.EmailService = emailService
	a.PaymentGateway = gateway
	a.AuthService = service.NewAuthService(userRepository, emailService)
	a.TokenService = service.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)
	a.FlashcardService = service.NewFlashcardService(flashcardRepository, markdown.NewParser())
	a.EntitlementService = service.NewEntitlementService(gateway, paymentRepository, userRepository, emailService, archive)

	a.ClientIP, err = middleware.NewClientIP(cfg.TrustedProxies)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to parse TRUSTED_PROXIES: %w", err)
	}
	a.AuthLimiter = a.newAuthLimiter()

	return a, nil
}

// newAuthLimiter shares counters through Redis when configured and keeps
// them in process otherwise.
func (a *App) newAuthLimiter() middleware.Limiter {
	cfg := a.Cfg
	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := a.Redis.Ping(ctx).Err()
		if err != nil {
			slog.Warn("redis unreachable, rate limiter will fail open until it recovers", "address", cfg.RedisAddr, "error", err)
		} else {
			slog.Info("redis connection successful", "address", cfg.RedisAddr)
		}

		return middleware.NewRedisRateLimiter(a.Redis, cfg.RateLimitAuthMax, cfg.RateLimitAuthWindow)
	}

	a.memoryLimiter = middleware.NewRateLimiter(cfg.RateLimitAuthMax, cfg.RateLimitAuthWindow)
	return a.memoryLimiter
}

// Close waits briefly for pending webhook side effects, then releases
// connections.
func (a *App) Close() error {
	var errs []error
	if a.EntitlementService != nil {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		err := a.EntitlementService.Wait(ctx)
		cancel()
		if err != nil {
			slog.Warn("webhook side effects still running at shutdown", "error", err)
		}
	}
	if a.memoryLimiter != nil {
		a.memoryLimiter.Close()
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, db.Close(a.DB))
	}
	return errors.Join(errs...)
}
