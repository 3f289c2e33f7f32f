package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mentora-auth/internal/config"
	"mentora-auth/internal/db"
	"mentora-auth/internal/email"
	apihttp "mentora-auth/internal/http"
	"mentora-auth/internal/metrics"
	"mentora-auth/internal/repository"
	"mentora-auth/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const confirmPath = "/api/v1/auth/confirm/email/"

// emailQueue es la cola que usa el servidor: Redis si esta disponible, en
// memoria si no.
type emailQueue interface {
	email.Dispatcher
	Start(workers int)
	Close()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var users repository.UserRepository
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		users = repository.NewPgUserRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory user store")
		users = repository.NewMemoryUserRepository()
	}

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var queue emailQueue
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory email queue", zap.Error(err))
			_ = redisClient.Close()
		} else {
			queue = email.NewRedisQueue(redisClient, cfg.EmailQueueKey, logger, emailSender, m)
			defer redisClient.Close()
		}
		cancel()
	}
	if queue == nil {
		queue = email.NewMemoryQueue(logger, emailSender, m, 256)
	}
	queue.Start(cfg.EmailWorkers)
	defer queue.Close()

	credentials, err := service.NewCredentialService(logger, users, queue, m, service.CredentialConfig{
		AccessTokenSecret:  cfg.AccessTokenSecret,
		RefreshTokenSecret: cfg.RefreshTokenSecret,
		AccessTokenTTL:     cfg.AccessTokenTTL,
		RefreshTokenTTL:    cfg.RefreshTokenTTL,
		Issuer:             cfg.TokenIssuer,
		BcryptCost:         cfg.BcryptCost,
		ResetCodeTTL:       cfg.ResetCodeTTL,
		ConfirmURLBase:     cfg.PublicBaseURL + confirmPath,
		Delivery: email.DeliveryOptions{
			Attempts: cfg.EmailAttempts,
			Backoff:  cfg.EmailBackoff,
		},
	})
	if err != nil {
		logger.Fatal("credential service", zap.Error(err))
	}

	cookies := apihttp.CookieConfig{AccessTokenPrefix: cfg.AccessTokenPrefix, Secure: cfg.CookieSecure}
	authHandler := apihttp.NewAuthHandler(logger, credentials, cookies, cfg.LoginRedirectURL)
	accountHandler := apihttp.NewAccountHandler(logger, credentials, cookies)
	router := apihttp.NewRouter(logger, authHandler, accountHandler, credentials, cookies, registry)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
