// ==============================================================================
// REVIEW API - cmd/review-api/main.go
// ==============================================================================
// Serves the financing application review engine over HTTP.
// ==============================================================================

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

	"finreview/internal/adminteam"
	"finreview/internal/audit"
	"finreview/internal/authz"
	"finreview/internal/handler"
	"finreview/internal/metrics"
	"finreview/internal/middleware"
	"finreview/internal/notification"
	"finreview/internal/repository"
	"finreview/internal/review"
	"finreview/internal/store"
	"finreview/pkg/cache"
	"finreview/pkg/config"
	"finreview/pkg/logger"
	"finreview/pkg/mailer"
	"finreview/pkg/validator"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const serviceName = "review-api"

func main() {
	cfg := config.Load()
	log := logger.New(serviceName)

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting Review API", map[string]interface{}{
		"port":          cfg.Server.Port,
		"store_backend": cfg.Store.Backend,
	})

	system := handler.NewSystemHandler(serviceName, log)

	// ==========================================================================
	// STORAGE
	// ==========================================================================

	var (
		db          *sqlx.DB
		redisClient *redis.Client
		records     store.Store
		trail       audit.Trail
	)

	if cfg.Store.Backend == config.StoreBackendPostgres {
		var err error
		db, err = sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		system.Register("database", db)
		log.Info("Database connected", nil)
	}

	// Redis is required for the redis backend and optional otherwise; without it
	// rate limiting and idempotency are disabled.
	if client, err := cache.Connect(context.Background(), cfg.Redis); err != nil {
		if cfg.Store.Backend == config.StoreBackendRedis {
			log.Fatal("Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		}
		log.Warn("Redis unavailable, rate limiting and idempotency disabled", map[string]interface{}{"error": err.Error()})
	} else {
		redisClient = client
		defer redisClient.Close()
		system.Register("redis", handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
		log.Info("Redis connected", nil)
	}

	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		records = store.NewPostgresStore(db)
		trail = audit.NewPostgresTrail(db)
	case config.StoreBackendRedis:
		records = store.NewRedisStore(redisClient, "finreview")
		trail = audit.NewRedisTrail(redisClient, "finreview")
	default:
		records = store.NewMemoryStore()
		trail = audit.NewMemoryTrail()
		log.Warn("Using in-memory store; data is lost on restart", nil)
	}

	// ==========================================================================
	// SERVICES
	// ==========================================================================

	m := metrics.New()
	recorder := audit.NewRecorder(trail, log)

	channels := []notification.Channel{notification.NewLogChannel(log)}
	if cfg.Email.Enabled() {
		channels = append(channels, notification.NewEmailChannel(mailer.New(mailer.FromEmailConfig(cfg.Email))))
		log.Info("Email notifications enabled", map[string]interface{}{"smtp_host": cfg.Email.SMTPHost})
	}
	dispatcher := notification.NewDispatcher(log, cfg.Policy.NotificationTimeout, channels...)

	admins := repository.NewAdmins(records)
	reviewService := review.NewService(review.Dependencies{
		Applications: repository.NewApplications(records),
		Documents:    repository.NewDocuments(records),
		Admins:       admins,
		KYCCases:     repository.NewKYCCases(records),
		Policy:       authz.NewPolicy(cfg.Policy),
		Audit:        recorder,
		Notifier:     dispatcher,
		Metrics:      m,
		Logger:       log,
		MaxAttempts:  cfg.Retry.MaxAttempts,
	})
	teamService := adminteam.NewService(admins, recorder, m, log, cfg.Retry.MaxAttempts)

	if id := cfg.Bootstrap.AdminID; id != "" {
		_, created, err := teamService.Bootstrap(context.Background(), id, cfg.Bootstrap.AdminName, cfg.Bootstrap.AdminEmail)
		if err != nil {
			log.Fatal("Failed to bootstrap super admin", map[string]interface{}{"error": err.Error()})
		}
		if created {
			log.Info("Bootstrapped super admin", map[string]interface{}{"admin_id": id})
		}
	}

	// ==========================================================================
	// HTTP
	// ==========================================================================

	val := validator.New()
	routerCfg := handler.RouterConfig{
		Applications:   handler.NewApplicationHandler(reviewService, val, log),
		Documents:      handler.NewDocumentHandler(reviewService, val, log),
		Team:           handler.NewTeamHandler(teamService, val, log),
		Audit:          handler.NewAuditHandler(reviewService, val, log),
		System:         system,
		Auth:           middleware.NewAuthMiddleware(cfg.JWT.Secret, log),
		Metrics:        m,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	}
	if redisClient != nil {
		routerCfg.RateLimiter = middleware.NewRateLimiter(redisClient, cfg.Server.RateLimit, cfg.Server.RateWindow, log)
		routerCfg.Idempotency = middleware.NewIdempotencyMiddleware(redisClient, cfg.Server.IdempotencyTTL, log)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Review API started", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Review API...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Review API forced to shutdown", map[string]interface{}{"error": err.Error()})
	}
	// Let in-flight notifications finish before the process exits.
	dispatcher.Wait()

	log.Info("Review API stopped gracefully", nil)
}
