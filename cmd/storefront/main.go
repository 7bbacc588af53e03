package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/api"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/api/returns"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/auth"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/booking"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/config"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/events"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/gateway"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/payment"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/reconcile"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/storage"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/ticket"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting storefront initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", "No .env file found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	// --- Local store (snapshots, notification markers) ---
	store := openLocalStore(ctx, cfg, log)
	defer store.Close()

	// --- Credentials ---
	credStore := auth.NewStore(cfg.Auth.ExpiryBuffer)
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("REDIS", fmt.Sprintf("Redis unreachable at %s, credential mirroring disabled: %v", cfg.Redis.Addr, err))
		} else {
			credStore.WithCache(ctx, auth.NewRedisPairCache(redisClient))
			log.Info("REDIS", fmt.Sprintf("Credential mirroring enabled via %s", cfg.Redis.Addr))
		}
	}

	httpClient := &http.Client{Timeout: cfg.CoreAPI.Timeout}
	coordinator := auth.NewCoordinator(credStore, auth.NewRefreshClient(cfg.Auth.RefreshURL, httpClient, log), log)
	apiClient := gateway.NewClient(cfg.CoreAPI.BaseURL, httpClient, coordinator, log)

	// --- Domain services ---
	bookings := booking.NewService(apiClient, log)
	payments := payment.NewInitiator(apiClient, store, cfg.Gateway.ReturnURL, cfg.Gateway.CancelURL, cfg.LocalStore.SnapshotTTL, log)

	producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.MockMode || !cfg.Kafka.Enabled, log)
	defer producer.Close()

	emitter := ticket.NewEmitter(store, ticket.NewSMTPSender(cfg.Email), log)
	reconciler := reconcile.New(apiClient, store, emitter, producer, log)

	// --- Storefront API (chi) ---
	r := chi.NewRouter()
	handler := api.NewHandler(bookings, payments, log)
	if cfg.Auth.OIDCIssuer != "" {
		mw, err := auth.Middleware(cfg.Auth.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("Failed to set up OIDC middleware: %v", err))
		}
		r.Group(func(r chi.Router) {
			r.Use(mw)
			handler.Routes(r)
		})
		log.Info("AUTH", fmt.Sprintf("OIDC verification enabled (issuer %s)", cfg.Auth.OIDCIssuer))
	} else {
		handler.Routes(r)
		log.Warn("AUTH", "OIDC_ISSUER not set, storefront API runs unauthenticated")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// --- Gateway return listener (gin) ---
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	returns.NewHandler(reconciler, log).Register(engine)

	returnServer := &http.Server{
		Addr:         cfg.Server.ReturnPort,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// --- Snapshot sweeper ---
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepSnapshots(sweepCtx, store, cfg.LocalStore.SweepInterval, log)

	go func() {
		log.Info("APP", fmt.Sprintf("Storefront API listening on %s", cfg.Server.Port))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("APP", fmt.Sprintf("API server error: %v", err))
		}
	}()

	go func() {
		log.Info("APP", fmt.Sprintf("Payment return listener on %s", cfg.Server.ReturnPort))
		if err := returnServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("APP", fmt.Sprintf("Return server error: %v", err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("APP", "Shutdown signal received, cleaning up")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("APP", fmt.Sprintf("API server forced to shut down: %v", err))
	}
	if err := returnServer.Shutdown(shutdownCtx); err != nil {
		log.Error("APP", fmt.Sprintf("Return server forced to shut down: %v", err))
	}

	log.Info("APP", "Server exited gracefully")
}

func openLocalStore(ctx context.Context, cfg *config.Config, log *logger.Logger) *storage.LocalStore {
	switch cfg.LocalStore.Driver {
	case "postgres":
		bunDB, err := storage.OpenPostgres(cfg.LocalStore.PostgresDSN)
		if err != nil {
			log.Fatal("STORE", fmt.Sprintf("Failed to open postgres local store: %v", err))
		}
		store := storage.New(bunDB, log)
		if err := store.Migrate(storage.MigrateOptions{
			MigrationsDir: cfg.LocalStore.MigrationsDir,
			AutoMigrate:   cfg.LocalStore.AutoMigrate,
		}, log); err != nil {
			log.Fatal("STORE", fmt.Sprintf("Local store migration failed: %v", err))
		}
		log.Info("STORE", "PostgreSQL local store ready")
		return store

	default:
		bunDB, err := storage.OpenSQLite(cfg.LocalStore.SQLitePath)
		if err != nil {
			log.Fatal("STORE", fmt.Sprintf("Failed to open sqlite local store: %v", err))
		}
		store := storage.New(bunDB, log)
		if err := store.Init(ctx); err != nil {
			log.Fatal("STORE", fmt.Sprintf("Local store init failed: %v", err))
		}
		log.Info("STORE", fmt.Sprintf("SQLite local store ready at %s", cfg.LocalStore.SQLitePath))
		return store
	}
}

func sweepSnapshots(ctx context.Context, store *storage.LocalStore, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.PurgeExpired(ctx); err != nil {
				log.Error("STORE", fmt.Sprintf("Snapshot sweep failed: %v", err))
			}
		}
	}
}
