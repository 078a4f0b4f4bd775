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

	"sweet-shop/internal/config"
	"sweet-shop/internal/database"
	"sweet-shop/internal/logger"
	"sweet-shop/internal/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
	log.Info("Graceful shutdown complete")
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting sweet shop API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET must be set")
	}

	dbService, err := database.New(cfg.Database)
	if err != nil {
		return err
	}

	version, err := database.RunMigrations(context.Background(), dbService.DB(), cfg.Database.MigrationsDir, log)
	if err != nil {
		dbService.Close()
		return err
	}
	log.Info("Database schema ready", zap.Int64("version", version))

	srv := server.NewServer(cfg, log, dbService, connectRedis(cfg.Redis, log))
	defer srv.Close()

	created, err := srv.Credentials().EnsureAdmin(context.Background(), cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}
	if created {
		log.Info("Admin account created", zap.String("email", cfg.Admin.Email))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// connectRedis returns nil when no Redis host is configured or it cannot be reached
func connectRedis(cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	addr := cfg.Addr()
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable, falling back to per-process rate limiting", zap.String("addr", addr), zap.Error(err))
		client.Close()
		return nil
	}

	log.Info("Connected to redis", zap.String("addr", addr))
	return client
}
