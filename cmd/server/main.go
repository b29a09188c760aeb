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

	"fablab-backend-go/internal/cache"
	"fablab-backend-go/internal/config"
	"fablab-backend-go/internal/db"
	httpapi "fablab-backend-go/internal/http"
	"fablab-backend-go/internal/logging"
	"fablab-backend-go/internal/migrations"
	"fablab-backend-go/internal/notify"
	"fablab-backend-go/internal/scheduler"
	"fablab-backend-go/internal/services"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closeLogs, err := logging.New(logging.Options{
		Level:         cfg.LogLevel,
		Dir:           cfg.LogDir,
		RetentionDays: cfg.LogRetentionDays,
		Console:       !cfg.IsProduction(),
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer closeLogs()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	database, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer database.Close()
	if err := migrations.Apply(ctx, database); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if version, err := migrations.Version(ctx, database); err == nil {
		logger.Info().Int64("version", version).Str("driver", cfg.DBDriver).Msg("database ready")
	}

	tokens := services.TokenService{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer, TTL: cfg.JWTExpiresIn}
	if cfg.SuperAdminEmail != "" && cfg.SuperAdminPassword != "" {
		created, err := services.EnsureSuperAdmin(ctx, database, tokens, cfg.SuperAdminEmail, cfg.SuperAdminPassword)
		if err != nil {
			return fmt.Errorf("superadmin bootstrap: %w", err)
		}
		if created {
			logger.Info().Str("email", cfg.SuperAdminEmail).Msg("superadmin created")
		}
	}

	store, err := cache.New(cfg.RedisURL, "fablab:", cfg.CacheTTL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
		store = cache.NewMemoryCache(cfg.CacheTTL)
	}
	defer store.Close()

	hub := services.NewLiveHub()
	go hub.Run(ctx)

	dispatcher := notify.NewDispatcher(database, &logger, notify.Options{
		Workers:   cfg.NotificationWorkers,
		Mailer:    newMailer(cfg, &logger),
		Publisher: newPublisher(cfg, &logger),
		Live:      hub,
	})
	dispatcher.Start()
	defer dispatcher.Close()

	jobs := scheduler.New(database, &logger, scheduler.Options{
		NotificationRetention: time.Duration(cfg.NotificationRetentionDays) * 24 * time.Hour,
		MetricsInterval:       cfg.MetricsInterval,
		DiskPath:              cfg.UploadDir,
		Cache:                 store,
		Live:                  hub,
	})
	if err := jobs.Start(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer jobs.Stop()

	server := httpapi.NewServer(database, *cfg, httpapi.Options{
		Live:     hub,
		Notifier: dispatcher,
		Cache:    store,
		Log:      &logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Str("env", cfg.Env).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

func newMailer(cfg *config.Config, logger *zerolog.Logger) notify.Mailer {
	if !cfg.SMTPEnabled() {
		return notify.LogMailer{Log: logger}
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

// newPublisher returns nil when AMQP is off or unreachable. Events still
// reach the database and live feed.
func newPublisher(cfg *config.Config, logger *zerolog.Logger) notify.Publisher {
	if cfg.AMQPURL == "" {
		return nil
	}
	publisher, err := notify.NewAMQPPublisher(cfg.AMQPURL)
	if err != nil {
		logger.Warn().Err(err).Msg("amqp unavailable, events will not be published")
		return nil
	}
	return publisher
}
