package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"hackmate/pkg/broker/kafka"
	"hackmate/pkg/chat"
	"hackmate/pkg/config"
	"hackmate/pkg/db"
	"hackmate/pkg/moderation"
	"hackmate/pkg/obs"
	"hackmate/pkg/sendemail"
	"hackmate/pkg/teams"
	"hackmate/pkg/users"
	"hackmate/pkg/version"
)

// @title           Hackmate Chat API
// @version         1.0
// @description     Real-time team and direct messaging for hackathon participants

// @BasePath  /

// @schemes   http https

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}
	logger.Info("starting server", "version", version.Get().String(), "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	handlers, closeFn := buildHandlers(cfg, logger, pool)
	defer closeFn()

	router := newRouter(routerDeps{
		Config:   cfg,
		Logger:   logger,
		Gatherer: prometheus.DefaultGatherer,
		Ready:    pool.Ping,
		Handlers: handlers,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(srv, cfg.TLS, logger)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exiting")
	return nil
}

// buildHandlers builds every domain service on top of the pool. The returned func
// releases broker connections.
func buildHandlers(cfg config.Config, logger *slog.Logger, pool *pgxpool.Pool) ([]routeRegistrar, func()) {
	usersService := users.NewUserService(users.NewPostgresUserRepository(pool))

	chatManager := chat.NewConnectionManager()
	teamsService := teams.NewTeamService(teams.NewPostgresTeamRepository(pool), chatManager)

	chatHandler := chat.NewHandler(chatManager, logger)
	chatHandler.SetRepository(chat.NewPostgresMessageStore(pool))
	chatHandler.SetTeamDirectory(teamsService)
	chatHandler.SetAllowedOrigins(cfg.CORS.AllowedOrigins)
	chatHandler.SetLimits(chat.Limits{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		RatePerSecond:    cfg.Chat.RateLimitRPS,
		Burst:            cfg.Chat.RateLimitBurst,
		HistoryLimit:     cfg.Chat.HistoryLimit,
	})
	chatHandler.SetMetrics(chat.NewMetrics(prometheus.DefaultRegisterer, chatManager))

	opts := moderation.Options{
		Topic:      cfg.Kafka.ReportsTopic,
		Recipients: cfg.ModerationEmails,
		Directory:  usersService,
	}
	if email, err := sendemail.NewEmailService(cfg.SendGrid); err != nil {
		logger.Warn("moderator email disabled", "error", err)
	} else {
		opts.Email = email
	}

	closeFn := func() {}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, nil)
		if err != nil {
			logger.Warn("kafka producer disabled", "brokers", cfg.Kafka.Brokers, "error", err)
		} else {
			opts.Publisher = producer
			closeFn = func() {
				if err := producer.Close(); err != nil {
					logger.Warn("close kafka producer", "error", err)
				}
			}
		}
	}
	moderationService := moderation.NewService(moderation.NewPostgresReportRepository(pool), logger, opts)

	return []routeRegistrar{
		chatHandler,
		users.NewUserHandler(usersService),
		teams.NewTeamHandler(teamsService),
		moderation.NewHandler(moderationService),
	}, closeFn
}

func serve(srv *http.Server, s config.TLSConfig, logger *slog.Logger) error {
	if !s.Enable {
		logger.Info("listening", "addr", srv.Addr, "tls", false)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen (HTTP): %w", err)
		}
		return nil
	}

	tlsConfig, certFile, keyFile, err := buildTLSConfig(s)
	if err != nil {
		return fmt.Errorf("TLS setup error: %w", err)
	}
	srv.TLSConfig = tlsConfig
	logger.Info("listening", "addr", srv.Addr, "tls", true, "cert_file", certFile)

	if err := srv.ListenAndServeTLS(certFile, keyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen (TLS): %w", err)
	}
	return nil
}
