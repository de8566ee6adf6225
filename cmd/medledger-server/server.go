package main

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/medledger/medledger/internal/config"
	"github.com/medledger/medledger/internal/insight"
	"github.com/medledger/medledger/internal/platform/db"
	"github.com/medledger/medledger/internal/platform/metrics"
	"github.com/medledger/medledger/internal/platform/middleware"
	"github.com/medledger/medledger/internal/relay"
	"github.com/medledger/medledger/web"
)

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(out).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		stderrLogger := zerolog.New(os.Stderr)
		stderrLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	operator, err := relay.NewOperator(cfg.PrivateKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load operator key")
	}

	ctx := context.Background()
	node, err := relay.Dial(ctx, cfg.ResolvedNodeURL())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to node")
	}
	defer node.Close()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("access log database connected")
	}

	svc := relay.NewService(node, operator, cfg.Contract(), logger)
	gen := insight.NewGenerator(
		svc.Records(),
		insight.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL),
		operator.Address(),
		insight.Config{Model: cfg.InsightModel, MaxTokens: cfg.InsightMaxTokens},
		logger,
	)

	e := newServer(cfg, logger, svc, gen, web.Pages(), pool)

	logger.Info().
		Str("operator", operator.Address().Hex()).
		Str("contract", cfg.Contract().Hex()).
		Bool("access_log_db", pool != nil).
		Msg("relay configured")

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer assembles the echo instance. pool may be nil, in which case the
// access audit goes to the log only.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *relay.Service, insights relay.Insights, pages fs.FS, pool *pgxpool.Pool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = relay.ErrorHandler(logger)

	var recorders []middleware.AuditRecorder
	if pool != nil {
		recorders = append(recorders, db.NewAuditStore(pool))
	}

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(metrics.Middleware())
	e.Use(middleware.Audit(logger, recorders...))

	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	relay.NewHandler(svc, insights, pages, logger).RegisterRoutes(e)
	return e
}
