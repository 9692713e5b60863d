package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/car-rental/internal/config"
	"github.com/iliyamo/car-rental/internal/database"
	"github.com/iliyamo/car-rental/internal/handler"
	"github.com/iliyamo/car-rental/internal/logging"
	"github.com/iliyamo/car-rental/internal/middleware"
	"github.com/iliyamo/car-rental/internal/queue"
	"github.com/iliyamo/car-rental/internal/repository"
	"github.com/iliyamo/car-rental/internal/router"
	"github.com/iliyamo/car-rental/internal/service"
	"github.com/iliyamo/car-rental/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With("service", "car-rental", "env", cfg.Env)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.EnsureSchema(schemaCtx, db)
	cancel()
	if err != nil {
		return err
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		logger.Warn("redis unavailable: in-process rate limiting, no response cache")
	} else {
		defer rdb.Close()
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if ev := config.LoadEventsConfig(); ev.Enabled() {
		pub := queue.NewPublisher(ev.URL, ev.Queue)
		defer pub.Close()
		events = pub

		go func() {
			err := queue.StartAuditConsumer(ctx, ev.URL, ev.Queue, queue.NewAuditSink(ev.AuditLog), logger.With("component", "audit-consumer"))
			if err != nil && !errors.Is(err, queue.ErrClosed) {
				logger.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	reservations := repository.NewReservationRepo(db)
	cars := repository.NewCarRepo(db)
	classes := repository.NewCarClassRepo(db)

	issuer := utils.NewTokenIssuer(cfg.JWT)
	auth := service.NewAuthenticator(users, tokens, issuer, service.AuthOptions{
		BcryptCost:       cfg.BcryptCost,
		AllowAdminSignup: cfg.AllowAdminSignup,
		Replay:           service.NewReplayPolicy(cfg.RefreshReuse),
	})
	catalog := service.NewCatalog(cars, classes)
	ledger := service.NewLedger(reservations, catalog, events)

	deps := map[string]handler.Pinger{"mysql": db}
	if rdb != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.BodyLimit("1M"))

	router.RegisterRoutes(e, handler.NewHealthHandler(deps))
	router.RegisterAuth(e,
		handler.NewAuthHandler(auth, cfg.RequestTimeout),
		issuer,
		middleware.NewRateLimiter(config.LoadAuthRateLimitConfig(), rdb),
	)
	router.RegisterCatalog(e,
		handler.NewCatalogHandler(catalog, cfg.RequestTimeout),
		issuer,
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	)
	router.RegisterReservations(e,
		handler.NewReservationHandler(ledger, cfg.RequestTimeout),
		issuer,
		middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb),
	)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
