package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/noxly/redemptions/internal/config"
	"github.com/noxly/redemptions/internal/database"
	"github.com/noxly/redemptions/internal/handler"
	"github.com/noxly/redemptions/internal/logging"
	"github.com/noxly/redemptions/internal/metrics"
	"github.com/noxly/redemptions/internal/middleware"
	"github.com/noxly/redemptions/internal/queue"
	"github.com/noxly/redemptions/internal/redemption"
	"github.com/noxly/redemptions/internal/repository"
	"github.com/noxly/redemptions/internal/router"
	"github.com/noxly/redemptions/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.IsDev())

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig(), logger) // nil when Redis is down
	if rdb != nil {
		defer rdb.Close()
	}

	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit consumer for redemption.consumed; reconnects on its own.
	consumer := &queue.Consumer{URL: cfg.AMQPURL, LogDir: cfg.EventLogDir, Dev: cfg.IsDev(), Log: logger}
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("redemption consumer stopped")
		}
	}()

	lc := handler.Lifecycle{
		Clock:   redemption.SystemClock{},
		Window:  cfg.RedemptionWindow,
		Tick:    cfg.CountdownTick,
		Refresh: cfg.CountdownRefresh,
	}
	coupons := repository.NewCouponRepo(db)
	redemptions := repository.NewRedemptionRepo(db)
	publisher := service.NewPublisher(cfg.AMQPURL, logger)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	limits := config.LoadRateLimitConfig()
	e.Use(middleware.NewTokenBucket(limits, rdb, logger))

	router.RegisterRoutes(e, db)
	public := handler.NewPublicHandler(coupons, lc, logger)
	public.DB = redemptions
	router.RegisterPublic(e,
		public,
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger))
	router.RegisterCustomer(e, handler.NewCustomerHandler(coupons, redemptions, lc, logger), cfg.JWTSecret)
	router.RegisterVenue(e,
		handler.NewVenueHandler(redemptions, lc, publisher, cfg.IsDev(), logger),
		cfg.JWTSecret,
		middleware.NewTokenBucket(limits.Verification(), rdb, logger))

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Dur("window", cfg.RedemptionWindow).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}
