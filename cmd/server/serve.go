package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ksred/klear-splitter/internal/accounts"
	"github.com/ksred/klear-splitter/internal/auth"
	"github.com/ksred/klear-splitter/internal/catalog"
	"github.com/ksred/klear-splitter/internal/config"
	"github.com/ksred/klear-splitter/internal/database"
	"github.com/ksred/klear-splitter/internal/logging"
	"github.com/ksred/klear-splitter/internal/market"
	"github.com/ksred/klear-splitter/internal/trading"
	"github.com/ksred/klear-splitter/internal/types"
	"github.com/ksred/klear-splitter/pkg/middleware"
	"github.com/ksred/klear-splitter/pkg/response"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

// app holds the wired services behind the router
type app struct {
	router         *gin.Engine
	tradingService *trading.Service
	rateLimiter    *middleware.RateLimiter
	closeStorage   func() error
}

// buildApp wires every service from cfg
func buildApp(cfg *config.Config) (*app, error) {
	instruments, err := catalog.New(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	calendar, err := market.NewCalendar(cfg.Market)
	if err != nil {
		return nil, err
	}

	var (
		store        trading.OrderStore
		closeStorage = func() error { return nil }
	)
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		db, err := database.NewDatabase(cfg.Storage.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		store = trading.NewGormStore(db)
		closeStorage = func() error { return database.Close(db) }
	default:
		store = trading.NewMemoryStore()
	}

	accountService := accounts.NewService(cfg.InitialBalance())
	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, accountService)
	tradingService := trading.NewService(cfg.TradingService(), store, instruments, accountService, calendar)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)
	router.Use(rateLimiter.Middleware())

	setupRoutes(router, cfg,
		auth.NewGinHandlers(authService),
		catalog.NewGinHandlers(instruments),
		trading.NewGinHandlers(tradingService),
	)

	return &app{
		router:         router,
		tradingService: tradingService,
		rateLimiter:    rateLimiter,
		closeStorage:   closeStorage,
	}, nil
}

// serve runs the API until SIGINT or SIGTERM, then shuts down gracefully
func serve(cfg *config.Config) error {
	logCloser, err := logging.Setup(cfg.Logging, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.closeStorage(); err != nil {
			zlog.Error().Err(err).Msg("failed to close storage")
		}
	}()

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()

	sweeper, err := trading.NewSweeper(a.tradingService, cfg.Idempotency.SweepSchedule)
	if err != nil {
		return err
	}
	sweeperDone := make(chan struct{})
	go func() {
		sweeper.Start(backgroundCtx)
		close(sweeperDone)
	}()
	go a.rateLimiter.Cleanup(backgroundCtx)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: a.router,
	}

	serverErr := make(chan error, 1)
	go func() {
		zlog.Info().Str("port", cfg.Server.Port).Str("env", cfg.Server.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("listen: %w", err)
	}
	zlog.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	backgroundCancel()
	<-sweeperDone

	zlog.Info().Msg("Server exiting")
	return nil
}

// setupRoutes configures all API endpoints:
// - Auth and stock routes are public
// - Order routes require a JWT
// - Internal routes require the internal API key
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandlers *auth.GinHandlers,
	catalogHandlers *catalog.GinHandlers,
	tradingHandlers *trading.GinHandlers,
) {
	router.GET("/health", func(c *gin.Context) {
		response.OK(c, types.HealthResponse{Status: "ok", Message: "klear-splitter is running"})
	})

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/signup", authHandlers.SignupHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
			authGroup.GET("/me", middleware.JWTAuth(cfg.Auth.JWTSecret), authHandlers.MeHandler())
		}

		v1.GET("/stocks", catalogHandlers.ListHandler())

		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth(cfg.Auth.JWTSecret))
		{
			orders.POST("", tradingHandlers.CreateOrderHandler())
			orders.GET("", tradingHandlers.ListOrdersHandler())
			orders.GET("/holdings", tradingHandlers.HoldingsHandler())
			orders.GET("/:order_id", tradingHandlers.GetOrderHandler())
		}

		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(cfg.Auth.InternalAPIKey))
		{
			internal.POST("/idempotency/sweep", tradingHandlers.SweepIdempotencyHandler())
		}
	}
}
