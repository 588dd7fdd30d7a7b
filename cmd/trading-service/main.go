package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"diecast-trading/internal/api/handlers"
	"diecast-trading/internal/config"
	"diecast-trading/internal/domain"
	"diecast-trading/internal/infrastructure/email"
	"diecast-trading/internal/infrastructure/leader"
	"diecast-trading/internal/infrastructure/mysql"
	"diecast-trading/internal/infrastructure/redis"
	ws "diecast-trading/internal/infrastructure/websocket"
	"diecast-trading/internal/services"
	"diecast-trading/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting Trading Service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize repositories
	listingRepo := mysql.NewMySQLListingRepository(db)
	bidLedger := mysql.NewMySQLBidLedger(db)
	contactResolver := mysql.NewMySQLContactResolver(db)

	// Initialize Redis based components
	highBidCache := redis.NewHighBidCache(rdb)
	finalizeLock := redis.NewRedisFinalizeLock(rdb, cfg.Finalize.LockTTL)
	eventPublisher := redis.NewEventPublisher(rdb)
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, log)

	// Initialize leader election
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Initialize outcome notifications
	notifier := email.NewResendNotifier(email.Config{
		APIKey:   cfg.Email.APIKey,
		Endpoint: cfg.Email.Endpoint,
		From:     cfg.Email.From,
	}, log)
	if cfg.Email.APIKey == "" {
		log.Warn("Email API key not set, outcome notifications disabled")
	}

	// Initialize services
	validator := services.NewBidValidator()
	bidService := services.NewBidService(listingRepo, bidLedger, validator, highBidCache, eventPublisher, log)
	listingService := services.NewListingService(listingRepo, bidLedger, highBidCache, log)
	finalizer := services.NewFinalizer(
		listingRepo,
		bidLedger,
		contactResolver,
		notifier,
		finalizeLock,
		highBidCache,
		eventPublisher,
		cfg.Finalize.ItemTimeout,
		log,
	)
	sweeper := services.NewFinalizeSweeper(finalizer, leaderElection, cfg.Instance.ID, cfg.Finalize.SweepSchedule, log)

	// Initialize live feed fan-out
	connectionManager := ws.NewConnectionManager(log)

	subscriberCtx, stopSubscriber := context.WithCancel(context.Background())
	defer stopSubscriber()
	go func() {
		err := eventSubscriber.SubscribeToListingEvents(subscriberCtx, func(event *domain.ListingEvent) error {
			if err := connectionManager.BroadcastToListing(event.ListingID, event); err != nil {
				log.Warn("Broadcast failed", "listing_id", event.ListingID, "error", err)
			}
			if event.Type.Terminal() {
				if err := connectionManager.CloseListingConnections(event.ListingID); err != nil {
					log.Warn("Failed to close listing connections", "listing_id", event.ListingID, "error", err)
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event subscription stopped", "error", err)
		}
	}()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Initialize handlers
	tradingHandler := handlers.NewTradingHandler(listingService, bidService, finalizer, cfg.Finalize.TriggerToken, log)
	wsHandler := handlers.NewWebSocketHandler(listingService, connectionManager, log)

	api := e.Group("/api/v1")
	tradingHandler.Register(api)

	e.GET("/ws/listings/:id", wsHandler.HandleListingFeed)

	e.GET("/health", func(c echo.Context) error {
		isLeader, _ := leaderElection.IsLeader(c.Request().Context(), cfg.Instance.ID)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "trading-service",
			"timestamp": time.Now().Format(time.RFC3339),
			"leader":    isLeader,
		})
	})

	// Start the finalize sweep
	if err := sweeper.Start(context.Background()); err != nil {
		log.Error("Failed to start finalize sweeper", "error", err)
		os.Exit(1)
	}

	// Keep trying for leadership so a surviving instance picks up the sweep
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became sweep leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting trading server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down trading service...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopSubscriber()
	if err := sweeper.Stop(); err != nil {
		log.Error("Failed to stop finalize sweeper", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Trading service stopped")
}
