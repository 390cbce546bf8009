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

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"auction-marketplace/internal/api/handlers"
	"auction-marketplace/internal/config"
	"auction-marketplace/internal/infrastructure/leader"
	"auction-marketplace/internal/infrastructure/mysql"
	"auction-marketplace/internal/infrastructure/redis"
	"auction-marketplace/internal/infrastructure/websocket"
	"auction-marketplace/internal/services"
	"auction-marketplace/pkg/logger"
)

func main() {
	log := logger.New()
	log.Info("starting auction marketplace service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis", "address", cfg.Redis.Address)

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("failed to open mysql", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("failed to close mysql connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping mysql", "error", err)
		os.Exit(1)
	}
	log.Info("connected to mysql")

	// Repositories and caches
	auctionRepo := mysql.NewMySQLAuctionRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	stateCache := redis.NewStateCache(rdb)

	// Event fan-out: watcher rooms plus the redis broadcast channel
	connManager := websocket.NewConnectionManager(log)
	dispatcher := services.NewDispatcher(connManager, log, redis.NewEventSink(rdb))

	// Engine
	locks := services.NewKeyedLock()
	bidService := services.NewBidService(auctionRepo, bidRepo, stateCache, dispatcher, locks,
		services.BidServiceConfig{
			LockTimeout:    cfg.Bidding.LockTimeout,
			StorageRetries: cfg.Bidding.StorageRetries,
			RetryBackoff:   cfg.Bidding.RetryBackoff,
		}, log)
	auctionManager := services.NewAuctionManager(auctionRepo, bidRepo, stateCache, dispatcher,
		locks, cfg.Bidding.LockTimeout, log)

	// Sweeper, leader-guarded
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)
	sweeper := services.NewSweeper(auctionManager, leaderElection, cfg.Instance.ID, cfg.Sweep.Schedule, log)

	// HTTP
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency":${latency},"bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	auctionHandler := handlers.NewAuctionHandler(auctionManager, bidService, log)
	auctionHandler.Register(e.Group("/api/v1"))

	wsHandler := handlers.NewWebSocketHandler(bidService, auctionManager, connManager, log)
	e.GET("/ws/auctions/:id", wsHandler.HandleConnection)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-marketplace",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Background services
	if err := sweeper.Start(context.Background()); err != nil {
		log.Error("failed to start sweeper", "error", err)
		os.Exit(1)
	}

	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("became sweep leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting http server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down auction marketplace service")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sweeper.Stop(); err != nil {
		log.Error("failed to stop sweeper", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("failed to release leadership", "error", err)
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	dispatcher.Close()

	log.Info("auction marketplace service stopped")
}
