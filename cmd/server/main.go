package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mocklab/mockgate/internal/callback"
	"github.com/mocklab/mockgate/internal/config"
	"github.com/mocklab/mockgate/internal/handler"
	"github.com/mocklab/mockgate/internal/pkg/logger"
	"github.com/mocklab/mockgate/internal/placeholder"
	"github.com/mocklab/mockgate/internal/repository"
	"github.com/mocklab/mockgate/internal/service"
	"github.com/mocklab/mockgate/internal/stream"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 0. Initialize Logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	// 2. Initialize Persistence
	// Entities and endpoints: Postgres > memory only
	// Traffic: Postgres, Redis, then the in-memory ring; optional JSONL archive
	var (
		entityRepo   service.EntityRepo
		trafficRepos []service.TrafficSink
		redisClient  *repository.RedisClient
		archive      *service.TrafficArchive
	)
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			err = repository.Migrate(db)
		}
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			entityRepo = repository.NewPostgresEntityRepo(db)
			trafficRepos = append(trafficRepos, repository.NewPostgresTrafficRepo(db, cfg.Traffic.MaxEntriesPerEntity))
		} else {
			logger.Error("⚠️ Failed to connect to DB, entities will not survive restart", "error", err)
		}
	}
	if cfg.Redis.Addr != "" {
		client, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			redisClient = client
			trafficRepos = append(trafficRepos, repository.NewRedisTrafficRepo(client, cfg.Redis.TrafficKeyBase, cfg.Traffic.MaxEntriesPerEntity))
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}

	if cfg.Traffic.ArchiveDir != "" {
		a, err := service.NewTrafficArchive(cfg.Traffic.ArchiveDir)
		if err == nil {
			archive = a
			trafficRepos = append(trafficRepos, a)
		} else {
			logger.Error("⚠️ Failed to open traffic archive", "dir", cfg.Traffic.ArchiveDir, "error", err)
		}
	}

	// 3. Initialize Core Services
	hub := stream.NewHub(cfg.Stream.SendBuffer)
	trafficSvc := service.NewTrafficService(cfg.Traffic, hub, trafficRepos...)
	engine := placeholder.New()
	dispatcher := callback.New(engine, callback.Config{
		Timeout:  time.Duration(cfg.Callback.TimeoutMs) * time.Millisecond,
		MaxDelay: time.Duration(cfg.Callback.MaxDelayMs) * time.Millisecond,
	})

	manager := service.NewEntityManager(cfg.Rate)
	entitySvc := service.NewEntityService(manager, entityRepo, trafficSvc, cfg.Mock.MaxDelayMs)
	endpointSvc := service.NewEndpointService(manager, entityRepo, cfg.Mock.MaxDelayMs)
	mockSvc := service.NewMockService(manager, engine, trafficSvc, dispatcher)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := entitySvc.Bootstrap(bootCtx, cfg.Entities); err != nil {
		bootCancel()
		log.Fatalf("Failed to load entities: %v", err)
	}
	bootCancel()

	// 4. Setup Router
	r := gin.New()
	r.Use(gin.Recovery())
	handler.RegisterRoutes(r, cfg, manager, handler.Handlers{
		Mock:     handler.NewMockHandler(mockSvc, cfg.Mock.MaxBodyBytes),
		Entity:   handler.NewEntityHandler(entitySvc),
		Endpoint: handler.NewEndpointHandler(endpointSvc),
		Traffic:  handler.NewTrafficHandler(trafficSvc, manager),
		Stream: handler.NewStreamHandler(hub, stream.ClientConfig{
			PingInterval: time.Duration(cfg.Stream.PingIntervalSeconds) * time.Second,
			WriteTimeout: time.Duration(cfg.Stream.WriteTimeoutSeconds) * time.Second,
		}),
	})

	// 5. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 mockgate started", "port", cfg.Server.Port, "entities", len(manager.ListEntities()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	timeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	// websocket 连接已被劫持, 需要单独关闭
	hub.Close()
	if err := dispatcher.Close(ctx); err != nil {
		logger.Warn("pending callbacks abandoned", "error", err)
	}
	if err := trafficSvc.Close(ctx); err != nil {
		logger.Warn("traffic queue not fully flushed", "error", err)
	}
	if archive != nil {
		_ = archive.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("Server exiting")
}
