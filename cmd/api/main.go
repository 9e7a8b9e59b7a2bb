package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "stockroom/api/swagger" // swagger docs
	"stockroom/internal/cache"
	"stockroom/internal/config"
	"stockroom/internal/database"
	"stockroom/internal/handler"
	"stockroom/internal/middleware"
	"stockroom/internal/observability"
	"stockroom/internal/repository"
	"stockroom/internal/service"
	"stockroom/internal/websocket"
	"stockroom/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// @title           Stockroom API
// @version         1.0
// @description     Product catalog, shipment tasks and sales statistics.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitTracing(ctx, cfg, log)

	db, err := database.NewConnection(ctx, cfg.DSN(), log)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	log.Info("connected to PostgreSQL", "host", cfg.DBHost, "db", cfg.DBName)

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run(ctx)

	statsCache := newStatisticsCache(ctx, cfg, log)
	defer statsCache.Close()

	// Set up dependencies (Repository -> Service -> Handler)
	productRepo := repository.NewProductRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	invTxRepo := repository.NewInventoryTxRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	inventoryService := service.NewInventoryService(productRepo, invTxRepo, auditRepo, txManager, statsCache, wsHub, log)
	taskService := service.NewTaskService(taskRepo, productRepo, invTxRepo, auditRepo, txManager, statsCache, wsHub, log)
	statisticsService := service.NewStatisticsService(taskRepo, productRepo, statsCache, cfg.StatsLocation, log)
	auditService := service.NewAuditService(auditRepo)

	if err := handler.RegisterValidators(); err != nil {
		log.Fatal("register validators", "error", err)
	}

	auth := middleware.NewAuth(cfg.JWTSecret)
	inventoryHandler := handler.NewInventoryHandler(inventoryService, auth)
	taskHandler := handler.NewTaskHandler(taskService, auth)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService, auth)
	auditHandler := handler.NewAuditHandler(auditService, auth)

	// Set up Gin Router
	gin.SetMode(cfg.GinMode)
	router := gin.Default()
	router.Use(otelgin.Middleware(observability.ServiceName))
	router.Use(middleware.ErrorLogger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth.Secret())
	})

	api := router.Group("")
	inventoryHandler.RegisterRoutes(api)
	taskHandler.RegisterRoutes(api)
	statisticsHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "error", err)
	}
}

// newStatisticsCache prefers redis when REDIS_ADDR is set and falls back to process memory
func newStatisticsCache(ctx context.Context, cfg *config.Config, log *logger.Logger) cache.StatisticsCache {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.StatsCacheTTL)
	}
	c, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.StatsCacheTTL, log)
	if err != nil {
		log.Warn("redis unavailable, using in-memory statistics cache", "addr", cfg.RedisAddr, "error", err)
		return cache.NewMemory(cfg.StatsCacheTTL)
	}
	return c
}
