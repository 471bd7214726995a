package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/prabandh/portal-api/api/swagger"
	"github.com/prabandh/portal-api/internal/handler"
	"github.com/prabandh/portal-api/internal/middleware"
	"github.com/prabandh/portal-api/internal/models"
	"github.com/prabandh/portal-api/internal/repository"
	"github.com/prabandh/portal-api/internal/service"
	"github.com/prabandh/portal-api/pkg/cache"
	"github.com/prabandh/portal-api/pkg/config"
	"github.com/prabandh/portal-api/pkg/database"
	"github.com/prabandh/portal-api/pkg/export"
	"github.com/prabandh/portal-api/pkg/logger"
	corsmiddleware "github.com/prabandh/portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/prabandh/portal-api/pkg/middleware/requestid"
)

// @title Prabandh Portal API
// @version 1.0.0
// @description University administrative portal: leave workflow and balance ledger
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if cfg.Leave.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, balance cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}
	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Leave.BalanceCacheTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	routingRepo := repository.NewRoutingRepository(db)
	balanceRepo := repository.NewLeaveBalanceRepository(db)
	appRepo := repository.NewLeaveApplicationRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "prabandh-portal",
	})
	routingSvc := service.NewRoutingService(routingRepo, logr)
	leaveSvc := service.NewLeaveService(appRepo, balanceRepo, routingSvc, cacheSvc, metricsSvc, validate, logr)
	workflowSvc := service.NewLeaveWorkflowService(appRepo, balanceRepo, routingSvc, cacheSvc, metricsSvc, logr,
		service.WorkflowConfig{RefundOnReject: cfg.Leave.RefundOnReject})

	authHandler := handler.NewAuthHandler(authSvc)
	leaveHandler := handler.NewLeaveHandler(leaveSvc, workflowSvc, export.NewCSVExporter(), export.NewPDFExporter())
	routingHandler := handler.NewRoutingHandler(routingSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.POST("/logout-all", middleware.JWT(authSvc), authHandler.LogoutAll)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	leave := api.Group("/leave", middleware.JWT(authSvc))
	leave.GET("/types", leaveHandler.Catalog)
	leave.GET("/balances/me", leaveHandler.MyBalances)
	leave.POST("/applications", leaveHandler.Create)
	leave.GET("/applications", leaveHandler.List)
	leave.GET("/applications/export",
		middleware.RequireRoles(models.RoleHR, models.RoleAdmin), leaveHandler.Export)
	leave.GET("/applications/:id", leaveHandler.Get)
	leave.GET("/applications/:id/balance", leaveHandler.Balance)
	leave.POST("/applications/:id/approve",
		middleware.RequireRoles(models.ApproverRoles...), leaveHandler.Approve)
	leave.POST("/applications/:id/reject",
		middleware.RequireRoles(models.ApproverRoles...), leaveHandler.Reject)
	leave.POST("/applications/:id/forward",
		middleware.RequireRoles(models.ApproverRoles...), leaveHandler.Forward)

	routing := api.Group("/routing", middleware.JWT(authSvc))
	routing.GET("/roles", routingHandler.Roles)
	routing.GET("/roles/:role/people", routingHandler.People)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
