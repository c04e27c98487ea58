package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/bennet-campus/campus-api/api/swagger"
	"github.com/bennet-campus/campus-api/internal/handler"
	"github.com/bennet-campus/campus-api/internal/middleware"
	"github.com/bennet-campus/campus-api/internal/models"
	"github.com/bennet-campus/campus-api/internal/repository"
	"github.com/bennet-campus/campus-api/internal/service"
	"github.com/bennet-campus/campus-api/pkg/cache"
	"github.com/bennet-campus/campus-api/pkg/config"
	"github.com/bennet-campus/campus-api/pkg/database"
	"github.com/bennet-campus/campus-api/pkg/logger"
	corsmiddleware "github.com/bennet-campus/campus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/bennet-campus/campus-api/pkg/middleware/requestid"
	"github.com/bennet-campus/campus-api/pkg/qr"
)

// @title Campus Portal API
// @version 0.1.0
// @description Timetable, QR attendance, and student directory service
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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Scan sessions and the stats cache degrade gracefully without Redis.
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campus-api",
	})
	classSvc := service.NewClassService(classRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(
		attendanceRepo,
		classRepo,
		studentRepo,
		cacheRepo,
		qr.NewPNGEncoder(),
		metricsSvc,
		validate,
		logr,
		service.AttendanceConfig{
			QRImageSize:    cfg.Attendance.QRImageSize,
			ScanSessionTTL: cfg.Attendance.ScanSessionTTL,
			StatsCacheTTL:  cfg.Attendance.StatsCacheTTL,
		},
	)

	authHandler := handler.NewAuthHandler(authSvc)
	classHandler := handler.NewClassHandler(classSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
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
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	classes := api.Group("/classes", middleware.JWT(authSvc))
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.POST("", middleware.RequireRoles(models.RoleAdmin), classHandler.Create)
		classes.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), classHandler.Update)
		classes.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), classHandler.Delete)
		classes.POST("/:id/token", middleware.RequireRoles(models.RoleAdmin), attendanceHandler.MintToken)
		classes.GET("/:id/token/qr", middleware.RequireRoles(models.RoleAdmin), attendanceHandler.TokenQR)
	}

	attendance := api.Group("/attendance", middleware.JWT(authSvc))
	{
		attendance.POST("/scan-sessions", middleware.RequireRoles(models.RoleStudent), attendanceHandler.OpenScanSession)
		attendance.POST("/redeem", middleware.RequireRoles(models.RoleStudent), attendanceHandler.Redeem)
		attendance.PUT("", middleware.RequireRoles(models.RoleAdmin), attendanceHandler.Override)
		attendance.GET("/status", attendanceHandler.Status)
		attendance.GET("/stats", middleware.RequireRoles(models.RoleAdmin), attendanceHandler.Stats)
		attendance.GET("/sheet", middleware.RequireRoles(models.RoleAdmin), attendanceHandler.Sheet)
		attendance.GET("/history", attendanceHandler.History)
	}

	students := api.Group("/students", middleware.JWT(authSvc))
	{
		students.GET("", studentHandler.List)
		students.GET("/:id", studentHandler.Get)
		students.POST("", middleware.RequireRoles(models.RoleAdmin), studentHandler.Create)
		students.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), studentHandler.Update)
		students.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), studentHandler.Delete)
		students.POST("/import", middleware.RequireRoles(models.RoleAdmin), studentHandler.Import)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
