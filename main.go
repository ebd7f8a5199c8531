package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"civiceye/cache"
	"civiceye/config"
	"civiceye/database"
	"civiceye/detector"
	"civiceye/handlers"
	"civiceye/imagestore"
	"civiceye/metrics"
	"civiceye/middleware"
	"civiceye/notifier"
	"civiceye/rabbitmq"
	"civiceye/service"
	"civiceye/version"
	ws "civiceye/websocket"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting the civiceye service...")
	metrics.Register()

	// Initialize database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.CreateReportsTable(); err != nil {
		log.Fatalf("Failed to create reports table: %v", err)
	}
	if err := db.MigrateReportsTable(); err != nil {
		log.Fatalf("Failed to migrate reports table: %v", err)
	}

	// Initialize image storage
	images, err := imagestore.New(cfg.ImageDir)
	if err != nil {
		log.Fatalf("Failed to initialize image store: %v", err)
	}

	// Initialize the fake detector
	det := detector.New(detector.Config{
		ContentWeight:     cfg.ContentWeight,
		SimilarityWeight:  cfg.SimilarityWeight,
		ProximityWeight:   cfg.ProximityWeight,
		TemporalWeight:    cfg.TemporalWeight,
		Threshold:         cfg.FakeThreshold,
		ProximityKm:       cfg.ProximityKm,
		NearScore:         cfg.NearScore,
		TemporalWindow:    cfg.TemporalWindow,
		MinTextLength:     cfg.MinTextLength,
		MinImageBytes:     cfg.MinImageBytes,
		MaxFeatures:       cfg.MaxFeatures,
		DisableVectorizer: cfg.DisableVectorizer,
	}, images)

	// Start the WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Optional fan-out channels: each one stays nil when unconfigured.
	var publisher *rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.Warnf("RabbitMQ unavailable, continuing without queue fan-out: %v", err)
			publisher = nil
		}
	}
	recentCache := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RecentCacheTTL)
	alerts := notifier.New(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName, cfg.ModeratorEmail)

	// Initialize service and start background re-detection
	svc := service.New(cfg, db, det, images, recentCache, publisher, hub, alerts)
	svc.Start()

	// Setup HTTP server
	router := setupRouter(cfg, svc, hub)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	svc.Stop()
	if publisher != nil {
		publisher.Close()
	}
	recentCache.Close()

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func setupRouter(cfg *config.Config, svc *service.Service, hub *ws.Hub) *gin.Engine {
	router := gin.Default()

	// Add gzip compression middleware
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	h := handlers.NewHandlers(svc, hub, cfg.MaxUploadBytes)

	// API routes
	api := router.Group("/api/v3")
	{
		api.POST("/reports", middleware.RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst), h.SubmitReport)
		api.GET("/reports/recent", h.GetRecentReports)
		api.GET("/reports/status", h.GetReportStatus)
		api.GET("/reports/image", h.GetReportImage)
		api.GET("/reports/hotspots", h.GetHotspots)

		// WebSocket endpoint for the flagged-report feed
		api.GET("/reports/listen", h.ListenFlagged)

		// Detailed health check endpoint
		api.GET("/reports/health", h.HealthCheck)

		// Moderation endpoints
		admin := api.Group("/admin", middleware.AuthMiddleware(cfg.JWTSecret))
		{
			admin.GET("/detection/info", h.GetDetectionInfo)
			admin.POST("/reports/status", h.UpdateReportStatus)
			admin.GET("/reports/flagged", h.GetFlaggedReports)
		}
	}

	// Root health check
	router.GET("/health", func(c *gin.Context) {
		if err := svc.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "civiceye",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get("civiceye"))
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}
