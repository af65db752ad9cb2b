package main

// @title Couponly Settlement API
// @version 1.0
// @description Atomic coupon redemption and affiliate settlement core.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jordanlanch/couponly/config"
	_ "github.com/jordanlanch/couponly/docs" // Swagger docs
	"github.com/jordanlanch/couponly/pkg/api/handlers"
	"github.com/jordanlanch/couponly/pkg/attribution"
	"github.com/jordanlanch/couponly/pkg/audit"
	"github.com/jordanlanch/couponly/pkg/cache"
	"github.com/jordanlanch/couponly/pkg/creditkey"
	"github.com/jordanlanch/couponly/pkg/export"
	"github.com/jordanlanch/couponly/pkg/jobs"
	"github.com/jordanlanch/couponly/pkg/metrics"
	custommiddleware "github.com/jordanlanch/couponly/pkg/middleware"
	"github.com/jordanlanch/couponly/pkg/notify"
	"github.com/jordanlanch/couponly/pkg/payout"
	"github.com/jordanlanch/couponly/pkg/settle"
	"github.com/jordanlanch/couponly/pkg/store"
	"github.com/jordanlanch/couponly/pkg/store/memory"
	"github.com/jordanlanch/couponly/pkg/store/postgres"
	"github.com/jordanlanch/couponly/pkg/testdata"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.APIEnvironment,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.APIEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Select the storage backend
	var st store.Store
	var pg *postgres.Store
	switch cfg.StoreBackend {
	case "memory":
		st = memory.New()
		log.Println("⚠️  Using in-memory store; data is lost on restart")
	default:
		var err error
		pg, err = postgres.Open(cfg.DatabaseURL, postgres.DefaultPoolConfig())
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer pg.Close()
		st = pg
	}

	// Initialize Redis cache for attribution tokens
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Printf("⚠️  Redis unavailable, attribution falls back to persisted clicks: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Core services
	auditor := audit.NewService(nil)
	notifier := notify.NewService(cfg.EmailFrom, cfg.EmailFromName, cfg.SendGridAPIKey)
	engine := settle.NewEngine(st, auditor, notifier)
	attributionSvc := attribution.NewService(st, redisClient)
	payoutSvc := payout.NewService(st, notifier, auditor)
	creditKeySvc := creditkey.NewService(st, auditor, notifier)

	exportSvc, err := export.NewService(st, export.Config{
		StoragePath:        cfg.ExportStoragePath,
		AWSAccessKeyID:     cfg.AWSAccessKeyID,
		AWSSecretAccessKey: cfg.AWSSecretAccessKey,
		AWSRegion:          cfg.AWSRegion,
		S3Bucket:           cfg.S3Bucket,
	})
	if err != nil {
		log.Fatalf("❌ Failed to initialize export service: %v", err)
	}

	// Development seeding
	if cfg.SeedOnStartup {
		seeder := testdata.NewSeeder(st, attributionSvc)
		if err := seeder.Seed(context.Background(), testdata.DefaultSeederConfig()); err != nil {
			log.Printf("⚠️  Seeding failed: %v", err)
		}
	}

	// Scheduled jobs
	cronManager := jobs.NewCronManager(payoutSvc, nil)
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to set up cron jobs: %v", err)
	}
	cronManager.Start()
	defer cronManager.Stop()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Rate limiters. The portal limiter is tighter than the global one and
	// covers the unauthenticated redemption and tracking endpoints.
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	portalRateLimiter := custommiddleware.NewRateLimiter(20, 5)

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(prometheusMetrics.Middleware())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
		},
		AllowCredentials: true,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Handlers
	redemptionHandler := handlers.NewRedemptionHandler(engine, attributionSvc, prometheusMetrics)
	affiliateHandler := handlers.NewAffiliateHandler(attributionSvc, payoutSvc, prometheusMetrics, cfg.FrontendURL)
	payoutHandler := handlers.NewPayoutHandler(payoutSvc, prometheusMetrics)
	creditKeyHandler := handlers.NewCreditKeyHandler(creditKeySvc, prometheusMetrics)
	adminHandler := handlers.NewAdminHandler(cronManager, exportSvc, prometheusMetrics)

	// Health check endpoint (public)
	e.GET("/health", func(c echo.Context) error {
		if redisClient != nil {
			if _, err := redisClient.Redis.Ping(c.Request().Context()).Result(); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]any{
					"status": "unhealthy",
					"cache":  "down",
				})
			}
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status": "healthy",
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Swagger documentation (public)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Tracking redirect (public)
	e.GET("/t/:code", affiliateHandler.Click, portalRateLimiter.RateLimitMiddleware())

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Public portal endpoints
	v1.POST("/redemptions", redemptionHandler.Redeem, portalRateLimiter.RateLimitMiddleware())
	v1.PATCH("/redemptions/:id/details", redemptionHandler.AttachDetails)
	v1.POST("/credit-keys/activate", creditKeyHandler.Activate)

	// Authenticated endpoints
	authed := v1.Group("", custommiddleware.JWTAuth(cfg.JWTSecret))
	authed.POST("/affiliate/links", affiliateHandler.CreateLink)
	authed.POST("/affiliate/conversions", affiliateHandler.RecordConversion)
	authed.GET("/affiliate/:id/stats", affiliateHandler.GetStats)
	authed.POST("/affiliate/payouts", payoutHandler.RequestPayout)
	authed.POST("/credit-requests", creditKeyHandler.SubmitRequest)

	// Admin endpoints
	admin := v1.Group("/admin", custommiddleware.JWTAuth(cfg.JWTSecret), custommiddleware.RequireAdmin())
	admin.POST("/payouts/:id/resolve", payoutHandler.ResolvePayout)
	admin.POST("/credit-requests/:id/key", creditKeyHandler.IssueKey)
	admin.POST("/sweep", adminHandler.RunSweep)
	admin.GET("/export/ledger", adminHandler.ExportLedger)

	// Start server
	go func() {
		addr := cfg.APIHost + ":" + cfg.APIPort
		log.Printf("🚀 Server starting on %s", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
