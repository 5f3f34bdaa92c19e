// Package api wires together all HTTP routes for the Scholaris backend.
//
// Route grouping philosophy:
//   - Operational probes (/health, /ready, /version) are unauthenticated so
//     that load balancers and orchestrators can reach them without
//     credentials.
//   - POST /api/v1/auth/token exchanges username/password credentials for a
//     bearer token. It is unauthenticated by necessity but rate limited.
//   - Everything else under /api/v1/ requires a bearer token; the
//     authenticated actor's current role drives the query engine's category
//     scoping.
package api

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	auditapi "github.com/scholaris/scholaris/internal/api/audit"
	"github.com/scholaris/scholaris/internal/audit"
	"github.com/scholaris/scholaris/internal/cache"
	"github.com/scholaris/scholaris/internal/config"
	"github.com/scholaris/scholaris/internal/db/repositories"
	"github.com/scholaris/scholaris/internal/middleware"
)

// BackgroundServices holds resources that must be released during graceful
// shutdown. The caller (cmd/server) is responsible for calling Shutdown()
// after the HTTP server has drained in-flight requests.
type BackgroundServices struct {
	rateLimiter middleware.Limiter
	shipper     audit.Shipper
	statsCache  *cache.StatsCache
	redisClient *redis.Client
}

// Shutdown stops background goroutines and closes external connections.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.rateLimiter != nil {
		bg.rateLimiter.Stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Error("failed to close audit shippers", "error", err)
		}
	}
	if bg.statsCache != nil {
		if err := bg.statsCache.Close(); err != nil {
			slog.Error("failed to close stats cache", "error", err)
		}
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Error("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Wrap *sql.DB with sqlx for the report repository
	sqlxDB := sqlx.NewDb(db, "postgres")
	reportRepo := repositories.NewReportRepository(sqlxDB)

	// Redis backs both the shared rate-limit budget and the short-TTL stats
	// cache. When it is not configured the limiter falls back to a per-process
	// token bucket and stats queries always hit Postgres.
	var (
		redisClient *redis.Client
		statsCache  *cache.StatsCache
		rateLimiter middleware.Limiter
	)
	rlConfig := middleware.DefaultRateLimitConfig()
	if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
		rlConfig.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
	}
	if cfg.Security.RateLimiting.Burst > 0 {
		rlConfig.BurstSize = cfg.Security.RateLimiting.Burst
	}
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		statsCache = cache.NewStatsCache(redisClient, cfg.Redis.KeyPrefix)
		rateLimiter = middleware.NewRedisLimiter(redisClient, rlConfig)
		log.Println("Redis connected: shared rate limiting and stats caching enabled")
	} else {
		rateLimiter = middleware.NewMemoryLimiter(rlConfig)
	}

	// External audit destinations (webhook / file). Optional; a nil shipper
	// means entries stay in Postgres only.
	shipper, err := audit.NewMultiShipper(shipperConfigs(cfg.Audit.Shippers))
	if err != nil {
		log.Fatalf("Failed to initialize audit shippers: %v", err)
	}

	recorder := newRecorder(auditRepo, shipper)
	var queryCache audit.StatsCache
	if statsCache != nil {
		queryCache = statsCache
	}
	query := audit.NewQueryService(auditRepo, reportRepo, queryCache)

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint (includes redis probe when configured)
	router.GET("/ready", readinessHandler(db, redisClient))

	// API version
	router.GET("/version", versionHandler())

	auditHandlers := auditapi.NewHandlers(recorder, query)

	// Token issuance is the one /api/v1 route that cannot require a token.
	// It still shares the rate-limit budget so credential stuffing is throttled.
	authGroup := router.Group("/api/v1/auth")
	if cfg.Security.RateLimiting.Enabled {
		authGroup.Use(middleware.RateLimitMiddleware(rateLimiter))
	}
	authGroup.POST("/token", tokenHandler(userRepo, cfg.Auth.TokenTTL))

	apiV1 := router.Group("/api/v1")
	if cfg.Security.RateLimiting.Enabled {
		apiV1.Use(middleware.RateLimitMiddleware(rateLimiter))
	}
	apiV1.Use(middleware.AuthMiddleware(userRepo))
	{
		auditGroup := apiV1.Group("/audit")
		{
			auditGroup.POST("", auditHandlers.AppendEntry)
			auditGroup.GET("", auditHandlers.ListEntries)
			auditGroup.GET("/recent", auditHandlers.RecentEntries)
			auditGroup.GET("/stats", auditHandlers.Stats)
			auditGroup.GET("/categories/:category", auditHandlers.EntriesByCategory)
			auditGroup.GET("/actors/:id", auditHandlers.EntriesByActor)
			auditGroup.GET("/:id", auditHandlers.GetEntry)
		}
	}

	bg := &BackgroundServices{
		rateLimiter: rateLimiter,
		shipper:     shipper,
		statsCache:  statsCache,
		redisClient: redisClient,
	}

	return router, bg
}

// newRecorder avoids handing NewRecorder a non-nil interface wrapping a nil
// *MultiShipper when no destination is enabled.
func newRecorder(repo *repositories.AuditRepository, ms *audit.MultiShipper) *audit.Recorder {
	if ms == nil {
		return audit.NewRecorder(repo, nil)
	}
	return audit.NewRecorder(repo, ms)
}

// shipperConfigs maps the configuration file's shipper section onto the audit
// package's destination configs.
func shipperConfigs(configs []config.AuditShipperConfig) []audit.ShipperConfig {
	out := make([]audit.ShipperConfig, 0, len(configs))
	for _, c := range configs {
		sc := audit.ShipperConfig{Enabled: c.Enabled, Type: c.Type}
		if c.Webhook != nil {
			sc.Webhook = &audit.WebhookConfig{
				URL:     c.Webhook.URL,
				Headers: c.Webhook.Headers,
				Timeout: time.Duration(c.Webhook.TimeoutSecs) * time.Second,
			}
		}
		if c.File != nil {
			sc.File = &audit.FileConfig{
				Path:       c.File.Path,
				MaxSizeMB:  c.File.MaxSizeMB,
				MaxBackups: c.File.MaxBackups,
			}
		}
		out = append(out, sc)
	}
	return out
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service. Unlike the
// liveness probe (/health), this also pings Redis when it is configured so
// that a Kubernetes readiness gate fails when the shared rate limiter and
// stats cache would error.
func readinessHandler(db *sql.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				checks["redis"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "redis not ready",
				})
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID, _ := c.Get(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", fmt.Sprintf("%v", requestID)),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the
	// global handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
