package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/backup"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/fallback"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/search"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/repository"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// Searcher serves the request-path lookups.
type Searcher interface {
	SearchDonors(ctx context.Context, q search.DonorSearch) (fallback.Result[model.DonorCandidate], error)
	MatchEmergency(ctx context.Context, req model.RequestContext) (search.MatchResult, error)
	BatchMatch(ctx context.Context, requests []model.RequestContext) (search.BatchResult, error)
	BloodBanks(ctx context.Context, location string, limit int) (fallback.Result[model.BloodBank], error)
	Availability(ctx context.Context, group model.BloodType, location string, limit int) (fallback.Result[model.BloodAvailability], error)
}

// Cache is the backup snapshot and its refresh controls.
type Cache interface {
	Health(ctx context.Context) backup.HealthReport
	State(ctx context.Context) (backup.CacheState, error)
	Refresh(ctx context.Context, force bool) (backup.RefreshResult, error)
	RecentMetrics(ctx context.Context, limit int) ([]model.CacheMetricsRecord, error)
	CachedBloodBanks(ctx context.Context, q repository.BankQuery) ([]model.BloodBank, error)
}

// Router wires HTTP handlers.
type Router struct {
	search  Searcher
	cache   Cache
	origins string
	logger  *zap.Logger
	// base outlives requests; refreshes started over HTTP run under it.
	base context.Context
}

// NewRouter builds the engine. ctx bounds refreshes triggered through the API.
func NewRouter(ctx context.Context, searcher Searcher, cache Cache, allowedOrigins string, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		search:  searcher,
		cache:   cache,
		origins: allowedOrigins,
		logger:  logger,
		base:    ctx,
	}

	router := gin.New()
	router.Use(r.requestLogger(), gin.Recovery(), r.corsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/compatibility/:bloodGroup", r.getCompatibility)
		api.GET("/donors/search", r.searchDonors)
		api.POST("/emergency/match", r.matchEmergency)
		api.POST("/emergency/batch-match", r.batchMatch)

		api.GET("/backup/blood-banks", r.listBloodBanks)
		api.GET("/backup/blood-banks/export", r.exportBloodBanks)
		api.GET("/backup/availability", r.listAvailability)
		api.GET("/backup/health", r.getHealth)
		api.GET("/backup/metrics", r.listMetrics)
		api.POST("/backup/refresh", r.startRefresh)
	}

	return router
}

func (r *Router) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header("X-Request-ID", rid)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", rid),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			r.logger.Error("request", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		r.logger.Info("request", fields...)
	}
}

// corsMiddleware echoes allowed origins back. An empty list allows any origin; other
// origins get no CORS headers.
func (r *Router) corsMiddleware() gin.HandlerFunc {
	origins := strings.Split(r.origins, ",")
	trimmed := make([]string, 0, len(origins))
	for _, o := range origins {
		if t := strings.TrimSpace(o); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	if len(trimmed) == 0 {
		trimmed = []string{"*"}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := ""
		for _, o := range trimmed {
			if o == "*" {
				allowed = "*"
				break
			}
			if o == origin {
				allowed = origin
				break
			}
		}
		if allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			if allowed != "*" {
				c.Header("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

// writeError maps validation failures to 400 and a double primary/backup failure to 503.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, search.ErrInvalidRequest),
		errors.Is(err, model.ErrInvalidBloodType),
		errors.Is(err, model.ErrMissingBloodType),
		errors.Is(err, model.ErrInvalidUrgency):
		status = http.StatusBadRequest
	case fallback.IsDegraded(err):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
