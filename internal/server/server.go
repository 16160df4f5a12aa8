package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"recallgraph/internal/graph"
	"recallgraph/internal/ingest"
	"recallgraph/internal/jobs"
	"recallgraph/internal/store"
	"recallgraph/pkg/config"
	"recallgraph/pkg/logger"
	"go.uber.org/zap"
)

// Server wires the HTTP API over the pipeline and query services
type Server struct {
	cfg      *config.Config
	jobStore *store.JobStore
	drainer  *jobs.Drainer
	pipeline *ingest.Orchestrator
	query    *graph.QueryService
	related  *graph.RelatedService
	logger   *zap.Logger
}

// New creates the server
func New(cfg *config.Config, jobStore *store.JobStore, drainer *jobs.Drainer, pipeline *ingest.Orchestrator, query *graph.QueryService, related *graph.RelatedService) *Server {
	return &Server{
		cfg:      cfg,
		jobStore: jobStore,
		drainer:  drainer,
		pipeline: pipeline,
		query:    query,
		related:  related,
		logger:   logger.Get(),
	}
}

// Router builds the gin engine with middleware and routes
func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestLogger(s.logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/graph")
	{
		api.POST("/enqueue", s.handleEnqueue)
		api.POST("/upsert", s.handleUpsert)
		api.GET("/query", s.handleQuery)
		api.GET("/related", s.handleRelated)

		admin := api.Group("")
		admin.Use(requireAdmin(s.cfg.AdminSecret))
		{
			admin.POST("/drain", s.handleDrain)
			admin.GET("/dead-letters", s.handleDeadLetters)
		}
	}

	return router
}

// requireAdmin enforces the shared-secret header on admin routes. An empty
// configured secret allows everything (dev mode).
func requireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-Admin-Secret") != secret {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Admin-Secret")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// requestLogger logs each request with latency and status
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
