package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"recallgraph/internal/graph"
	"recallgraph/internal/store"
	apperrors "recallgraph/pkg/errors"
	"go.uber.org/zap"
)

type savePointerRequest struct {
	SaveID    string `json:"save_id" binding:"required"`
	UserPhone string `json:"user_phone" binding:"required"`
}

// handleEnqueue creates a pending graph job for a save. Called by the
// external save-creation service after it records a save.
func (s *Server) handleEnqueue(c *gin.Context) {
	var req savePointerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.jobStore.Enqueue(c.Request.Context(), req.SaveID, req.UserPhone)
	if err != nil {
		s.logger.Error("Failed to enqueue job", zap.String("save_id", req.SaveID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"job_id": job.ID,
		"status": job.Status,
	})
}

type drainRequest struct {
	BatchSize int `json:"batch_size"`
}

// handleDrain runs one drain invocation over the job queue
func (s *Server) handleDrain(c *gin.Context) {
	var req drainRequest
	// Empty body means defaults; only a malformed body is rejected.
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.drainer.Drain(c.Request.Context(), req.BatchSize)
	if err != nil {
		s.logger.Error("Drain failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "drain failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleUpsert runs the extract-and-upsert pipeline synchronously for one
// save, outside the job queue.
func (s *Server) handleUpsert(c *gin.Context) {
	var req savePointerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.pipeline.ProcessSave(c.Request.Context(), req.SaveID, req.UserPhone)
	if err != nil {
		if apperrors.GetErrorType(err) == apperrors.ErrorTypeStore && apperrors.IsTerminal(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "save not found"})
			return
		}
		s.logger.Error("Upsert failed", zap.String("save_id", req.SaveID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upsert failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":             true,
		"graph_active":   result.GraphActive,
		"entity_count":   result.EntityCount,
		"relation_count": result.RelationCount,
		"entities":       result.Entities,
	})
}

// handleQuery serves a clamped subgraph for visualization. Never 5xx: store
// problems degrade to an empty payload with a message in meta.
func (s *Server) handleQuery(c *gin.Context) {
	phone := c.Query("user_phone")
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_phone is required"})
		return
	}

	resp := s.query.Query(c.Request.Context(), graph.QueryRequest{
		Phone:         phone,
		LimitNodes:    intQuery(c, "limit_nodes"),
		MinEdgeWeight: floatQuery(c, "min_edge_weight"),
	})

	c.JSON(http.StatusOK, resp)
}

// handleRelated serves the related-saves traversal
func (s *Server) handleRelated(c *gin.Context) {
	phone := c.Query("user_phone")
	entityKey := c.Query("entity_key")
	entityName := c.Query("entity_name")
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_phone is required"})
		return
	}
	if entityKey == "" && entityName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity_key or entity_name is required"})
		return
	}

	resp := s.related.Related(c.Request.Context(), graph.RelatedRequest{
		Phone:      phone,
		EntityKey:  entityKey,
		EntityName: entityName,
		Hops:       intQuery(c, "hops"),
		Limit:      intQuery(c, "limit"),
	})

	c.JSON(http.StatusOK, resp)
}

// handleDeadLetters lists dead-lettered jobs for manual remediation
func (s *Server) handleDeadLetters(c *gin.Context) {
	letters, err := s.jobStore.ListDeadLetters(c.Request.Context(), c.Query("user_phone"), intQuery(c, "limit"))
	if err != nil {
		s.logger.Error("Failed to list dead letters", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list dead letters"})
		return
	}
	if letters == nil {
		letters = []store.DeadLetter{}
	}

	c.JSON(http.StatusOK, gin.H{"dead_letters": letters})
}

func intQuery(c *gin.Context, key string) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func floatQuery(c *gin.Context, key string) float64 {
	if v := c.Query(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}
