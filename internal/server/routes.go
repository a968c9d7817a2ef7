package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/handoff/internal/escalation"
	"github.com/zulandar/handoff/internal/models"
	"github.com/zulandar/handoff/internal/pipeline"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, coord *pipeline.Coordinator) {
	api := router.Group("/api")

	api.GET("/escalations", handleList(db))
	api.POST("/escalations", handleCreate(db))
	api.GET("/escalations/:id", handleGet(db))
	api.PUT("/escalations/:id", handleUpdate(db))
	api.DELETE("/escalations/:id", handleDelete(db))
	api.GET("/escalations/:id/audit", handleAudit(db))
	api.POST("/escalations/:id/post", handlePost(coord))
	api.POST("/escalations/:id/retry", handleRetry(coord))
	api.GET("/templates", handleTemplates(db))
}

// escalationInput is the JSON request body for create and update.
type escalationInput struct {
	TicketRef      string                 `json:"ticket_ref"`
	TemplateID     *int64                 `json:"template_id"`
	ProblemSummary string                 `json:"problem_summary"`
	Checklist      []models.ChecklistItem `json:"checklist"`
	CurrentStatus  string                 `json:"current_status"`
	NextSteps      string                 `json:"next_steps"`
}

// postRequest is the JSON request body for post and retry.
type postRequest struct {
	Files []string `json:"files"`
}

func handleList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := escalation.List(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summaries)
	}
}

func handleCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in escalationInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		esc, err := escalation.Create(db, storeInput(in))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, esc)
	}
}

func handleGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		esc, err := escalation.Get(db, id)
		if err != nil {
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, esc)
	}
}

func handleUpdate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var in escalationInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := escalation.Update(db, id, storeInput(in)); err != nil {
			writeStoreError(c, err)
			return
		}
		esc, err := escalation.Get(db, id)
		if err != nil {
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, esc)
	}
}

func handleDelete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := escalation.Delete(db, id); err != nil {
			writeStoreError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleAudit(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if _, err := escalation.Get(db, id); err != nil {
			writeStoreError(c, err)
			return
		}
		history, err := escalation.AuditHistory(db, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

func handlePost(coord *pipeline.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req postRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		result, err := coord.Post(c.Request.Context(), id, req.Files)
		if err != nil {
			writePipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleRetry(coord *pipeline.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req postRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		result, err := coord.Retry(c.Request.Context(), id, req.Files)
		if err != nil {
			writePipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleTemplates(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var templates []models.Template
		if err := db.Order("name ASC").Find(&templates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, templates)
	}
}

// parseID reads the :id path parameter. Writes a 400 and returns false when
// it is not an integer.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid escalation id"})
		return 0, false
	}
	return id, true
}

// storeInput converts the JSON body to a store input.
func storeInput(in escalationInput) escalation.Input {
	return escalation.Input{
		TicketRef:      in.TicketRef,
		TemplateID:     in.TemplateID,
		ProblemSummary: in.ProblemSummary,
		Checklist:      in.Checklist,
		CurrentStatus:  in.CurrentStatus,
		NextSteps:      in.NextSteps,
	}
}

// writeStoreError maps store errors to status codes.
func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, escalation.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, escalation.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// writePipelineError maps pipeline errors to status codes.
func writePipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, escalation.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrAlreadyPosted),
		errors.Is(err, pipeline.ErrNotInFailedState),
		errors.Is(err, pipeline.ErrAlreadyInProgress),
		errors.Is(err, escalation.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
