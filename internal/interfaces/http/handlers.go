package http

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/image-annotation/internal/application/service"
	"github.com/garyjia/image-annotation/internal/application/workflow"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	domainwf "github.com/garyjia/image-annotation/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine  workflow.Engine
	users   service.UserService
	archive service.ArchiveService
	health  HealthFunc
	logger  Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine workflow.Engine,
	users service.UserService,
	archive service.ArchiveService,
	health HealthFunc,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:  engine,
		users:   users,
		archive: archive,
		health:  health,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// CreateTasksRequest is the body of POST /api/tasks
type CreateTasksRequest struct {
	Images []entity.ImageRef `json:"images"`
}

// SubmitAnnotationRequest is the body of POST /api/tasks/:id/annotation
type SubmitAnnotationRequest struct {
	Label          string   `json:"label"`
	Confidence     *float64 `json:"confidence"`
	ElapsedSeconds *int64   `json:"elapsed_seconds"`
}

// AssignTaskRequest is the body of PUT /api/tasks/:id/assign
type AssignTaskRequest struct {
	AssigneeID int64 `json:"assignee_id"`
}

// DecideReviewRequest is the body of POST /api/annotations/:id/review
type DecideReviewRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

// BatchReviewRequest is the body of POST /api/reviews/batch
type BatchReviewRequest struct {
	Reviews []workflow.ReviewInput `json:"reviews"`
}

// ListRequest represents the paging query parameters shared by listings
type ListRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

func (r ListRequest) page() entity.Page {
	return entity.Page{Limit: r.Limit, Offset: r.Offset}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	healthy := true
	if h.health != nil {
		healthy, response.Components = h.health(c.Request.Context())
	}

	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, Response{
		Success: healthy,
		Data:    response,
	})
}

// CreateTasks handles POST /api/tasks
func (h *Handlers) CreateTasks(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req CreateTasksRequest
	if !h.bindJSON(c, &req) {
		return
	}

	tasks, err := h.engine.CreateTasks(c.Request.Context(), actor, req.Images)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    tasks,
	})
}

// ListTasks handles GET /api/tasks
func (h *Handlers) ListTasks(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	req, ok := h.bindList(c)
	if !ok {
		return
	}

	filter := entity.TaskFilter{Page: req.page()}
	if req.Status != "" {
		status := domainwf.State(req.Status)
		filter.Status = &status
	}

	page, err := h.engine.ListAssignable(c.Request.Context(), actor, filter)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    page,
	})
}

// GetTask handles GET /api/tasks/:id
func (h *Handlers) GetTask(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "task")
	if !ok {
		return
	}

	detail, err := h.engine.GetTask(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    detail,
	})
}

// ClaimTask handles POST /api/tasks/:id/claim
func (h *Handlers) ClaimTask(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "task")
	if !ok {
		return
	}

	task, err := h.engine.Claim(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    task,
	})
}

// SubmitAnnotation handles POST /api/tasks/:id/annotation
func (h *Handlers) SubmitAnnotation(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "task")
	if !ok {
		return
	}

	var req SubmitAnnotationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	outcome, err := h.engine.SubmitAnnotation(c.Request.Context(), actor, workflow.SubmitInput{
		TaskID:         id,
		Label:          entity.Label(req.Label),
		Confidence:     req.Confidence,
		ElapsedSeconds: req.ElapsedSeconds,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    outcome,
	})
}

// AssignTask handles PUT /api/tasks/:id/assign
func (h *Handlers) AssignTask(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "task")
	if !ok {
		return
	}

	var req AssignTaskRequest
	if !h.bindJSON(c, &req) {
		return
	}

	task, err := h.engine.AssignTask(c.Request.Context(), actor, id, req.AssigneeID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    task,
	})
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *Handlers) DeleteTask(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "task")
	if !ok {
		return
	}

	if err := h.engine.DeleteTask(c.Request.Context(), actor, id); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"deleted": id},
	})
}

// ReviewQueue handles GET /api/reviews
func (h *Handlers) ReviewQueue(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	req, ok := h.bindList(c)
	if !ok {
		return
	}

	page, err := h.archive.ReviewQueue(c.Request.Context(), actor, entity.ReviewQueueStatus(req.Status), req.page())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    page,
	})
}

// DecideReview handles POST /api/annotations/:id/review
func (h *Handlers) DecideReview(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "annotation")
	if !ok {
		return
	}

	var req DecideReviewRequest
	if !h.bindJSON(c, &req) {
		return
	}

	outcome, err := h.engine.DecideReview(c.Request.Context(), actor, workflow.ReviewInput{
		AnnotationID: id,
		Decision:     entity.Decision(req.Decision),
		Comment:      req.Comment,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    outcome,
	})
}

// BatchDecideReview handles POST /api/reviews/batch
func (h *Handlers) BatchDecideReview(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req BatchReviewRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.engine.BatchDecideReview(c.Request.Context(), actor, req.Reviews)
	if err != nil {
		if result != nil {
			h.logger.Error("Batch review stopped early", "applied", result.Applied, "error", err)
		}
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// ListCompleted handles GET /api/completed
func (h *Handlers) ListCompleted(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	req, ok := h.bindList(c)
	if !ok {
		return
	}

	page, err := h.archive.ListCompleted(c.Request.Context(), actor, req.page())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    page,
	})
}

// ExportCompleted handles GET /api/completed/export
func (h *Handlers) ExportCompleted(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	// Render fully before writing so a failed export never sends a truncated file
	var buf bytes.Buffer
	contentType, err := h.archive.ExportCompleted(c.Request.Context(), actor, &buf)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	filename := "completed_" + time.Now().UTC().Format("20060102_150405") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// CreateUser handles POST /api/users
func (h *Handlers) CreateUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req service.CreateUserInput
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    user,
	})
}

// ListUsers handles GET /api/users
func (h *Handlers) ListUsers(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	req, ok := h.bindList(c)
	if !ok {
		return
	}

	users, err := h.users.ListUsers(c.Request.Context(), actor, req.page())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if users == nil {
		users = []*entity.User{}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    users,
	})
}

// Helper functions

func (h *Handlers) actor(c *gin.Context) (workflow.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, Response{
			Success: false,
			Error:   "caller identity not resolved",
		})
	}
	return actor, ok
}

func (h *Handlers) pathID(c *gin.Context, what string) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid " + what + " ID",
			Kind:    "invalid",
		})
		return 0, false
	}
	return id, true
}

func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body: " + err.Error(),
			Kind:    "invalid",
		})
		return false
	}
	return true
}

func (h *Handlers) bindList(c *gin.Context) (ListRequest, bool) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
			Kind:    "invalid",
		})
		return req, false
	}
	return req, true
}
