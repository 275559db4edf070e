package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"async-import/internal/domain"
	"async-import/internal/logger"
	"async-import/internal/middleware"
	"async-import/internal/progress"
	"async-import/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ImportHandler handles import-related HTTP requests.
type ImportHandler struct {
	importService service.ImportServiceInterface
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(importService service.ImportServiceInterface) *ImportHandler {
	return &ImportHandler{
		importService: importService,
	}
}

// TaskResponse represents an import task in the API response.
type TaskResponse struct {
	ID               string         `json:"id"`
	UserID           *string        `json:"user_id,omitempty"`
	Entity           string         `json:"entity"`
	File             string         `json:"file"`
	FileType         *string        `json:"file_type,omitempty"`
	Status           string         `json:"status"`
	Remark           *string        `json:"remark,omitempty"`
	TotalCount       int            `json:"total_count"`
	ProcessCount     int            `json:"process_count"`
	SuccessCount     int            `json:"success_count"`
	FailCount        int            `json:"fail_count"`
	Percentage       float64        `json:"percentage"`
	RetryCount       int            `json:"retry_count"`
	MaxRetries       int            `json:"max_retries"`
	Priority         int            `json:"priority"`
	ImportConfig     map[string]any `json:"import_config,omitempty"`
	LastErrorMessage *string        `json:"last_error_message,omitempty"`
	LastErrorTime    *string        `json:"last_error_time,omitempty"`
	MemoryUsage      int64          `json:"memory_usage"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
	StartedAt        *string        `json:"started_at,omitempty"`
	EndedAt          *string        `json:"ended_at,omitempty"`
}

// toTaskResponse converts a domain.Task to a TaskResponse.
func toTaskResponse(task *domain.Task) TaskResponse {
	response := TaskResponse{
		ID:               task.ID,
		UserID:           task.UserID,
		Entity:           task.Entity,
		File:             task.File,
		Status:           string(task.Status),
		Remark:           task.Remark,
		TotalCount:       task.TotalCount,
		ProcessCount:     task.ProcessCount,
		SuccessCount:     task.SuccessCount,
		FailCount:        task.FailCount,
		Percentage:       task.Percentage(),
		RetryCount:       task.RetryCount,
		MaxRetries:       task.MaxRetries,
		Priority:         task.Priority,
		ImportConfig:     task.ImportConfig,
		LastErrorMessage: task.LastErrorMessage,
		MemoryUsage:      task.MemoryUsage,
		CreatedAt:        task.CreatedAt.Format(TimeFormat),
		UpdatedAt:        task.UpdatedAt.Format(TimeFormat),
	}
	if task.FileType != nil {
		ft := string(*task.FileType)
		response.FileType = &ft
	}
	if task.LastErrorTime != nil {
		at := task.LastErrorTime.Format(TimeFormat)
		response.LastErrorTime = &at
	}
	if task.StartedAt != nil {
		startedAt := task.StartedAt.Format(TimeFormat)
		response.StartedAt = &startedAt
	}
	if task.EndedAt != nil {
		endedAt := task.EndedAt.Format(TimeFormat)
		response.EndedAt = &endedAt
	}
	return response
}

// TaskListResponse is one page of tasks.
type TaskListResponse struct {
	Items  []TaskResponse `json:"items"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ProgressResponse reports the progress of a task. Durations are seconds.
type ProgressResponse struct {
	TaskID         string   `json:"task_id"`
	Processed      int      `json:"processed"`
	Success        int      `json:"success"`
	Failed         int      `json:"failed"`
	Total          int      `json:"total"`
	Percentage     float64  `json:"percentage"`
	Speed          float64  `json:"speed"`
	ETASeconds     *float64 `json:"eta_seconds,omitempty"`
	ElapsedSeconds float64  `json:"elapsed_seconds"`
	Live           bool     `json:"live"`
}

func toProgressResponse(p *progress.Progress) ProgressResponse {
	response := ProgressResponse{
		TaskID:         p.TaskID,
		Processed:      p.Processed,
		Success:        p.Success,
		Failed:         p.Failed,
		Total:          p.Total,
		Percentage:     p.Percentage,
		Speed:          p.Speed,
		ElapsedSeconds: p.Elapsed.Seconds(),
		Live:           p.Live,
	}
	if p.ETA != nil {
		eta := p.ETA.Seconds()
		response.ETASeconds = &eta
	}
	return response
}

// CreateImport handles POST /api/v1/imports
func (h *ImportHandler) CreateImport(c *gin.Context) {
	entity := strings.TrimSpace(c.PostForm("entity"))
	if entity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity is required"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	req := domain.ImportRequest{
		Entity:   entity,
		FileName: header.Filename,
	}

	if raw := c.PostForm("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Options); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "options must be a JSON object"})
			return
		}
	}
	if raw := c.PostForm("priority"); raw != "" {
		priority, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "priority must be an integer"})
			return
		}
		req.Priority = priority
	}
	if raw := c.PostForm("max_retries"); raw != "" {
		maxRetries, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_retries must be an integer"})
			return
		}
		req.MaxRetries = &maxRetries
	}
	if remark := c.PostForm("remark"); remark != "" {
		req.Remark = &remark
	}
	key := c.PostForm("idempotency_key")
	if key == "" {
		key = c.GetHeader(IdempotencyKeyHeader)
	}
	if key != "" {
		req.IdempotencyKey = &key
	}
	if userID := middleware.GetUserID(c); userID != "" {
		req.UserID = &userID
	}

	task, err := h.importService.Submit(c.Request.Context(), req, file)
	if err != nil {
		respondError(c, err, "failed to process import request")
		return
	}

	logger.WithRequestID(middleware.GetRequestID(c)).Info("import accepted",
		slog.String("task_id", task.ID),
		slog.String("entity", task.Entity),
	)
	c.JSON(http.StatusAccepted, toTaskResponse(task))
}

// ListImports handles GET /api/v1/imports
func (h *ImportHandler) ListImports(c *gin.Context) {
	limit, ok := queryInt(c, "limit", DefaultListLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	filter := service.TaskListFilter{
		Status: domain.TaskStatus(strings.ToLower(c.Query("status"))),
		Entity: c.Query("entity"),
		UserID: c.Query("user_id"),
		Limit:  limit,
		Offset: offset,
	}
	tasks, err := h.importService.ListTasks(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "failed to list import tasks")
		return
	}

	items := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, toTaskResponse(task))
	}
	c.JSON(http.StatusOK, TaskListResponse{Items: items, Limit: limit, Offset: offset})
}

// Statistics handles GET /api/v1/imports/stats
func (h *ImportHandler) Statistics(c *gin.Context) {
	counts, err := h.importService.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to load statistics")
		return
	}
	c.JSON(http.StatusOK, counts)
}

// GetImport handles GET /api/v1/imports/:id
func (h *ImportHandler) GetImport(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.importService.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to retrieve import task")
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// GetProgress handles GET /api/v1/imports/:id/progress
func (h *ImportHandler) GetProgress(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	p, err := h.importService.Progress(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to retrieve progress")
		return
	}

	c.JSON(http.StatusOK, toProgressResponse(p))
}

// GetErrors handles GET /api/v1/imports/:id/errors
func (h *ImportHandler) GetErrors(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	page, err := h.importService.Errors(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(c, err, "failed to retrieve error logs")
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetErrorStatistics handles GET /api/v1/imports/:id/errors/stats
func (h *ImportHandler) GetErrorStatistics(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	stats, err := h.importService.ErrorStatistics(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to retrieve error statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CancelImport handles POST /api/v1/imports/:id/cancel
func (h *ImportHandler) CancelImport(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.importService.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to cancel import task")
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// RetryImport handles POST /api/v1/imports/:id/retry
func (h *ImportHandler) RetryImport(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.importService.Retry(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to retry import task")
		return
	}

	c.JSON(http.StatusAccepted, toTaskResponse(task))
}

// ListEntities handles GET /api/v1/entities
func (h *ImportHandler) ListEntities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entities": h.importService.Entities()})
}

// RegisterRoutes mounts the import API on rg.
func (h *ImportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	imports := rg.Group("/imports")
	{
		imports.POST("", h.CreateImport)
		imports.GET("", h.ListImports)
		imports.GET("/stats", h.Statistics)
		imports.GET("/:id", h.GetImport)
		imports.GET("/:id/progress", h.GetProgress)
		imports.GET("/:id/errors", h.GetErrors)
		imports.GET("/:id/errors/stats", h.GetErrorStatistics)
		imports.POST("/:id/cancel", h.CancelImport)
		imports.POST("/:id/retry", h.RetryImport)
	}
	rg.GET("/entities", h.ListEntities)
}

// taskID reads and validates the :id path parameter.
func taskID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a valid UUID"})
		return "", false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be an integer"})
		return 0, false
	}
	return n, true
}
