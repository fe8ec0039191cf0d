package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/job-tracker/internal/auth"
	"github.com/justsurfingit/job-tracker/internal/dtos"
	"github.com/justsurfingit/job-tracker/internal/models"
	"github.com/justsurfingit/job-tracker/internal/services"
	"go.uber.org/zap"
)

// JobHandler serves the job collection, its items and the transition action. Every
// handler reads the caller from the auth middleware once and hands the id to the
// service explicitly.
type JobHandler struct {
	JobService *services.JobService
	LLMService *services.LLMService
	Logger     *zap.Logger
}

func NewJobHandler(jobs *services.JobService, llm *services.LLMService, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		JobService: jobs,
		LLMService: llm,
		Logger:     logger.Named("handlers.jobs"),
	}
}

// ListJobs is GET /jobs?search=&ordering=
func (h *JobHandler) ListJobs(c *gin.Context) {
	user, ok := h.account(c)
	if !ok {
		return
	}
	var q dtos.JobListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err, "status")
		return
	}
	jobs, err := h.JobService.List(c.Request.Context(), user.ID, q.Query())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dtos.NewJobListResponse(jobs, user))
}

// CreateJob is POST /jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	user, ok := h.account(c)
	if !ok {
		return
	}
	var req dtos.JobCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err, "status")
		return
	}
	job, err := h.JobService.Create(c.Request.Context(), user.ID, req.Input())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, dtos.NewJobResponse(job, user))
}

// GetJob is GET /jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	user, id, ok := h.accountAndID(c)
	if !ok {
		return
	}
	job, err := h.JobService.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dtos.NewJobResponse(job, user))
}

// ReplaceJob is PUT /jobs/:id; company and title are required.
func (h *JobHandler) ReplaceJob(c *gin.Context) {
	user, id, ok := h.accountAndID(c)
	if !ok {
		return
	}
	var req dtos.JobCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rejectBody(c, user, id, err, "status")
		return
	}
	h.update(c, user, id, req.Patch())
}

// PatchJob is PATCH /jobs/:id
func (h *JobHandler) PatchJob(c *gin.Context) {
	user, id, ok := h.accountAndID(c)
	if !ok {
		return
	}
	var req dtos.JobUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.rejectBody(c, user, id, err, "status")
		return
	}
	h.update(c, user, id, req.Patch())
}

func (h *JobHandler) update(c *gin.Context, user *models.User, id uint, patch services.JobPatch) {
	job, err := h.JobService.Update(c.Request.Context(), user.ID, id, patch)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dtos.NewJobResponse(job, user))
}

// DeleteJob is DELETE /jobs/:id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	user, id, ok := h.accountAndID(c)
	if !ok {
		return
	}
	if err := h.JobService.Delete(c.Request.Context(), user.ID, id); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TransitionJob is POST /jobs/:id/transition with {"to_status": "..."}
func (h *JobHandler) TransitionJob(c *gin.Context) {
	user, id, ok := h.accountAndID(c)
	if !ok {
		return
	}
	var req dtos.TransitionRequest
	// an empty body, null and "" all count as a missing to_status, which the service reports
	switch err := c.ShouldBindJSON(&req); {
	case err == nil, errors.Is(err, io.EOF):
	case isBlankStatus(err):
		req.ToStatus = nil
	default:
		h.rejectBody(c, user, id, err, "to_status")
		return
	}
	job, err := h.JobService.Transition(c.Request.Context(), user.ID, id, req.ToStatus)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dtos.NewJobResponse(job, user))
}

// ExtractJob is POST /jobs/extract. It only suggests fields; nothing is stored.
func (h *JobHandler) ExtractJob(c *gin.Context) {
	if _, ok := h.account(c); !ok {
		return
	}
	var req dtos.JobExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err, "raw_text")
		return
	}
	suggestion, err := h.LLMService.ExtractPosting(c.Request.Context(), req.RawText)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

// rejectBody reports a bad request body, unless the job is not the caller's to touch.
func (h *JobHandler) rejectBody(c *gin.Context, user *models.User, id uint, bindErr error, statusField string) {
	if _, err := h.JobService.Get(c.Request.Context(), user.ID, id); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	writeBindError(c, bindErr, statusField)
}

func isBlankStatus(err error) bool {
	var badStatus *models.InvalidStatusError
	return errors.As(err, &badStatus) && badStatus.Value == ""
}

func (h *JobHandler) account(c *gin.Context) (*models.User, bool) {
	user, ok := auth.CurrentAccount(c)
	if !ok {
		// routes are registered behind RequireAuth, so this is a wiring bug
		h.Logger.Error("job route reached without an authenticated account", zap.String("path", c.FullPath()))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
		return nil, false
	}
	return user, true
}

func (h *JobHandler) accountAndID(c *gin.Context) (*models.User, uint, bool) {
	user, ok := h.account(c)
	if !ok {
		return nil, 0, false
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return nil, 0, false
	}
	return user, uint(id), true
}
