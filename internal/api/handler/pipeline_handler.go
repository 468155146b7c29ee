package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go-data-pipeline/internal/logger"
	"go-data-pipeline/internal/model"
	"go-data-pipeline/internal/scheduler"
	"go-data-pipeline/pkg/router"
)

// PipelineHandler exposes the scheduler over HTTP.
type PipelineHandler struct {
	ctx   context.Context
	sched *scheduler.Scheduler
	log   *logger.Logger
	now   func() time.Time
}

// NewPipelineHandler creates a handler. ctx is the server lifetime context;
// it is handed to the scheduler on restart and outlives individual requests.
func NewPipelineHandler(ctx context.Context, s *scheduler.Scheduler, log *logger.Logger) *PipelineHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &PipelineHandler{ctx: ctx, sched: s, log: log.WithComponent("api"), now: time.Now}
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges a state change.
type MessageResponse struct {
	Message  string `json:"message"`
	Pipeline string `json:"pipeline,omitempty"`
}

// ScheduleRequest is the body of a reschedule call. An empty schedule makes
// the pipeline manual-only.
type ScheduleRequest struct {
	Schedule string `json:"schedule"`
}

// HistoryResponse wraps a history query.
type HistoryResponse struct {
	Pipeline string                  `json:"pipeline,omitempty"`
	Entries  []model.JobHistoryEntry `json:"entries"`
	Count    int                     `json:"count"`
}

// ListPipelines returns every stored definition with its scheduling state
// @Summary List pipelines
// @Description List all pipeline definitions with schedule, running flag, next and last run
// @Tags pipelines
// @Produce json
// @Success 200 {array} model.PipelineStatus
// @Failure 500 {object} ErrorResponse
// @Router /pipelines [get]
func (h *PipelineHandler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	status, err := h.sched.Status()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status.Pipelines)
}

// CreatePipeline saves a definition and schedules it when enabled
// @Summary Create a pipeline
// @Description Validate and store a pipeline definition, registering its timer when it is enabled with a schedule
// @Tags pipelines
// @Accept json
// @Produce json
// @Param pipeline body model.Definition true "Pipeline definition"
// @Success 201 {object} model.Definition
// @Failure 400 {object} ErrorResponse "Invalid definition or schedule"
// @Failure 409 {object} ErrorResponse "Pipeline already exists"
// @Router /pipelines [post]
func (h *PipelineHandler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var def model.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	saved, err := h.sched.ScheduleJob(&def)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// ValidatePipeline checks a definition without saving it
// @Summary Validate a pipeline definition
// @Tags pipelines
// @Accept json
// @Produce json
// @Param pipeline body model.Definition true "Pipeline definition"
// @Success 200 {object} model.ValidationResult
// @Failure 400 {object} ErrorResponse
// @Router /pipelines/validate [post]
func (h *PipelineHandler) ValidatePipeline(w http.ResponseWriter, r *http.Request) {
	var def model.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	writeJSON(w, http.StatusOK, model.ValidateDefinition(&def))
}

// GetPipeline returns one pipeline's status
// @Summary Get pipeline
// @Tags pipelines
// @Produce json
// @Param name path string true "Pipeline name"
// @Success 200 {object} model.PipelineStatus
// @Failure 404 {object} ErrorResponse
// @Router /pipelines/{name} [get]
func (h *PipelineHandler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	status, err := h.sched.PipelineStatus(router.Param(r, 0))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// DeletePipeline cancels the timer and deletes the definition
// @Summary Delete pipeline
// @Tags pipelines
// @Produce json
// @Param name path string true "Pipeline name"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /pipelines/{name} [delete]
func (h *PipelineHandler) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	name := router.Param(r, 0)
	if err := h.sched.RemoveScheduledJob(name); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Pipeline deleted", Pipeline: name})
}

// RunPipeline executes a pipeline immediately and returns its result
// @Summary Run pipeline now
// @Description Run the pipeline on the request goroutine. A pipeline that is already running is rejected.
// @Tags pipelines
// @Produce json
// @Param name path string true "Pipeline name"
// @Success 200 {object} model.RunResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Pipeline already running"
// @Failure 500 {object} ErrorResponse
// @Router /pipelines/{name}/run [post]
func (h *PipelineHandler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	// A dropped client must not abort a run that has started writing.
	ctx := context.WithoutCancel(r.Context())
	result, err := h.sched.RunPipelineNow(ctx, router.Param(r, 0))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// UpdateSchedule changes the cron expression
// @Summary Reschedule pipeline
// @Tags pipelines
// @Accept json
// @Produce json
// @Param name path string true "Pipeline name"
// @Param schedule body ScheduleRequest true "Five-field cron expression"
// @Success 200 {object} model.PipelineStatus
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /pipelines/{name}/schedule [put]
func (h *PipelineHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	name := router.Param(r, 0)
	if err := h.sched.UpdateJobSchedule(name, req.Schedule); err != nil {
		h.fail(w, err)
		return
	}
	h.writeStatus(w, name)
}

// EnablePipeline turns a pipeline on
// @Summary Enable pipeline
// @Tags pipelines
// @Produce json
// @Param name path string true "Pipeline name"
// @Success 200 {object} model.PipelineStatus
// @Failure 404 {object} ErrorResponse
// @Router /pipelines/{name}/enable [post]
func (h *PipelineHandler) EnablePipeline(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

// DisablePipeline turns a pipeline off
// @Summary Disable pipeline
// @Tags pipelines
// @Produce json
// @Param name path string true "Pipeline name"
// @Success 200 {object} model.PipelineStatus
// @Failure 404 {object} ErrorResponse
// @Router /pipelines/{name}/disable [post]
func (h *PipelineHandler) DisablePipeline(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *PipelineHandler) toggle(w http.ResponseWriter, r *http.Request, enabled bool) {
	name := router.Param(r, 0)
	if err := h.sched.ToggleJob(name, enabled); err != nil {
		h.fail(w, err)
		return
	}
	h.writeStatus(w, name)
}

func (h *PipelineHandler) writeStatus(w http.ResponseWriter, name string) {
	status, err := h.sched.PipelineStatus(name)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// GetPipelineHistory lists recent runs of one pipeline
// @Summary Pipeline history
// @Tags history
// @Produce json
// @Param name path string true "Pipeline name"
// @Param limit query int false "Maximum entries" default(10)
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /pipelines/{name}/history [get]
func (h *PipelineHandler) GetPipelineHistory(w http.ResponseWriter, r *http.Request) {
	name := router.Param(r, 0)
	limit, ok := queryLimit(w, r, 10)
	if !ok {
		return
	}
	if _, err := h.sched.PipelineStatus(name); err != nil {
		h.fail(w, err)
		return
	}
	entries := h.sched.History(name, limit)
	writeJSON(w, http.StatusOK, HistoryResponse{Pipeline: name, Entries: entries, Count: len(entries)})
}

// GetHistory lists recent runs across pipelines
// @Summary Job history
// @Tags history
// @Produce json
// @Param pipeline query string false "Filter by pipeline name"
// @Param limit query int false "Maximum entries" default(50)
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} ErrorResponse
// @Router /history [get]
func (h *PipelineHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, 50)
	if !ok {
		return
	}
	name := r.URL.Query().Get("pipeline")
	entries := h.sched.History(name, limit)
	writeJSON(w, http.StatusOK, HistoryResponse{Pipeline: name, Entries: entries, Count: len(entries)})
}

// GetStatus returns the aggregate scheduler status
// @Summary Scheduler status
// @Tags scheduler
// @Produce json
// @Success 200 {object} model.SchedulerStatus
// @Failure 500 {object} ErrorResponse
// @Router /status [get]
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.sched.Status()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// GetStats returns configuration counts and 24 hour run statistics
// @Summary Run statistics
// @Tags scheduler
// @Produce json
// @Success 200 {object} model.Stats
// @Failure 500 {object} ErrorResponse
// @Router /stats [get]
func (h *PipelineHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sched.Stats(h.now())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RestartScheduler rebuilds every timer from the store
// @Summary Restart scheduler
// @Tags scheduler
// @Produce json
// @Success 200 {object} model.SchedulerStatus
// @Failure 500 {object} ErrorResponse
// @Router /scheduler/restart [post]
func (h *PipelineHandler) RestartScheduler(w http.ResponseWriter, r *http.Request) {
	if err := h.sched.Restart(h.ctx); err != nil {
		h.fail(w, err)
		return
	}
	h.GetStatus(w, r)
}

// ------------------- Helpers -------------------

func queryLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrPipelineNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrPipelineRunning), errors.Is(err, scheduler.ErrDuplicateJob):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidDefinition), errors.Is(err, model.ErrInvalidSchedule):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *PipelineHandler) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.log.Error("Request failed", logger.ErrorFields(err))
	}
	writeError(w, code, err.Error())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
