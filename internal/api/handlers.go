package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/plugin"
	"github.com/jonesrussell/gigharvest/internal/scheduler"
)

// JobController is the scheduler surface the API depends on.
type JobController interface {
	Trigger(source string) error
	StartJob(source string) error
	StopJob(source string) error
	Jobs() ([]domain.ScheduledJob, error)
	Health() (scheduler.HealthReport, error)
	GetMetrics() scheduler.MetricsSnapshot
}

// SourceCatalog lists the loaded source plugins.
type SourceCatalog interface {
	Metas() []plugin.Metadata
}

// HistoryReader reads recent run records for a source.
type HistoryReader interface {
	Recent(ctx context.Context, source string, limit int) ([]domain.RunStats, error)
}

// Handler serves the operational endpoints.
type Handler struct {
	jobs         JobController
	catalog      SourceCatalog
	history      HistoryReader
	historyLimit int
	logger       logger.Interface
}

// NewHandler creates the API handler. history may be nil when run
// history persistence is disabled.
func NewHandler(
	jobs JobController,
	catalog SourceCatalog,
	history HistoryReader,
	historyLimit int,
	log logger.Interface,
) *Handler {
	return &Handler{
		jobs:         jobs,
		catalog:      catalog,
		history:      history,
		historyLimit: historyLimit,
		logger:       log.WithComponent("api"),
	}
}

// Health reports scheduler health from the most recent sweep.
func (h *Handler) Health(c *gin.Context) {
	report, err := h.jobs.Health()
	if err != nil {
		errorResponse(c, http.StatusServiceUnavailable, err)
		return
	}

	status := http.StatusOK
	state := "ok"
	if !report.Healthy() {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status": state,
		"report": report,
	})
}

// ListJobs returns every scheduled job.
func (h *Handler) ListJobs(c *gin.Context) {
	jobs, err := h.jobs.Jobs()
	if err != nil {
		errorResponse(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// TriggerJob requests an immediate run for one source.
func (h *Handler) TriggerJob(c *gin.Context) {
	source := c.Param("source")
	if err := h.jobs.Trigger(source); err != nil {
		errorResponse(c, jobErrorStatus(err), err)
		return
	}
	okResponse(c, "triggered")
}

// StartJob re-enables a stopped job.
func (h *Handler) StartJob(c *gin.Context) {
	source := c.Param("source")
	if err := h.jobs.StartJob(source); err != nil {
		errorResponse(c, jobErrorStatus(err), err)
		return
	}
	okResponse(c, "started")
}

// StopJob stops one job.
func (h *Handler) StopJob(c *gin.Context) {
	source := c.Param("source")
	if err := h.jobs.StopJob(source); err != nil {
		errorResponse(c, jobErrorStatus(err), err)
		return
	}
	okResponse(c, "stopped")
}

// ListSources returns the loaded plugin metadata.
func (h *Handler) ListSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.catalog.Metas()})
}

// RunHistory returns recent runs for one source, newest first.
func (h *Handler) RunHistory(c *gin.Context) {
	if h.history == nil {
		errorResponse(c, http.StatusNotImplemented, errors.New("run history persistence is disabled"))
		return
	}

	source := c.Param("source")
	runs, err := h.history.Recent(c.Request.Context(), source, h.historyLimit)
	if err != nil {
		h.logger.Error("Failed to read run history", "source", source, "error", err)
		errorResponse(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// Metrics returns scheduler counters.
func (h *Handler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.GetMetrics())
}

// jobErrorStatus maps scheduler errors to HTTP status codes.
func jobErrorStatus(err error) int {
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrJobRunning), errors.Is(err, scheduler.ErrJobStopped):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
