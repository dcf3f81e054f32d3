package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusnote/termcycle/internal/domain/shared"
	"github.com/campusnote/termcycle/internal/infrastructure/persistence/redis"
	"github.com/campusnote/termcycle/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every response.
type JSONResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(c *gin.Context, status int, data any) {
	c.JSON(status, JSONResponse{Success: status < http.StatusBadRequest, Data: data})
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, JSONResponse{Error: &APIError{Code: code, Message: message}})
}

// errorStatus maps a classified domain error to a status and error code.
// Unclassified errors answer with fallback.
func errorStatus(err error, fallback int, fallbackCode string) (int, string) {
	switch {
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "invalid_request"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case shared.IsRetryable(err):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return fallback, fallbackCode
	}
}

// writeDomainError answers with the status errorStatus picks for err.
func writeDomainError(c *gin.Context, err error, fallback int, fallbackCode string) {
	status, code := errorStatus(err, fallback, fallbackCode)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	writeError(c, status, code, err.Error())
}

// JobView is the JSON form of a registered job.
type JobView struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	Enabled     bool       `json:"enabled"`
	Running     bool       `json:"running"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	RunCount    int64      `json:"run_count"`
	FailCount   int64      `json:"fail_count"`
	LastResult  *RunView   `json:"last_result,omitempty"`
}

// RunView is the JSON form of one job run.
type RunView struct {
	Job         string    `json:"job"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`
	Success     bool      `json:"success"`
	Manual      bool      `json:"manual,omitempty"`
	Error       string    `json:"error,omitempty"`
	Report      any       `json:"report,omitempty"`
}

func newJobView(info scheduler.JobInfo) JobView {
	v := JobView{
		Name:        info.Name,
		Description: info.Description,
		Schedule:    info.Schedule,
		Enabled:     info.Enabled,
		Running:     info.Running,
		RunCount:    info.RunCount,
		FailCount:   info.FailCount,
		LastRun:     timePtr(info.LastRun),
		NextRun:     timePtr(info.NextRun),
	}
	if info.LastResult != nil {
		r := newRunView(*info.LastResult)
		v.LastResult = &r
	}
	return v
}

func newRunView(r scheduler.JobResult) RunView {
	v := RunView{
		Job:         r.JobName,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		DurationMS:  r.Duration.Milliseconds(),
		Success:     r.Success,
		Manual:      r.Manual,
		Report:      r.Report,
	}
	if r.Error != nil {
		v.Error = r.Error.Error()
	}
	return v
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports liveness. It does not touch dependencies.
func (s *Server) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// handleReady runs every registered check.
func (s *Server) handleReady(c *gin.Context) {
	status := s.deps.Health.Check(c.Request.Context())
	if !status.Healthy {
		c.JSON(http.StatusServiceUnavailable, JSONResponse{
			Data:  status,
			Error: &APIError{Code: "not_ready", Message: status.Message},
		})
		return
	}
	writeJSON(c, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// JOBS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListJobs(c *gin.Context) {
	if s.deps.Jobs == nil {
		writeJSON(c, http.StatusOK, []JobView{})
		return
	}
	infos := s.deps.Jobs.ListJobs()
	views := make([]JobView, 0, len(infos))
	for _, info := range infos {
		views = append(views, newJobView(info))
	}
	writeJSON(c, http.StatusOK, views)
}

// handleRunJob runs a job now and answers when it is done.
func (s *Server) handleRunJob(c *gin.Context) {
	if s.deps.Jobs == nil {
		writeError(c, http.StatusServiceUnavailable, "scheduler_disabled", "scheduler is not configured")
		return
	}
	name := c.Param("name")

	result, err := s.deps.Jobs.RunNow(c.Request.Context(), name)
	if result == nil && err != nil {
		writeDomainError(c, err, http.StatusInternalServerError, "job_failed")
		return
	}

	view := newRunView(*result)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, JSONResponse{
			Data:  view,
			Error: &APIError{Code: "job_failed", Message: err.Error()},
		})
		return
	}
	writeJSON(c, http.StatusOK, view)
}

// handleEnableJob switches a job back on and schedules its next run.
func (s *Server) handleEnableJob(c *gin.Context) {
	s.toggleJob(c, true)
}

// handleDisableJob stops a job from running on schedule. Manual runs
// still work.
func (s *Server) handleDisableJob(c *gin.Context) {
	s.toggleJob(c, false)
}

func (s *Server) toggleJob(c *gin.Context, enabled bool) {
	if s.deps.Jobs == nil {
		writeError(c, http.StatusServiceUnavailable, "scheduler_disabled", "scheduler is not configured")
		return
	}
	name := c.Param("name")

	toggle := s.deps.Jobs.DisableJob
	if enabled {
		toggle = s.deps.Jobs.EnableJob
	}
	if err := toggle(name); err != nil {
		writeDomainError(c, err, http.StatusInternalServerError, "toggle_failed")
		return
	}

	info, err := s.deps.Jobs.GetJobInfo(name)
	if err != nil {
		writeDomainError(c, err, http.StatusInternalServerError, "toggle_failed")
		return
	}
	writeJSON(c, http.StatusOK, newJobView(*info))
}

// handleLastRun prefers the persisted ledger and falls back to the
// scheduler's in-memory result.
func (s *Server) handleLastRun(c *gin.Context) {
	name := c.Param("name")

	if s.deps.Ledger != nil {
		rec, err := s.deps.Ledger.Last(c.Request.Context(), name)
		switch {
		case err == nil:
			writeJSON(c, http.StatusOK, rec)
			return
		case !errors.Is(err, redis.ErrCacheMiss):
			_ = c.Error(err)
			writeError(c, http.StatusBadGateway, "ledger_unavailable", err.Error())
			return
		}
	}

	if s.deps.Jobs != nil {
		info, err := s.deps.Jobs.GetJobInfo(name)
		if err == nil && info.LastResult != nil {
			writeJSON(c, http.StatusOK, newRunView(*info.LastResult))
			return
		}
	}
	writeError(c, http.StatusNotFound, "no_runs", "no recorded run for job "+name)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.deps.Ledger == nil {
		writeError(c, http.StatusNotFound, "ledger_disabled", "run ledger is not configured")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		writeError(c, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
		return
	}

	runs, err := s.deps.Ledger.History(c.Request.Context(), c.Param("name"), limit)
	if err != nil {
		_ = c.Error(err)
		writeError(c, http.StatusBadGateway, "ledger_unavailable", err.Error())
		return
	}
	writeJSON(c, http.StatusOK, runs)
}

// ══════════════════════════════════════════════════════════════════════════════
// CALENDAR
// ══════════════════════════════════════════════════════════════════════════════

// CalendarView describes the loaded calendar snapshot.
type CalendarView struct {
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
	Keys     []string   `json:"keys"`
}

// handleCalendarReload re-reads the feed. On failure the previous snapshot
// stays in use.
func (s *Server) handleCalendarReload(c *gin.Context) {
	if s.deps.Calendar == nil {
		writeError(c, http.StatusServiceUnavailable, "calendar_disabled", "no calendar source is configured")
		return
	}

	snap, err := s.deps.Calendar.Reload(c.Request.Context())
	if err != nil {
		writeDomainError(c, err, http.StatusBadGateway, "calendar_reload_failed")
		return
	}

	view := CalendarView{Keys: snap.Keys()}
	if at, ok := s.deps.Calendar.LoadedAt(); ok {
		view.LoadedAt = &at
	}
	writeJSON(c, http.StatusOK, view)
}
