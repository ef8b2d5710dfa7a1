package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nurbekov/engage-scheduler/internal/domain"
	"github.com/nurbekov/engage-scheduler/internal/executor"
	"github.com/nurbekov/engage-scheduler/internal/repository"
)

// Reloader is the slice of the runner the ops API needs.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Dispatcher is the slice of the executor the ops API needs.
type Dispatcher interface {
	Execute(ctx context.Context, inv executor.Invocation)
}

// OpsHandler serves the operator surface: window inspection, manual
// triggers, and re-arming.
type OpsHandler struct {
	repo     repository.WindowRepository
	runner   Reloader
	exec     Dispatcher
	profiles map[string]domain.Profile
	logger   *slog.Logger

	// runCtx outlives individual requests; manual triggers run async on
	// it so they survive the HTTP response.
	runCtx context.Context
}

func NewOpsHandler(
	runCtx context.Context,
	repo repository.WindowRepository,
	runner Reloader,
	exec Dispatcher,
	profileList []domain.Profile,
	logger *slog.Logger,
) *OpsHandler {
	byID := make(map[string]domain.Profile, len(profileList))
	for _, p := range profileList {
		byID[p.ID] = p
	}
	return &OpsHandler{
		repo:     repo,
		runner:   runner,
		exec:     exec,
		profiles: byID,
		logger:   logger.With("component", "ops_handler"),
		runCtx:   runCtx,
	}
}

type entryResponse struct {
	ProfileID   string               `json:"profile_id"`
	ScheduledAt time.Time            `json:"scheduled_at"`
	Action      domain.ActionType    `json:"action"`
	Status      domain.Status        `json:"status"`
	Immediate   bool                 `json:"immediate"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Error       string               `json:"error,omitempty"`
	Result      *domain.ActionResult `json:"result,omitempty"`
}

type windowResponse struct {
	ID      string          `json:"id"`
	Created time.Time       `json:"created"`
	Expires time.Time       `json:"expires"`
	Entries []entryResponse `json:"entries"`
}

// Window returns the current window and every entry's state.
func (h *OpsHandler) Window(c *gin.Context) {
	w, err := h.repo.Current(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrWindowNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errNoWindow})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "load window", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	resp := windowResponse{ID: w.ID, Created: w.Created, Expires: w.Expires}
	for _, e := range w.Entries {
		resp.Entries = append(resp.Entries, entryResponse{
			ProfileID:   e.ProfileID,
			ScheduledAt: e.ScheduledAt,
			Action:      e.Action,
			Status:      e.Status,
			Immediate:   e.Immediate,
			CompletedAt: e.CompletedAt,
			Error:       e.Error,
			Result:      e.Result,
		})
	}
	c.JSON(http.StatusOK, resp)
}

type runRequest struct {
	Action domain.ActionType `json:"action"`
}

// Run triggers one invocation for a profile immediately, outside its
// scheduled time. The schedule entry still gets the status writes.
func (h *OpsHandler) Run(c *gin.Context) {
	profile, ok := h.profiles[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errProfileNotFound})
		return
	}

	// An empty body means "use the scheduled action".
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Action != "" && !req.Action.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidAction})
		return
	}

	operator := c.GetString("operator")
	h.logger.InfoContext(c.Request.Context(), "manual trigger",
		"profile_id", profile.ID, "action", string(req.Action), "operator", operator)

	go h.exec.Execute(h.runCtx, executor.Invocation{Profile: profile, Action: req.Action})

	c.JSON(http.StatusAccepted, gin.H{"profile_id": profile.ID})
}

// Reload cancels all armed timers and re-arms from the stored (or
// freshly generated) window.
func (h *OpsHandler) Reload(c *gin.Context) {
	if err := h.runner.Reload(c.Request.Context()); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "reload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.Status(http.StatusNoContent)
}
