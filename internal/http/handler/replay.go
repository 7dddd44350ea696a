// Package handler exposes the replay control surface over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/edirooss/replayd/internal/config"
	"github.com/edirooss/replayd/internal/diag"
	"github.com/edirooss/replayd/internal/http/dto"
	"github.com/edirooss/replayd/internal/repo"
	"github.com/edirooss/replayd/internal/service"
	"github.com/edirooss/replayd/pkg/jsonx"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReplayHandler provides the HTTP handlers for the replay plugin surface.
//
// Supported operations:
//   - POST /api/replay            → replay one source's buffer (fire-and-forget worker)
//   - POST /api/replays/save-all  → export every non-empty buffer
//   - GET  /api/buffers/summary   → per-buffer occupancy
//   - GET  /api/diagnostics       → recent failure messages
//   - PUT  /api/capture           → enable/disable capture
//   - PUT  /api/config            → adjust runtime settings
//   - GET  /api/status            → service status
type ReplayHandler struct {
	log      *zap.Logger
	capture  *service.CaptureService
	replay   *service.ReplayService
	export   *service.ExportService
	summary  *service.SummaryService
	diag     *diag.Log
	settings *service.Settings
	reg      *repo.Registry
}

// NewReplayHandler constructs a ReplayHandler instance.
func NewReplayHandler(
	log *zap.Logger,
	capture *service.CaptureService,
	replay *service.ReplayService,
	export *service.ExportService,
	summary *service.SummaryService,
	dg *diag.Log,
	settings *service.Settings,
	reg *repo.Registry,
) *ReplayHandler {
	return &ReplayHandler{
		log:      log.Named("replay_handler"),
		capture:  capture,
		replay:   replay,
		export:   export,
		summary:  summary,
		diag:     dg,
		settings: settings,
		reg:      reg,
	}
}

// RequestReplay handles POST /api/replay.
//
// Status Codes:
//   - 202 Accepted             → {"success":true,"job_id":...}; playback runs detached
//   - 400 Bad Request          → malformed body / missing scene name
//   - 404 Not Found            → unknown source
//   - 422 Unprocessable Entity → buffer holds no video frames
func (h *ReplayHandler) RequestReplay(c *gin.Context) {
	var req dto.ReplayRequest
	if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	job, err := h.replay.Request(req.Scene)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no scene name provided"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, service.ErrNoFrames):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
	case err != nil:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"success": true, "job_id": job})
	}
}

// SaveAllReplays handles POST /api/replays/save-all.
//
// The request body is optional; when present it may carry folder_path.
// Per-source failures are embedded in the results, never raised as a
// collective failure.
func (h *ReplayHandler) SaveAllReplays(c *gin.Context) {
	var req dto.SaveAllRequest
	if c.Request.ContentLength != 0 {
		if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}

	outcomes := h.export.SaveAll(req.FolderPath)
	c.JSON(http.StatusOK, gin.H{"success": true, "results": outcomes})
}

// GetBufferSummary handles GET /api/buffers/summary.
func (h *ReplayHandler) GetBufferSummary(c *gin.Context) {
	res := h.summary.Get()

	if res.CacheHit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Header("X-Summary-Generated-At", res.GeneratedAt.UTC().Format(time.RFC3339Nano))
	c.JSON(http.StatusOK, res.Data)
}

// GetDiagnostics handles GET /api/diagnostics. Entries are newest-first;
// text is the oldest-first blob shown in settings dialogs.
func (h *ReplayHandler) GetDiagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"errors": h.diag.Tail(),
		"text":   h.diag.Text(),
	})
}

// UpdateCapture handles PUT /api/capture.
func (h *ReplayHandler) UpdateCapture(c *gin.Context) {
	var req dto.CaptureUpdate
	if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !req.Enabled.IsSet() || req.Enabled.IsNull() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing field: enabled"})
		return
	}

	if *req.Enabled.Value() {
		h.capture.Enable()
	} else {
		h.capture.Disable()
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": h.capture.Enabled()})
}

// UpdateConfig handles PUT /api/config.
func (h *ReplayHandler) UpdateConfig(c *gin.Context) {
	var req dto.ConfigUpdate
	if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if req.OutputDirectory.IsSet() && !req.OutputDirectory.IsNull() {
		h.settings.SetOutputDir(*req.OutputDirectory.Value())
		h.log.Info("output directory updated", zap.String("dir", h.settings.OutputDir()))
	}
	c.JSON(http.StatusOK, gin.H{"output_directory": h.settings.OutputDir()})
}

// GetStatus handles GET /api/status.
func (h *ReplayHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":          config.Version,
		"enabled":          h.capture.Enabled(),
		"buffers":          h.reg.Len(),
		"output_directory": h.settings.OutputDir(),
	})
}
