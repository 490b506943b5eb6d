package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"immo-backoffice/internal/cleanup"
	"immo-backoffice/internal/dashboard"
	"immo-backoffice/internal/logger"
	"immo-backoffice/internal/models"
	"immo-backoffice/internal/ratelimit"
)

// CleanupService prunes expired match snapshots
type CleanupService interface {
	PhysicallyDelete(ctx context.Context, cfg cleanup.CleanupConfig) (*cleanup.CleanupResult, error)
	GetDeleteStats(ctx context.Context, retentionDays int) (*cleanup.DeleteStats, error)
	GetRecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error)
}

// JobRunner runs scheduled jobs on demand
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
	Jobs() []string
}

// StatsComputer recomputes the dashboard counters
type StatsComputer interface {
	Recompute(ctx context.Context) (*dashboard.Stats, error)
}

// AdminHandler handles admin-related requests
type AdminHandler struct {
	dashboard StatsComputer
	cleanup   CleanupService
	scheduler JobRunner
	limiter   *ratelimit.RateLimiter
	defaults  cleanup.CleanupConfig
	logger    *zap.Logger
}

// NewAdminHandler creates a new admin handler. scheduler and limiter may be nil.
func NewAdminHandler(d StatsComputer, c CleanupService, sched JobRunner, limiter *ratelimit.RateLimiter, defaults cleanup.CleanupConfig, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		dashboard: d,
		cleanup:   c,
		scheduler: sched,
		limiter:   limiter,
		defaults:  defaults,
		logger:    logger,
	}
}

// GetStats returns system statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c, h.logger)

	counts, err := h.dashboard.Recompute(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	stats := gin.H{
		"success":   true,
		"dashboard": counts,
	}

	deleteStats, err := h.cleanup.GetDeleteStats(ctx, h.defaults.RetentionDays)
	if err != nil {
		log.Warn("failed to get delete stats", zap.Error(err))
	} else {
		stats["deletions"] = deleteStats
	}

	if h.limiter != nil {
		stats["rate_limit"] = h.limiter.GetStats()
	}

	c.JSON(http.StatusOK, stats)
}

// RunCleanup executes physical deletion of expired match snapshots
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	var req struct {
		RetentionDays    int   `json:"retention_days"`     // Days to keep
		MaxDeletionCount int   `json:"max_deletion_count"` // Safety limit
		DryRun           *bool `json:"dry_run"`            // Defaults to true
	}

	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}

	cfg := h.defaults
	if req.RetentionDays > 0 {
		cfg.RetentionDays = req.RetentionDays
	}
	if req.MaxDeletionCount > 0 {
		cfg.MaxDeletionCount = req.MaxDeletionCount
	}
	cfg.DryRun = true
	if req.DryRun != nil {
		cfg.DryRun = *req.DryRun
	}

	log := logger.FromGin(c, h.logger)
	log.Info("running snapshot cleanup",
		zap.Int("retention_days", cfg.RetentionDays),
		zap.Int("max_deletion_count", cfg.MaxDeletionCount),
		zap.Bool("dry_run", cfg.DryRun))

	result, err := h.cleanup.PhysicallyDelete(c.Request.Context(), cfg)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	log.Info("snapshot cleanup completed",
		zap.Int("deleted", result.DeletedCount),
		zap.Int("targets", result.TargetCount),
		zap.Bool("dry_run", result.DryRun))

	c.JSON(http.StatusOK, result)
}

// GetDeleteLogs returns recent delete log entries
func (h *AdminHandler) GetDeleteLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		badRequest(c, "limit must be a positive integer")
		return
	}

	logs, err := h.cleanup.GetRecentDeleteLogs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"logs":    logs,
		"count":   len(logs),
	})
}

// ListJobs returns the registered background jobs
func (h *AdminHandler) ListJobs(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "scheduler not available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "jobs": h.scheduler.Jobs()})
}

// RunJob runs a registered background job synchronously
func (h *AdminHandler) RunJob(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "scheduler not available"})
		return
	}

	name := c.Param("name")
	known := false
	for _, j := range h.scheduler.Jobs() {
		if j == name {
			known = true
			break
		}
	}
	if !known {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"success":    false,
			"error":      "unknown job " + strconv.Quote(name),
			"request_id": logger.RequestID(c),
		})
		return
	}

	logger.FromGin(c, h.logger).Info("manual job run requested", zap.String("job", name))
	if err := h.scheduler.RunNow(c.Request.Context(), name); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "job": name})
}
