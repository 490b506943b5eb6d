package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"immo-backoffice/internal/config"
	"immo-backoffice/internal/models"
)

// Service handles physical deletion of expired match snapshots
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new cleanup service
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger.Named("cleanup"), now: time.Now}
}

// CleanupConfig holds configuration for cleanup operations
type CleanupConfig struct {
	RetentionDays    int  // Days to keep snapshots before physical deletion
	MaxDeletionCount int  // Maximum number of snapshots to delete in one run (safety limit)
	DryRun           bool // If true, only report what would be deleted
}

// DefaultCleanupConfig returns default configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		RetentionDays:    180,
		MaxDeletionCount: 10000,
	}
}

// FromConfig builds a cleanup config from the cleanup config section
func FromConfig(cfg config.CleanupConfig) CleanupConfig {
	c := DefaultCleanupConfig()
	if cfg.RetentionDays > 0 {
		c.RetentionDays = cfg.RetentionDays
	}
	if cfg.MaxDeletionCount > 0 {
		c.MaxDeletionCount = cfg.MaxDeletionCount
	}
	return c
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	TargetCount      int       `json:"target_count"`
	DeletedCount     int       `json:"deleted_count"`
	ErrorCount       int       `json:"error_count"`
	DryRun           bool      `json:"dry_run"`
	ExecutedAt       time.Time `json:"executed_at"`
	Cutoff           time.Time `json:"cutoff"`
	DeletedSnapshots []uint    `json:"deleted_snapshots"`
	Errors           []string  `json:"errors,omitempty"`
}

func (s *Service) cutoff(retentionDays int) time.Time {
	return s.now().AddDate(0, 0, -retentionDays)
}

// FindExpiredSnapshots finds snapshots taken before the retention window
func (s *Service) FindExpiredSnapshots(ctx context.Context, retentionDays int) ([]models.MatchSnapshot, error) {
	var snapshots []models.MatchSnapshot
	cutoff := s.cutoff(retentionDays)

	err := s.db.WithContext(ctx).
		Where("taken_at < ?", cutoff).
		Order("taken_at ASC").
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired snapshots: %w", err)
	}

	s.logger.Debug("expired snapshots found",
		zap.Int("count", len(snapshots)),
		zap.Time("cutoff", cutoff),
	)
	return snapshots, nil
}

// PhysicallyDelete removes expired snapshots and their entries, logging each
// deletion in delete_logs
func (s *Service) PhysicallyDelete(ctx context.Context, cfg CleanupConfig) (*CleanupResult, error) {
	result := &CleanupResult{
		DryRun:           cfg.DryRun,
		ExecutedAt:       s.now(),
		Cutoff:           s.cutoff(cfg.RetentionDays),
		DeletedSnapshots: []uint{},
	}

	expired, err := s.FindExpiredSnapshots(ctx, cfg.RetentionDays)
	if err != nil {
		return nil, err
	}
	result.TargetCount = len(expired)

	if result.TargetCount == 0 {
		s.logger.Info("no expired snapshots found for deletion")
		return result, nil
	}

	// Safety check: abort if too many snapshots would be deleted
	if cfg.MaxDeletionCount > 0 && result.TargetCount > cfg.MaxDeletionCount {
		return nil, fmt.Errorf("safety check failed: %d snapshots exceed max deletion limit of %d",
			result.TargetCount, cfg.MaxDeletionCount)
	}

	s.logger.Info("starting cleanup",
		zap.Int("targets", result.TargetCount),
		zap.Int("retention_days", cfg.RetentionDays),
		zap.Bool("dry_run", cfg.DryRun),
	)

	for _, snap := range expired {
		if cfg.DryRun {
			result.DeletedSnapshots = append(result.DeletedSnapshots, snap.ID)
			result.DeletedCount++
			continue
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			deleteLog := models.DeleteLog{
				SnapshotID: snap.ID,
				PropertyID: snap.PropertyID,
				TakenAt:    snap.TakenAt,
				Reason:     models.DeleteReasonExpired,
			}
			if err := tx.Create(&deleteLog).Error; err != nil {
				return fmt.Errorf("create delete log: %w", err)
			}
			if err := tx.Where("snapshot_id = ?", snap.ID).Delete(&models.MatchSnapshotEntry{}).Error; err != nil {
				return fmt.Errorf("delete entries: %w", err)
			}
			if err := tx.Delete(&models.MatchSnapshot{}, snap.ID).Error; err != nil {
				return fmt.Errorf("delete snapshot: %w", err)
			}
			return nil
		})
		if err != nil {
			s.logger.Error("failed to delete snapshot", zap.Uint("snapshot_id", snap.ID), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("snapshot %d: %v", snap.ID, err))
			result.ErrorCount++
			continue
		}

		result.DeletedSnapshots = append(result.DeletedSnapshots, snap.ID)
		result.DeletedCount++
	}

	s.logger.Info("cleanup completed",
		zap.Int("deleted", result.DeletedCount),
		zap.Int("targets", result.TargetCount),
		zap.Int("errors", result.ErrorCount),
		zap.Bool("dry_run", cfg.DryRun),
	)

	return result, nil
}

// DeleteStats summarizes past and pending deletions
type DeleteStats struct {
	TotalDeleted      int64            `json:"total_deleted"`
	ByReason          map[string]int64 `json:"by_reason"`
	DeletedLast30Days int64            `json:"deleted_last_30_days"`
	ExpiredPending    int              `json:"expired_pending"`
	RetentionDays     int              `json:"retention_days"`
}

// GetDeleteStats returns statistics about deleted snapshots
func (s *Service) GetDeleteStats(ctx context.Context, retentionDays int) (*DeleteStats, error) {
	db := s.db.WithContext(ctx)
	stats := &DeleteStats{ByReason: map[string]int64{}, RetentionDays: retentionDays}

	if err := db.Model(&models.DeleteLog{}).Count(&stats.TotalDeleted).Error; err != nil {
		return nil, err
	}

	var reasonCounts []struct {
		Reason string
		Count  int64
	}
	if err := db.Model(&models.DeleteLog{}).
		Select("reason, count(*) as count").
		Group("reason").
		Scan(&reasonCounts).Error; err != nil {
		return nil, err
	}
	for _, rc := range reasonCounts {
		stats.ByReason[rc.Reason] = rc.Count
	}

	thirtyDaysAgo := s.now().AddDate(0, 0, -30)
	if err := db.Model(&models.DeleteLog{}).
		Where("deleted_at >= ?", thirtyDaysAgo).
		Count(&stats.DeletedLast30Days).Error; err != nil {
		return nil, err
	}

	expired, err := s.FindExpiredSnapshots(ctx, retentionDays)
	if err != nil {
		return nil, err
	}
	stats.ExpiredPending = len(expired)

	return stats, nil
}

// GetRecentDeleteLogs returns recent delete log entries
func (s *Service) GetRecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	var logs []models.DeleteLog
	err := s.db.WithContext(ctx).Order("deleted_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
