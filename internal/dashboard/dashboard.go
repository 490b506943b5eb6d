// Package dashboard computes the back-office overview counters on demand.
package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"immo-backoffice/internal/models"
)

// Stats are the overview counters
type Stats struct {
	Organizations    int64            `json:"organizations"`
	Properties       int64            `json:"properties"`
	ActiveProperties int64            `json:"active_properties"`
	ByAssetClass     map[string]int64 `json:"by_asset_class"`
	ActiveProfiles   int64            `json:"active_profiles"`
	Analyses         int64            `json:"analyses"`
	MatchSnapshots   int64            `json:"match_snapshots"`
	ComputedAt       time.Time        `json:"computed_at"`
}

// Service recomputes Stats and keeps the latest result
type Service struct {
	db     *gorm.DB
	logger *zap.Logger

	mu     sync.RWMutex
	latest *Stats
}

// NewService creates a new dashboard service
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger.Named("dashboard")}
}

// Recompute counts everything from scratch and replaces the cached result
func (s *Service) Recompute(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &Stats{ByAssetClass: map[string]int64{}}

	counts := []struct {
		model any
		where string
		args  []any
		dst   *int64
	}{
		{&models.Organization{}, "", nil, &stats.Organizations},
		{&models.Property{}, "", nil, &stats.Properties},
		{&models.Property{}, "status = ?", []any{models.PropertyStatusActive}, &stats.ActiveProperties},
		{&models.AcquisitionProfile{}, "active = ?", []any{true}, &stats.ActiveProfiles},
		{&models.Analysis{}, "", nil, &stats.Analyses},
		{&models.MatchSnapshot{}, "", nil, &stats.MatchSnapshots},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	var classes []struct {
		AssetClass string
		Count      int64
	}
	if err := db.Model(&models.Property{}).
		Select("asset_class, count(*) as count").
		Where("status = ?", models.PropertyStatusActive).
		Group("asset_class").
		Scan(&classes).Error; err != nil {
		return nil, err
	}
	for _, c := range classes {
		stats.ByAssetClass[c.AssetClass] = c.Count
	}

	stats.ComputedAt = time.Now()

	s.mu.Lock()
	s.latest = stats
	s.mu.Unlock()

	s.logger.Debug("dashboard recomputed",
		zap.Int64("properties", stats.Properties),
		zap.Int64("profiles", stats.ActiveProfiles),
	)
	return stats, nil
}

// Latest returns the result of the last recomputation, or nil before the first
func (s *Service) Latest() *Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
