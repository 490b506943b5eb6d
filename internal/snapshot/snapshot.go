package snapshot

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"immo-backoffice/internal/matching"
	"immo-backoffice/internal/models"
)

const scoreEpsilon = 1e-9

// Service records match runs and detects how the candidate list changed
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a new snapshot service
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger.Named("snapshot")}
}

// HistoryEntry is one recorded run together with its changes against the run before
type HistoryEntry struct {
	Snapshot models.MatchSnapshot `json:"snapshot"`
	Changes  []models.MatchChange `json:"changes"`
}

// Record stores the ranked results of one run and returns the changes against
// the previous run of the same property and exclusion scope.
func (s *Service) Record(ctx context.Context, propertyID, excludedOrgID string, results []matching.Result) (*models.MatchSnapshot, []models.MatchChange, error) {
	snap := &models.MatchSnapshot{
		PropertyID:    propertyID,
		ExcludedOrgID: excludedOrgID,
		Candidates:    len(results),
		TakenAt:       time.Now(),
		Entries:       EntriesFromResults(results),
	}
	if len(results) > 0 {
		snap.TopScore = results[0].Score
	}

	var changes []models.MatchChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := latest(tx, propertyID, excludedOrgID)
		if err != nil {
			return err
		}
		if prev != nil {
			changes = Diff(prev.Entries, snap.Entries)
		} else {
			changes = Diff(nil, snap.Entries)
		}
		return tx.Create(snap).Error
	})
	if err != nil {
		return nil, nil, err
	}

	if len(changes) > 0 {
		s.logger.Debug("match changes detected",
			zap.String("property_id", propertyID),
			zap.Int("changes", len(changes)),
		)
	}
	return snap, changes, nil
}

func latest(tx *gorm.DB, propertyID, excludedOrgID string) (*models.MatchSnapshot, error) {
	var snaps []models.MatchSnapshot
	err := tx.Where("property_id = ? AND excluded_org_id = ?", propertyID, excludedOrgID).
		Order("taken_at DESC").Order("id DESC").
		Limit(1).
		Preload("Entries", orderEntries).
		Find(&snaps).Error
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

func orderEntries(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// History returns up to limit runs for a property, newest first, each with its
// changes against the run before it
func (s *Service) History(ctx context.Context, propertyID, excludedOrgID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	var snaps []models.MatchSnapshot
	err := s.db.WithContext(ctx).
		Where("property_id = ? AND excluded_org_id = ?", propertyID, excludedOrgID).
		Order("taken_at DESC").Order("id DESC").
		Limit(limit + 1).
		Preload("Entries", orderEntries).
		Find(&snaps).Error
	if err != nil {
		return nil, err
	}

	n := len(snaps)
	if n > limit {
		n = limit
	}
	history := make([]HistoryEntry, 0, n)
	for i := 0; i < n; i++ {
		var prev []models.MatchSnapshotEntry
		if i+1 < len(snaps) {
			prev = snaps[i+1].Entries
		}
		history = append(history, HistoryEntry{
			Snapshot: snaps[i],
			Changes:  Diff(prev, snaps[i].Entries),
		})
	}
	return history, nil
}

// EntriesFromResults converts ranked results into snapshot entries
func EntriesFromResults(results []matching.Result) []models.MatchSnapshotEntry {
	entries := make([]models.MatchSnapshotEntry, 0, len(results))
	for i, r := range results {
		matched := make([]string, 0, len(r.Criteria))
		for _, c := range r.MatchedCriteria() {
			matched = append(matched, string(c))
		}
		entries = append(entries, models.MatchSnapshotEntry{
			ProfileID:      r.ProfileID,
			OrganizationID: r.Organization.ID,
			Position:       i + 1,
			Score:          r.Score,
			Matched:        strings.Join(matched, ","),
		})
	}
	return entries
}

// Diff compares two ranked entry lists. Changes for current entries come first
// in rank order, followed by dropped candidates in their previous rank order.
func Diff(prev, cur []models.MatchSnapshotEntry) []models.MatchChange {
	before := make(map[string]models.MatchSnapshotEntry, len(prev))
	for _, e := range prev {
		before[e.ProfileID] = e
	}
	seen := make(map[string]bool, len(cur))

	changes := []models.MatchChange{}
	for _, e := range cur {
		seen[e.ProfileID] = true
		newScore := e.Score

		old, ok := before[e.ProfileID]
		if !ok {
			changes = append(changes, models.MatchChange{
				ProfileID:  e.ProfileID,
				ChangeType: models.ChangeTypeNewCandidate,
				NewScore:   &newScore,
				NewRank:    e.Position,
			})
			continue
		}

		oldScore := old.Score
		switch {
		case math.Abs(old.Score-e.Score) > scoreEpsilon:
			changes = append(changes, models.MatchChange{
				ProfileID:  e.ProfileID,
				ChangeType: models.ChangeTypeScoreChanged,
				OldScore:   &oldScore,
				NewScore:   &newScore,
				OldRank:    old.Position,
				NewRank:    e.Position,
			})
		case old.Position != e.Position:
			changes = append(changes, models.MatchChange{
				ProfileID:  e.ProfileID,
				ChangeType: models.ChangeTypeRankChanged,
				OldScore:   &oldScore,
				NewScore:   &newScore,
				OldRank:    old.Position,
				NewRank:    e.Position,
			})
		}
	}

	for _, e := range prev {
		if seen[e.ProfileID] {
			continue
		}
		oldScore := e.Score
		changes = append(changes, models.MatchChange{
			ProfileID:  e.ProfileID,
			ChangeType: models.ChangeTypeDroppedCandidate,
			OldScore:   &oldScore,
			OldRank:    e.Position,
		})
	}

	return changes
}

// Count returns the number of stored snapshots
func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.MatchSnapshot{}).Count(&n).Error
	return n, err
}
