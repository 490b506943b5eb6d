package models

import "time"

// MatchSnapshot records one match run for a property
type MatchSnapshot struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID string `gorm:"type:varchar(36);not null;index:idx_snapshot_property_taken" json:"property_id"`
	// ExcludedOrgID is the organization left out of the candidate pool, empty for admin runs
	ExcludedOrgID string    `gorm:"type:varchar(36);not null;default:''" json:"excluded_org_id,omitempty"`
	Candidates    int       `gorm:"not null;default:0" json:"candidates"`
	TopScore      float64   `gorm:"not null;default:0" json:"top_score"`
	TakenAt       time.Time `gorm:"not null;index:idx_snapshot_property_taken,priority:2;index:idx_snapshot_taken" json:"taken_at"`

	Entries []MatchSnapshotEntry `gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE" json:"entries,omitempty"`
}

// TableName specifies the table name
func (MatchSnapshot) TableName() string {
	return "match_snapshots"
}

// MatchSnapshotEntry is one ranked profile of a snapshot
type MatchSnapshotEntry struct {
	ID             uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	SnapshotID     uint    `gorm:"not null;index" json:"snapshot_id"`
	ProfileID      string  `gorm:"type:varchar(36);not null;index" json:"profile_id"`
	OrganizationID string  `gorm:"type:varchar(36);not null" json:"organization_id"`
	Position       int     `gorm:"not null" json:"position"`
	Score          float64 `gorm:"not null" json:"score"`
	Matched        string  `gorm:"type:varchar(255)" json:"matched"` // comma separated criteria
}

// TableName specifies the table name
func (MatchSnapshotEntry) TableName() string {
	return "match_snapshot_entries"
}

// MatchChange describes how a profile's standing changed between two runs
type MatchChange struct {
	ProfileID  string   `json:"profile_id"`
	ChangeType string   `json:"change_type"`
	OldScore   *float64 `json:"old_score,omitempty"`
	NewScore   *float64 `json:"new_score,omitempty"`
	OldRank    int      `json:"old_rank,omitempty"`
	NewRank    int      `json:"new_rank,omitempty"`
}

// ChangeType constants
const (
	ChangeTypeNewCandidate     = "new_candidate"
	ChangeTypeDroppedCandidate = "dropped_candidate"
	ChangeTypeScoreChanged     = "score_changed"
	ChangeTypeRankChanged      = "rank_changed"
)
