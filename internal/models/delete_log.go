package models

import "time"

// DeleteLog records physically deleted match snapshots
type DeleteLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SnapshotID uint      `gorm:"not null;index" json:"snapshot_id"`
	PropertyID string    `gorm:"type:varchar(36);not null;index" json:"property_id"`
	TakenAt    time.Time `json:"taken_at"`
	DeletedAt  time.Time `gorm:"not null;autoCreateTime;index" json:"deleted_at"`
	Reason     string    `gorm:"type:varchar(50);not null" json:"reason"`
}

// TableName specifies the table name
func (DeleteLog) TableName() string {
	return "delete_logs"
}

// DeleteReason constants
const (
	DeleteReasonExpired = "retention_expired"
	DeleteReasonManual  = "manual_deletion"
)
