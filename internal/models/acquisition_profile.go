package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"immo-backoffice/internal/matching"
)

// AcquisitionProfile is a buyer's investment criteria (Ankaufsprofil)
type AcquisitionProfile struct {
	ID             string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrganizationID string                      `gorm:"type:varchar(36);not null;index" json:"organization_id"`
	Name           string                      `gorm:"type:varchar(255);not null" json:"name"`
	MinVolume      decimal.NullDecimal         `gorm:"type:decimal(14,2)" json:"min_volume"`
	MaxVolume      decimal.NullDecimal         `gorm:"type:decimal(14,2)" json:"max_volume"`
	AssetClasses   datatypes.JSONSlice[string] `json:"asset_classes"`
	// Regions is free text; several regions are separated by comma, semicolon or newline
	Regions  string              `gorm:"type:text" json:"regions"`
	MinYield decimal.NullDecimal `gorm:"type:decimal(6,3)" json:"min_yield"`
	// Notes are supplementary constraints shown to the user, never evaluated
	Notes     string    `gorm:"type:text" json:"notes,omitempty"`
	Active    bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (AcquisitionProfile) TableName() string {
	return "ankaufsprofile"
}

// BeforeCreate assigns a UUID when none is set
func (a *AcquisitionProfile) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// SplitRegions splits a free-text region list into trimmed, non-empty entries
func SplitRegions(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '|'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ToCandidate converts the record into the engine's input
func (a *AcquisitionProfile) ToCandidate() matching.Profile {
	p := matching.Profile{
		ID:             a.ID,
		OrganizationID: a.OrganizationID,
		Name:           a.Name,
		Regions:        SplitRegions(a.Regions),
		Notes:          a.Notes,
	}
	if a.MinVolume.Valid {
		v := a.MinVolume.Decimal
		p.MinVolume = &v
	}
	if a.MaxVolume.Valid {
		v := a.MaxVolume.Decimal
		p.MaxVolume = &v
	}
	if a.MinYield.Valid {
		v := a.MinYield.Decimal
		p.MinYield = &v
	}
	for _, ac := range a.AssetClasses {
		if ac = strings.TrimSpace(ac); ac != "" {
			p.AssetClasses = append(p.AssetClasses, matching.AssetClass(ac))
		}
	}
	return p
}
