package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"immo-backoffice/internal/matching"
)

// Property is a real-estate record (Objekt)
type Property struct {
	ID             string `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrganizationID string `gorm:"type:varchar(36);not null;index" json:"organization_id"`
	Title          string `gorm:"type:text;not null" json:"title"`

	// Matching attributes
	AssetClass     string              `gorm:"type:varchar(40);index" json:"asset_class"`
	Region         string              `gorm:"type:varchar(255);index" json:"region"`
	Address        string              `gorm:"type:text" json:"address,omitempty"`
	PurchasePrice  decimal.Decimal     `gorm:"type:decimal(14,2)" json:"purchase_price"`
	LivingArea     *float64            `gorm:"type:decimal(10,2)" json:"living_area,omitempty"`
	ProjectedYield decimal.NullDecimal `gorm:"type:decimal(6,3)" json:"projected_yield"`

	Status     PropertyStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	ArchivedAt *time.Time     `json:"archived_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// PropertyStatus is the lifecycle state of a property
type PropertyStatus string

const (
	PropertyStatusActive   PropertyStatus = "active"
	PropertyStatusArchived PropertyStatus = "archived"
)

// TableName specifies the table name
func (Property) TableName() string {
	return "objekte"
}

// BeforeCreate assigns a UUID when none is set
func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = PropertyStatusActive
	}
	return nil
}

// IsActive reports whether the property can be matched
func (p *Property) IsActive() bool {
	return p.Status == PropertyStatusActive
}

// Archive marks the property as archived (logical deletion)
func (p *Property) Archive() {
	p.Status = PropertyStatusArchived
	now := time.Now()
	p.ArchivedAt = &now
}

// ToSubject converts the record into the engine's input. fallbackYield is used
// when the property itself carries no projected yield, typically the yield of
// its latest analysis.
func (p *Property) ToSubject(fallbackYield *decimal.Decimal) matching.Property {
	subject := matching.Property{
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		AssetClass:     matching.AssetClass(p.AssetClass),
		Region:         p.Region,
		Price:          p.PurchasePrice,
	}
	if p.ProjectedYield.Valid {
		y := p.ProjectedYield.Decimal
		subject.Yield = &y
	} else if fallbackYield != nil {
		y := *fallbackYield
		subject.Yield = &y
	}
	return subject
}
