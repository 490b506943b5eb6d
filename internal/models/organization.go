package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"immo-backoffice/internal/matching"
)

// Organization is a client organization (Mandant)
type Organization struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null;index" json:"name"`
	ContactPerson string    `gorm:"type:varchar(255)" json:"contact_person,omitempty"`
	Email         string    `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone         string    `gorm:"type:varchar(64)" json:"phone,omitempty"`
	City          string    `gorm:"type:varchar(128)" json:"city,omitempty"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (Organization) TableName() string {
	return "mandanten"
}

// BeforeCreate assigns a UUID when none is set
func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// ToOwner returns the presentational fields used in match results
func (o *Organization) ToOwner() matching.Organization {
	return matching.Organization{
		ID:            o.ID,
		Name:          o.Name,
		ContactPerson: o.ContactPerson,
		Email:         o.Email,
	}
}
