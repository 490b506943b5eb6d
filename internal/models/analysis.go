package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Analysis is a financial analysis (Auswertung) generated for a property
type Analysis struct {
	ID             string              `gorm:"type:varchar(36);primaryKey" json:"id"`
	PropertyID     string              `gorm:"type:varchar(36);not null;index:idx_analysis_property_created" json:"property_id"`
	PurchasePrice  decimal.Decimal     `gorm:"type:decimal(14,2)" json:"purchase_price"`
	AnnualRent     decimal.Decimal     `gorm:"type:decimal(14,2)" json:"annual_rent"`
	ProjectedYield decimal.NullDecimal `gorm:"type:decimal(6,3)" json:"projected_yield"`
	CreatedAt      time.Time           `gorm:"not null;autoCreateTime;index:idx_analysis_property_created,priority:2" json:"created_at"`
}

// TableName specifies the table name
func (Analysis) TableName() string {
	return "auswertungen"
}

// BeforeCreate assigns a UUID and derives the gross yield when missing
func (a *Analysis) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if !a.ProjectedYield.Valid {
		if y, ok := GrossYield(a.AnnualRent, a.PurchasePrice); ok {
			a.ProjectedYield = decimal.NewNullDecimal(y)
		}
	}
	return nil
}

// GrossYield returns annual rent / purchase price in percent, rounded to 3 places
func GrossYield(annualRent, purchasePrice decimal.Decimal) (decimal.Decimal, bool) {
	if !purchasePrice.IsPositive() || annualRent.IsNegative() {
		return decimal.Zero, false
	}
	return annualRent.Div(purchasePrice).Mul(decimal.NewFromInt(100)).Round(3), true
}
