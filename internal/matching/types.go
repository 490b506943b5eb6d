package matching

import (
	"github.com/shopspring/decimal"
)

// AssetClass is the usage type of a property (Assetklasse)
type AssetClass string

const (
	AssetClassResidential AssetClass = "Wohnen"
	AssetClassCommercial  AssetClass = "Gewerbe"
	AssetClassMixed       AssetClass = "Gemischt"
	AssetClassLand        AssetClass = "Grundstück"
)

// Property is the subject of a match run
type Property struct {
	ID             string
	OrganizationID string
	AssetClass     AssetClass
	Region         string
	Price          decimal.Decimal
	// Yield is the projected yield in percent, nil when unknown
	Yield *decimal.Decimal
}

// Profile is an acquisition profile (Ankaufsprofil) of a buyer organization
type Profile struct {
	ID             string
	OrganizationID string
	Name           string
	MinVolume      *decimal.Decimal
	MaxVolume      *decimal.Decimal
	AssetClasses   []AssetClass
	Regions        []string
	MinYield       *decimal.Decimal
	Notes          string
}

// Organization is the owner of a profile. Only used for presentation.
type Organization struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContactPerson string `json:"contactPerson"`
	Email         string `json:"email"`
}

// Criterion names one scoring dimension
type Criterion string

const (
	CriterionVolume     Criterion = "volume"
	CriterionAssetClass Criterion = "asset_class"
	CriterionRegion     Criterion = "region"
	CriterionYield      Criterion = "yield"
)

// Status is the outcome of a single criterion
type Status string

const (
	StatusMatched      Status = "matched"
	StatusFailed       Status = "failed"
	StatusNotEvaluated Status = "not_evaluated"
)

// CriterionResult is the per-criterion breakdown of a result
type CriterionResult struct {
	Criterion Criterion `json:"criterion"`
	Status    Status    `json:"status"`
	Score     float64   `json:"score"`
	Weight    float64   `json:"weight"`
	// Counted is false when the criterion is left out of the weighted mean
	Counted bool `json:"counted"`
}

// Result is one ranked candidate profile
type Result struct {
	ProfileID    string            `json:"profileId"`
	ProfileName  string            `json:"profileName"`
	Organization Organization      `json:"organization"`
	Score        float64           `json:"score"`
	Criteria     []CriterionResult `json:"criteria"`
}

// MatchedCriteria lists the criteria that matched, in evaluation order
func (r Result) MatchedCriteria() []Criterion {
	out := make([]Criterion, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		if c.Status == StatusMatched {
			out = append(out, c.Criterion)
		}
	}
	return out
}

// Criterion returns the breakdown entry for c
func (r Result) Criterion(c Criterion) (CriterionResult, bool) {
	for _, cr := range r.Criteria {
		if cr.Criterion == c {
			return cr, true
		}
	}
	return CriterionResult{}, false
}
