// Package matching ranks acquisition profiles against a property.
//
// The engine is a pure computation: it performs no I/O, keeps no state between
// calls and never mutates its inputs, so one Engine can serve concurrent requests.
package matching

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidSubject is returned when the property lacks a field needed for scoring
var ErrInvalidSubject = errors.New("invalid subject property")

// Score constants of the fixed weighting scheme
const (
	ScoreMatched = 1.0
	ScoreFailed  = 0.0
	// ScoreNeutral is used for a volume criterion that could not be evaluated.
	// It stays at or below 1/4 so that a profile matching three criteria and
	// missing its yield threshold (3/4) never scores below an unconstrained one.
	ScoreNeutral = 0.25
)

// Weights of each criterion in the weighted mean
type Weights struct {
	Volume     float64 `yaml:"volume"`
	AssetClass float64 `yaml:"asset_class"`
	Region     float64 `yaml:"region"`
	Yield      float64 `yaml:"yield"`
}

// DefaultWeights weighs every criterion equally
func DefaultWeights() Weights {
	return Weights{Volume: 1, AssetClass: 1, Region: 1, Yield: 1}
}

// Options tune the engine
type Options struct {
	Weights Weights
	// VolumeTolerance enables partial volume scores for near misses, as a fraction
	// of the violated bound. Zero keeps volume scoring binary.
	VolumeTolerance float64
	// MinScore drops results scoring below it. Zero keeps every result.
	MinScore float64
}

// DefaultOptions returns equal weights, binary volume scoring and no score floor
func DefaultOptions() Options {
	return Options{Weights: DefaultWeights()}
}

// Engine scores profiles against properties
type Engine struct {
	opts Options
}

// NewEngine creates an engine with the given options
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// NeutralBaseline is the aggregate score of a profile without any constraint
func (e *Engine) NeutralBaseline() float64 {
	w := e.opts.Weights
	sumW := w.Volume + w.AssetClass + w.Region
	if sumW <= 0 {
		return 0
	}
	return (w.Volume*ScoreNeutral + w.AssetClass*ScoreMatched + w.Region*ScoreMatched) / sumW
}

// Match scores every profile against property and returns the ranked results.
// Profiles whose organization is missing from organizations are skipped.
func (e *Engine) Match(property Property, profiles []Profile, organizations map[string]Organization) ([]Result, error) {
	if err := validateSubject(property); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(profiles))
	for _, p := range profiles {
		org, ok := organizations[p.OrganizationID]
		if !ok {
			continue
		}
		r := e.scoreProfile(property, p)
		r.Organization = org
		if r.Score < e.opts.MinScore {
			continue
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if am, bm := len(a.MatchedCriteria()), len(b.MatchedCriteria()); am != bm {
			return am > bm
		}
		an, bn := strings.ToLower(a.Organization.Name), strings.ToLower(b.Organization.Name)
		if an != bn {
			return an < bn
		}
		if a.ProfileName != b.ProfileName {
			return a.ProfileName < b.ProfileName
		}
		return a.ProfileID < b.ProfileID
	})

	return results, nil
}

func validateSubject(p Property) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSubject)
	}
	if strings.TrimSpace(string(p.AssetClass)) == "" {
		return fmt.Errorf("%w: property %s has no asset class", ErrInvalidSubject, p.ID)
	}
	if strings.TrimSpace(p.Region) == "" {
		return fmt.Errorf("%w: property %s has no region", ErrInvalidSubject, p.ID)
	}
	return nil
}

func (e *Engine) scoreProfile(property Property, profile Profile) Result {
	w := e.opts.Weights
	criteria := []CriterionResult{
		e.volumeFit(property, profile, w.Volume),
		assetClassFit(property, profile, w.AssetClass),
		regionFit(property, profile, w.Region),
		yieldFit(property, profile, w.Yield),
	}

	var sum, sumW float64
	for _, c := range criteria {
		if !c.Counted || c.Weight <= 0 {
			continue
		}
		sum += c.Weight * c.Score
		sumW += c.Weight
	}

	score := 0.0
	if sumW > 0 {
		score = sum / sumW
	}

	return Result{
		ProfileID:   profile.ID,
		ProfileName: profile.Name,
		Score:       score,
		Criteria:    criteria,
	}
}

func (e *Engine) volumeFit(property Property, profile Profile, weight float64) CriterionResult {
	res := CriterionResult{Criterion: CriterionVolume, Weight: weight, Counted: true}

	if (profile.MinVolume == nil && profile.MaxVolume == nil) || !property.Price.IsPositive() {
		res.Status = StatusNotEvaluated
		res.Score = ScoreNeutral
		return res
	}

	if profile.MinVolume != nil && profile.MaxVolume != nil && profile.MinVolume.GreaterThan(*profile.MaxVolume) {
		res.Status = StatusFailed
		res.Score = ScoreFailed
		return res
	}

	price := property.Price
	switch {
	case profile.MinVolume != nil && price.LessThan(*profile.MinVolume):
		res.Status = StatusFailed
		res.Score = e.nearMiss(profile.MinVolume.Sub(price), *profile.MinVolume)
	case profile.MaxVolume != nil && price.GreaterThan(*profile.MaxVolume):
		res.Status = StatusFailed
		res.Score = e.nearMiss(price.Sub(*profile.MaxVolume), *profile.MaxVolume)
	default:
		res.Status = StatusMatched
		res.Score = ScoreMatched
	}
	return res
}

// nearMiss decays linearly from ScoreNeutral to 0 over tolerance*bound. A
// near miss never scores above a volume range that was not evaluated.
func (e *Engine) nearMiss(distance, bound decimal.Decimal) float64 {
	if e.opts.VolumeTolerance <= 0 || !bound.IsPositive() {
		return ScoreFailed
	}
	span := bound.Mul(decimal.NewFromFloat(e.opts.VolumeTolerance))
	if !span.IsPositive() {
		return ScoreFailed
	}
	v, _ := decimal.NewFromInt(1).Sub(distance.Div(span)).Float64()
	if v <= 0 || v >= 1 {
		return ScoreFailed
	}
	return v * ScoreNeutral
}

func assetClassFit(property Property, profile Profile, weight float64) CriterionResult {
	res := CriterionResult{Criterion: CriterionAssetClass, Weight: weight, Counted: true}

	accepted := 0
	for _, ac := range profile.AssetClasses {
		if strings.TrimSpace(string(ac)) == "" {
			continue
		}
		accepted++
		if strings.EqualFold(strings.TrimSpace(string(ac)), strings.TrimSpace(string(property.AssetClass))) {
			res.Status = StatusMatched
			res.Score = ScoreMatched
			return res
		}
	}

	// an empty set accepts any asset class
	if accepted == 0 {
		res.Status = StatusMatched
		res.Score = ScoreMatched
		return res
	}

	res.Status = StatusFailed
	res.Score = ScoreFailed
	return res
}

func regionFit(property Property, profile Profile, weight float64) CriterionResult {
	res := CriterionResult{Criterion: CriterionRegion, Weight: weight, Counted: true}

	subject := strings.ToLower(strings.TrimSpace(property.Region))
	targets := 0
	for _, r := range profile.Regions {
		target := strings.ToLower(strings.TrimSpace(r))
		if target == "" {
			continue
		}
		targets++
		if strings.Contains(subject, target) || strings.Contains(target, subject) {
			res.Status = StatusMatched
			res.Score = ScoreMatched
			return res
		}
	}

	if targets == 0 {
		res.Status = StatusMatched
		res.Score = ScoreMatched
		return res
	}

	res.Status = StatusFailed
	res.Score = ScoreFailed
	return res
}

func yieldFit(property Property, profile Profile, weight float64) CriterionResult {
	res := CriterionResult{Criterion: CriterionYield, Weight: weight}

	if profile.MinYield == nil || property.Yield == nil {
		res.Status = StatusNotEvaluated
		return res
	}

	res.Counted = true
	if property.Yield.GreaterThanOrEqual(*profile.MinYield) {
		res.Status = StatusMatched
		res.Score = ScoreMatched
	} else {
		res.Status = StatusFailed
		res.Score = ScoreFailed
	}
	return res
}
