package matching

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func decf(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func hamburgProperty() Property {
	return Property{
		ID:             "obj-1",
		OrganizationID: "org-seller",
		AssetClass:     AssetClassResidential,
		Region:         "Hamburg",
		Price:          decimal.NewFromInt(800000),
	}
}

func orgs(ids ...string) map[string]Organization {
	m := make(map[string]Organization, len(ids))
	for _, id := range ids {
		m[id] = Organization{ID: id, Name: "Org " + id, ContactPerson: "Kontakt " + id, Email: id + "@example.de"}
	}
	return m
}

func TestMatch_ScenarioAandB(t *testing.T) {
	e := NewEngine(DefaultOptions())

	profileA := Profile{
		ID: "A", OrganizationID: "a", Name: "Profil A",
		MinVolume: dec(500000), MaxVolume: dec(1000000),
		AssetClasses: []AssetClass{AssetClassResidential},
		Regions:      []string{"Hamburg"},
	}
	profileB := Profile{
		ID: "B", OrganizationID: "b", Name: "Profil B",
		MinVolume: dec(2000000), MaxVolume: dec(5000000),
		AssetClasses: []AssetClass{AssetClassCommercial},
		Regions:      []string{"München"},
	}

	// B first in the input so ordering is proven by the ranking
	results, err := e.Match(hamburgProperty(), []Profile{profileB, profileA}, orgs("a", "b"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "A", results[0].ProfileID)
	assert.Equal(t, 1.0, results[0].Score)
	assert.ElementsMatch(t, []Criterion{CriterionVolume, CriterionAssetClass, CriterionRegion}, results[0].MatchedCriteria())

	assert.Equal(t, "B", results[1].ProfileID)
	assert.Equal(t, 0.0, results[1].Score)
	assert.Empty(t, results[1].MatchedCriteria())

	yield, ok := results[0].Criterion(CriterionYield)
	require.True(t, ok)
	assert.Equal(t, StatusNotEvaluated, yield.Status)
	assert.False(t, yield.Counted)
}

func TestMatch_UnconstrainedProfileScoresNeutralBaseline(t *testing.T) {
	e := NewEngine(DefaultOptions())
	profileC := Profile{ID: "C", OrganizationID: "c", Name: "Profil C", AssetClasses: []AssetClass{}, Regions: []string{""}}

	properties := []Property{
		hamburgProperty(),
		{ID: "obj-2", AssetClass: AssetClassCommercial, Region: "Berlin-Mitte", Price: decimal.NewFromInt(12000000)},
		{ID: "obj-3", AssetClass: AssetClassLand, Region: "Leipzig", Price: decimal.Zero},
	}

	for _, p := range properties {
		results, err := e.Match(p, []Profile{profileC}, orgs("c"))
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.InDelta(t, 2.25/3, results[0].Score, 1e-9)
		assert.InDelta(t, e.NeutralBaseline(), results[0].Score, 1e-9)

		vol, _ := results[0].Criterion(CriterionVolume)
		assert.Equal(t, StatusNotEvaluated, vol.Status)
		assert.Equal(t, ScoreNeutral, vol.Score)

		ac, _ := results[0].Criterion(CriterionAssetClass)
		assert.Equal(t, StatusMatched, ac.Status)
		region, _ := results[0].Criterion(CriterionRegion)
		assert.Equal(t, StatusMatched, region.Status)
	}
}

func TestMatch_EmptyPool(t *testing.T) {
	e := NewEngine(DefaultOptions())

	results, err := e.Match(hamburgProperty(), nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	results, err = e.Match(hamburgProperty(), []Profile{}, orgs("a"))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatch_InvalidSubject(t *testing.T) {
	e := NewEngine(DefaultOptions())
	profiles := []Profile{{ID: "A", OrganizationID: "a"}}

	tests := []struct {
		name   string
		mutate func(p *Property)
	}{
		{"missing id", func(p *Property) { p.ID = "" }},
		{"missing asset class", func(p *Property) { p.AssetClass = "" }},
		{"blank region", func(p *Property) { p.Region = "   " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := hamburgProperty()
			tt.mutate(&p)
			results, err := e.Match(p, profiles, orgs("a"))
			assert.ErrorIs(t, err, ErrInvalidSubject)
			assert.Nil(t, results)
		})
	}
}

func TestMatch_MissingPriceIsNeutral(t *testing.T) {
	e := NewEngine(DefaultOptions())
	p := hamburgProperty()
	p.Price = decimal.NewFromInt(-5)

	results, err := e.Match(p, []Profile{{ID: "A", OrganizationID: "a", MinVolume: dec(1), MaxVolume: dec(10)}}, orgs("a"))
	require.NoError(t, err)

	vol, _ := results[0].Criterion(CriterionVolume)
	assert.Equal(t, StatusNotEvaluated, vol.Status)
	assert.Equal(t, ScoreNeutral, vol.Score)
}

func TestMatch_VolumeBoundaries(t *testing.T) {
	e := NewEngine(DefaultOptions())
	profile := Profile{ID: "A", OrganizationID: "a", MinVolume: dec(500000), MaxVolume: dec(1000000)}

	tests := []struct {
		price  int64
		score  float64
		status Status
	}{
		{500000, 1.0, StatusMatched},
		{1000000, 1.0, StatusMatched},
		{499999, 0.0, StatusFailed},
		{1000001, 0.0, StatusFailed},
		{750000, 1.0, StatusMatched},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("price %d", tt.price), func(t *testing.T) {
			p := hamburgProperty()
			p.Price = decimal.NewFromInt(tt.price)
			results, err := e.Match(p, []Profile{profile}, orgs("a"))
			require.NoError(t, err)
			vol, _ := results[0].Criterion(CriterionVolume)
			assert.Equal(t, tt.status, vol.Status)
			assert.Equal(t, tt.score, vol.Score)
		})
	}
}

func TestMatch_HalfOpenAndInvertedRanges(t *testing.T) {
	e := NewEngine(DefaultOptions())

	tests := []struct {
		name    string
		profile Profile
		status  Status
	}{
		{"only min, satisfied", Profile{MinVolume: dec(100000)}, StatusMatched},
		{"only min, violated", Profile{MinVolume: dec(900000)}, StatusFailed},
		{"only max, satisfied", Profile{MaxVolume: dec(800000)}, StatusMatched},
		{"only max, violated", Profile{MaxVolume: dec(799999)}, StatusFailed},
		{"inverted range containing price", Profile{MinVolume: dec(1000000), MaxVolume: dec(500000)}, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.profile.ID = "A"
			tt.profile.OrganizationID = "a"
			results, err := e.Match(hamburgProperty(), []Profile{tt.profile}, orgs("a"))
			require.NoError(t, err)
			vol, _ := results[0].Criterion(CriterionVolume)
			assert.Equal(t, tt.status, vol.Status)
		})
	}
}

func TestMatch_VolumeTolerance(t *testing.T) {
	opts := DefaultOptions()
	opts.VolumeTolerance = 0.1
	e := NewEngine(opts)

	profile := Profile{ID: "A", OrganizationID: "a", MaxVolume: dec(1000000)}

	tests := []struct {
		price int64
		score float64
	}{
		{1025000, 0.75 * ScoreNeutral},
		{1050000, 0.5 * ScoreNeutral},
		{1100000, 0.0},
		{1200000, 0.0},
		{1000000, 1.0},
	}

	for _, tt := range tests {
		p := hamburgProperty()
		p.Price = decimal.NewFromInt(tt.price)
		results, err := e.Match(p, []Profile{profile}, orgs("a"))
		require.NoError(t, err)
		vol, _ := results[0].Criterion(CriterionVolume)
		assert.InDelta(t, tt.score, vol.Score, 1e-9, "price %d", tt.price)
		if tt.price > 1000000 {
			assert.Equal(t, StatusFailed, vol.Status)
		}
	}
}

func TestMatch_AssetClass(t *testing.T) {
	e := NewEngine(DefaultOptions())

	tests := []struct {
		name    string
		classes []AssetClass
		status  Status
	}{
		{"member", []AssetClass{AssetClassCommercial, AssetClassResidential}, StatusMatched},
		{"case insensitive", []AssetClass{"wohnen"}, StatusMatched},
		{"not a member", []AssetClass{AssetClassCommercial}, StatusFailed},
		{"nil set means any", nil, StatusMatched},
		{"only blanks means any", []AssetClass{" "}, StatusMatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := e.Match(hamburgProperty(), []Profile{{ID: "A", OrganizationID: "a", AssetClasses: tt.classes}}, orgs("a"))
			require.NoError(t, err)
			ac, _ := results[0].Criterion(CriterionAssetClass)
			assert.Equal(t, tt.status, ac.Status)
		})
	}
}

func TestMatch_Region(t *testing.T) {
	e := NewEngine(DefaultOptions())

	tests := []struct {
		name    string
		subject string
		regions []string
		status  Status
	}{
		{"subject contains target", "Hamburg-Nord", []string{"Hamburg"}, StatusMatched},
		{"target contains subject", "Hamburg", []string{"Metropolregion Hamburg"}, StatusMatched},
		{"case insensitive", "HAMBURG-altona", []string{"hamburg"}, StatusMatched},
		{"any of several", "Köln", []string{"Berlin", "köln"}, StatusMatched},
		{"no overlap", "Hamburg", []string{"München", "Berlin"}, StatusFailed},
		{"no regions means any", "Hamburg", nil, StatusMatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := hamburgProperty()
			p.Region = tt.subject
			results, err := e.Match(p, []Profile{{ID: "A", OrganizationID: "a", Regions: tt.regions}}, orgs("a"))
			require.NoError(t, err)
			region, _ := results[0].Criterion(CriterionRegion)
			assert.Equal(t, tt.status, region.Status)
		})
	}
}

func TestMatch_Yield(t *testing.T) {
	e := NewEngine(DefaultOptions())
	base := Profile{
		ID: "A", OrganizationID: "a",
		MinVolume: dec(500000), MaxVolume: dec(1000000),
		AssetClasses: []AssetClass{AssetClassResidential}, Regions: []string{"Hamburg"},
	}

	t.Run("met threshold counts as fourth criterion", func(t *testing.T) {
		p := hamburgProperty()
		p.Yield = decf(4.5)
		profile := base
		profile.MinYield = decf(4.5)
		results, err := e.Match(p, []Profile{profile}, orgs("a"))
		require.NoError(t, err)
		assert.Equal(t, 1.0, results[0].Score)
		y, _ := results[0].Criterion(CriterionYield)
		assert.Equal(t, StatusMatched, y.Status)
		assert.True(t, y.Counted)
	})

	t.Run("missed threshold lowers score to three quarters", func(t *testing.T) {
		p := hamburgProperty()
		p.Yield = decf(3.9)
		profile := base
		profile.MinYield = decf(4.0)
		results, err := e.Match(p, []Profile{profile}, orgs("a"))
		require.NoError(t, err)
		assert.InDelta(t, 0.75, results[0].Score, 1e-9)
	})

	t.Run("unknown property yield is not evaluated", func(t *testing.T) {
		profile := base
		profile.MinYield = decf(4.0)
		results, err := e.Match(hamburgProperty(), []Profile{profile}, orgs("a"))
		require.NoError(t, err)
		assert.Equal(t, 1.0, results[0].Score)
		y, _ := results[0].Criterion(CriterionYield)
		assert.Equal(t, StatusNotEvaluated, y.Status)
	})
}

func TestMatch_OrphanedProfileSkipped(t *testing.T) {
	e := NewEngine(DefaultOptions())
	profiles := []Profile{
		{ID: "A", OrganizationID: "a", Name: "A"},
		{ID: "X", OrganizationID: "ghost", Name: "X"},
	}

	results, err := e.Match(hamburgProperty(), profiles, orgs("a"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].ProfileID)
	assert.Equal(t, "Org a", results[0].Organization.Name)
}

func TestMatch_SelfMatchTolerated(t *testing.T) {
	e := NewEngine(DefaultOptions())
	p := hamburgProperty()

	results, err := e.Match(p, []Profile{{ID: "own", OrganizationID: p.OrganizationID}}, orgs(p.OrganizationID))
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestMatch_TieBreaking(t *testing.T) {
	e := NewEngine(DefaultOptions())
	organizations := map[string]Organization{
		"z": {ID: "z", Name: "Zeta Invest"},
		"a": {ID: "a", Name: "alpha Capital"},
		"m": {ID: "m", Name: "Meridian"},
	}
	profiles := []Profile{
		{ID: "p3", OrganizationID: "z", Name: "Core"},
		{ID: "p2", OrganizationID: "m", Name: "Value"},
		{ID: "p1", OrganizationID: "a", Name: "Core"},
		{ID: "p0", OrganizationID: "m", Name: "Core"},
	}

	results, err := e.Match(hamburgProperty(), profiles, organizations)
	require.NoError(t, err)

	var ids []string
	for _, r := range results {
		ids = append(ids, r.ProfileID)
	}
	assert.Equal(t, []string{"p1", "p0", "p2", "p3"}, ids)
}

func TestMatch_MinScoreOption(t *testing.T) {
	opts := DefaultOptions()
	opts.MinScore = 0.5
	e := NewEngine(opts)

	profiles := []Profile{
		{ID: "hit", OrganizationID: "a", Regions: []string{"Hamburg"}},
		{ID: "miss", OrganizationID: "a", MinVolume: dec(5000000), AssetClasses: []AssetClass{AssetClassCommercial}, Regions: []string{"Dresden"}},
	}

	results, err := e.Match(hamburgProperty(), profiles, orgs("a"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hit", results[0].ProfileID)
}

func TestMatch_ZeroScoresKeptByDefault(t *testing.T) {
	e := NewEngine(DefaultOptions())
	profiles := []Profile{
		{ID: "miss", OrganizationID: "a", MinVolume: dec(5000000), AssetClasses: []AssetClass{AssetClassCommercial}, Regions: []string{"Dresden"}},
	}

	results, err := e.Match(hamburgProperty(), profiles, orgs("a"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
}

func TestMatch_Deterministic(t *testing.T) {
	e := NewEngine(DefaultOptions())
	p := hamburgProperty()
	p.Yield = decf(5)
	profiles := generateProfiles()
	organizations := map[string]Organization{}
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("org-%d", i)
		// duplicate names force the secondary keys
		organizations[id] = Organization{ID: id, Name: fmt.Sprintf("Org %d", i%3)}
	}

	first, err := e.Match(p, profiles, organizations)
	require.NoError(t, err)
	second, err := e.Match(p, profiles, organizations)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMatch_InputsNotMutated(t *testing.T) {
	e := NewEngine(DefaultOptions())
	p := hamburgProperty()
	profiles := []Profile{
		{ID: "b", OrganizationID: "b", Regions: []string{" Hamburg "}, AssetClasses: []AssetClass{"Gewerbe"}},
		{ID: "a", OrganizationID: "a", Regions: []string{"Hamburg"}},
	}
	before, _ := json.Marshal(profiles)

	_, err := e.Match(p, profiles, orgs("a", "b"))
	require.NoError(t, err)

	after, _ := json.Marshal(profiles)
	assert.Equal(t, string(before), string(after))
	assert.Equal(t, hamburgProperty(), p)
}

// generateProfiles builds every combination of volume, asset class, region and yield outcome
func generateProfiles() []Profile {
	volumes := []struct{ min, max *decimal.Decimal }{
		{nil, nil},
		{dec(500000), dec(1000000)},
		{dec(2000000), nil},
		{dec(900000), nil},
	}
	classes := [][]AssetClass{nil, {AssetClassResidential}, {AssetClassCommercial}}
	regions := [][]string{nil, {"Hamburg"}, {"München"}}
	yields := []*decimal.Decimal{nil, decf(4), decf(6)}

	var out []Profile
	i := 0
	for _, v := range volumes {
		for _, c := range classes {
			for _, r := range regions {
				for _, y := range yields {
					out = append(out, Profile{
						ID:             fmt.Sprintf("p-%03d", i),
						OrganizationID: fmt.Sprintf("org-%d", i%6),
						Name:           fmt.Sprintf("Profil %d", i%4),
						MinVolume:      v.min,
						MaxVolume:      v.max,
						AssetClasses:   c,
						Regions:        r,
						MinYield:       y,
					})
					i++
				}
			}
		}
	}
	return out
}

// dominates reports whether a matches strictly more criteria than b and b
// scores higher on no criterion. A criterion b does not count is never higher;
// one only b counts is higher when b scores above zero on it.
func dominates(a, b Result) bool {
	if len(a.MatchedCriteria()) <= len(b.MatchedCriteria()) {
		return false
	}
	for _, bc := range b.Criteria {
		if !bc.Counted {
			continue
		}
		ac, _ := a.Criterion(bc.Criterion)
		aScore := 0.0
		if ac.Counted {
			aScore = ac.Score
		}
		if bc.Score > aScore {
			return false
		}
	}
	return true
}

func TestMatch_RankingMonotonicity(t *testing.T) {
	tolerant := DefaultOptions()
	tolerant.VolumeTolerance = 0.5

	engines := map[string]*Engine{
		"binary volume":    NewEngine(DefaultOptions()),
		"near-miss volume": NewEngine(tolerant),
	}

	organizations := map[string]Organization{}
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("org-%d", i)
		organizations[id] = Organization{ID: id, Name: fmt.Sprintf("Org %d", 5-i)}
	}

	for name, e := range engines {
		for _, yield := range []*decimal.Decimal{nil, decf(3.9), decf(5)} {
			t.Run(fmt.Sprintf("%s/yield %v", name, yield), func(t *testing.T) {
				p := hamburgProperty()
				p.Yield = yield

				results, err := e.Match(p, generateProfiles(), organizations)
				require.NoError(t, err)

				rank := make(map[string]int, len(results))
				for i, r := range results {
					rank[r.ProfileID] = i
				}

				pairs := 0
				for _, a := range results {
					for _, b := range results {
						if !dominates(a, b) {
							continue
						}
						pairs++
						assert.GreaterOrEqual(t, a.Score, b.Score, "%s vs %s", a.ProfileID, b.ProfileID)
						assert.Less(t, rank[a.ProfileID], rank[b.ProfileID], "%s vs %s", a.ProfileID, b.ProfileID)
					}
				}
				assert.Positive(t, pairs)
			})
		}
	}
}

func TestMatch_MissedYieldRanksAboveUnconstrained(t *testing.T) {
	e := NewEngine(DefaultOptions())
	p := hamburgProperty()
	p.Yield = decf(3.9)

	strict := Profile{
		ID: "A", OrganizationID: "z", Name: "Core Hamburg",
		MinVolume: dec(500000), MaxVolume: dec(1000000),
		AssetClasses: []AssetClass{AssetClassResidential},
		Regions:      []string{"Hamburg"},
		MinYield:     decf(4.0),
	}
	open := Profile{ID: "C", OrganizationID: "a", Name: "Opportunistisch"}

	// "Org a" sorts before "Org z", so only the score and matched count put A first
	results, err := e.Match(p, []Profile{open, strict}, orgs("a", "z"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "A", results[0].ProfileID)
	assert.InDelta(t, 0.75, results[0].Score, 1e-9)
	assert.Len(t, results[0].MatchedCriteria(), 3)

	assert.Equal(t, "C", results[1].ProfileID)
	assert.InDelta(t, e.NeutralBaseline(), results[1].Score, 1e-9)
	assert.Len(t, results[1].MatchedCriteria(), 2)
}

func TestMatch_EqualScoresPreferMoreMatchedCriteria(t *testing.T) {
	e := NewEngine(DefaultOptions())
	p := hamburgProperty()
	p.Yield = decf(5)

	full := Profile{ID: "full", OrganizationID: "z", MinVolume: dec(500000), MinYield: decf(4)}
	noYield := Profile{ID: "no-yield", OrganizationID: "a", MinVolume: dec(500000)}

	results, err := e.Match(p, []Profile{noYield, full}, orgs("a", "z"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, 1.0, results[1].Score)
	assert.Equal(t, "full", results[0].ProfileID)
	assert.Equal(t, "no-yield", results[1].ProfileID)
}

func TestMatch_NearMissNeverExceedsNeutral(t *testing.T) {
	opts := DefaultOptions()
	opts.VolumeTolerance = 1
	e := NewEngine(opts)
	p := hamburgProperty()

	results, err := e.Match(p, []Profile{{ID: "A", OrganizationID: "a", MaxVolume: dec(799999)}}, orgs("a"))
	require.NoError(t, err)
	vol, _ := results[0].Criterion(CriterionVolume)
	assert.Equal(t, StatusFailed, vol.Status)
	assert.Positive(t, vol.Score)
	assert.LessOrEqual(t, vol.Score, ScoreNeutral)
}
