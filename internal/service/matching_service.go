package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"immo-backoffice/internal/cache"
	"immo-backoffice/internal/database"
	"immo-backoffice/internal/matching"
	"immo-backoffice/internal/models"
)

// Messages explaining an empty match list
const (
	// MessageNoCandidates means no profile with a known organization was available
	MessageNoCandidates = "no candidates: there are no acquisition profiles to match against"
	// MessageNoMatches means candidates existed but all scored below the configured minimum
	MessageNoMatches = "no matches: no acquisition profile reached the minimum score"
)

// Store is the read side the match service needs. Both database.GormDB and
// database.DB implement it.
type Store interface {
	GetPropertyByID(ctx context.Context, id string) (*models.Property, error)
	ListCandidateProfiles(ctx context.Context, excludeOrgID string) ([]models.AcquisitionProfile, error)
	GetOrganizationsByIDs(ctx context.Context, ids []string) ([]models.Organization, error)
	GetLatestAnalysis(ctx context.Context, propertyID string) (*models.Analysis, error)
}

// ResponseCache caches serialized match responses
type ResponseCache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Recorder persists match runs
type Recorder interface {
	Record(ctx context.Context, propertyID, excludedOrgID string, results []matching.Result) (*models.MatchSnapshot, []models.MatchChange, error)
}

// Caller is the authenticated principal requesting matches
type Caller struct {
	OrganizationID string
	Admin          bool
}

// Match is one entry of the match response
type Match struct {
	ProfileID       string                     `json:"profileId"`
	ProfileName     string                     `json:"profileName"`
	Organization    matching.Organization      `json:"organization"`
	Score           float64                    `json:"score"`
	MatchedCriteria []matching.Criterion       `json:"matchedCriteria"`
	Criteria        []matching.CriterionResult `json:"criteria"`
}

// MatchResponse is the result of FindBuyers
type MatchResponse struct {
	Success    bool    `json:"success"`
	PropertyID string  `json:"propertyId"`
	Matches    []Match `json:"matches"`
	Message    string  `json:"message,omitempty"`
}

// MatchService fetches the inputs of a match run, calls the engine and shapes
// the response
type MatchService struct {
	store    Store
	engine   *matching.Engine
	cache    ResponseCache
	recorder Recorder
	logger   *zap.Logger
}

// Option configures a MatchService
type Option func(*MatchService)

// WithCache caches responses per property and exclusion scope
func WithCache(c ResponseCache) Option {
	return func(s *MatchService) { s.cache = c }
}

// WithRecorder records every computed run
func WithRecorder(r Recorder) Option {
	return func(s *MatchService) { s.recorder = r }
}

// NewMatchService creates a new match service
func NewMatchService(store Store, engine *matching.Engine, logger *zap.Logger, opts ...Option) *MatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MatchService{
		store:  store,
		engine: engine,
		logger: logger.Named("matching"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindBuyers ranks the acquisition profiles of other organizations against a
// property. Admin callers see every profile, including those of the property's
// own organization.
func (s *MatchService) FindBuyers(ctx context.Context, propertyID string, caller Caller) (*MatchResponse, error) {
	property, err := s.store.GetPropertyByID(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("fetch property %s: %w", propertyID, err)
	}

	excludeOrgID := ""
	if !caller.Admin {
		excludeOrgID = property.OrganizationID
	}

	cacheKey := cache.MatchKey(property.ID, excludeOrgID)
	if s.cache != nil {
		var cached MatchResponse
		hit, err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			s.logger.Warn("match cache read failed", zap.String("key", cacheKey), zap.Error(err))
		}
		if hit {
			return &cached, nil
		}
	}

	var (
		analysis *models.Analysis
		profiles []models.AcquisitionProfile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := s.store.GetLatestAnalysis(gctx, property.ID)
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch analysis: %w", err)
		}
		analysis = a
		return nil
	})
	g.Go(func() error {
		p, err := s.store.ListCandidateProfiles(gctx, excludeOrgID)
		if err != nil {
			return fmt.Errorf("fetch profiles: %w", err)
		}
		profiles = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &MatchResponse{
		Success:    true,
		PropertyID: property.ID,
		Matches:    []Match{},
	}

	candidates := make([]matching.Profile, 0, len(profiles))
	orgIDs := make([]string, 0)
	seen := make(map[string]bool)
	for i := range profiles {
		candidates = append(candidates, profiles[i].ToCandidate())
		if id := profiles[i].OrganizationID; !seen[id] {
			seen[id] = true
			orgIDs = append(orgIDs, id)
		}
	}

	orgRecords, err := s.store.GetOrganizationsByIDs(ctx, orgIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch organizations: %w", err)
	}
	orgs := make(map[string]matching.Organization, len(orgRecords))
	for i := range orgRecords {
		orgs[orgRecords[i].ID] = orgRecords[i].ToOwner()
	}
	usable := 0
	for _, p := range candidates {
		if _, ok := orgs[p.OrganizationID]; !ok {
			s.logger.Warn("skipping orphaned acquisition profile",
				zap.String("profile_id", p.ID),
				zap.String("organization_id", p.OrganizationID),
			)
			continue
		}
		usable++
	}

	subject := property.ToSubject(analysisYield(analysis))

	results, err := s.engine.Match(subject, candidates, orgs)
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		resp.Matches = append(resp.Matches, Match{
			ProfileID:       r.ProfileID,
			ProfileName:     r.ProfileName,
			Organization:    r.Organization,
			Score:           r.Score,
			MatchedCriteria: r.MatchedCriteria(),
			Criteria:        r.Criteria,
		})
	}
	switch {
	case usable == 0:
		resp.Message = MessageNoCandidates
	case len(resp.Matches) == 0:
		resp.Message = MessageNoMatches
	}

	s.logger.Debug("match run completed",
		zap.String("property_id", property.ID),
		zap.Int("profiles", len(candidates)),
		zap.Int("results", len(results)),
	)

	if s.recorder != nil {
		if _, _, err := s.recorder.Record(ctx, property.ID, excludeOrgID, results); err != nil {
			s.logger.Warn("failed to record match snapshot", zap.String("property_id", property.ID), zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, resp, 0); err != nil {
			s.logger.Warn("match cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	return resp, nil
}

// analysisYield is the projected yield of the latest analysis, nil when unknown
func analysisYield(a *models.Analysis) *decimal.Decimal {
	if a == nil || !a.ProjectedYield.Valid {
		return nil
	}
	y := a.ProjectedYield.Decimal
	return &y
}
