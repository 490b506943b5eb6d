package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"immo-backoffice/internal/models"
)

const batchSize = 500

// Document is the indexed form of a property. Amounts are plain numbers so
// meilisearch can range-filter and sort them.
type Document struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organization_id"`
	Title          string   `json:"title"`
	AssetClass     string   `json:"asset_class"`
	Region         string   `json:"region"`
	Address        string   `json:"address,omitempty"`
	PurchasePrice  float64  `json:"purchase_price"`
	ProjectedYield *float64 `json:"projected_yield,omitempty"`
	Status         string   `json:"status"`
	CreatedAt      int64    `json:"created_at"`
}

// NewDocument converts a property into its search document
func NewDocument(p *models.Property) Document {
	price, _ := p.PurchasePrice.Float64()
	doc := Document{
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		Title:          p.Title,
		AssetClass:     p.AssetClass,
		Region:         p.Region,
		Address:        p.Address,
		PurchasePrice:  price,
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt.Unix(),
	}
	if p.ProjectedYield.Valid {
		y, _ := p.ProjectedYield.Decimal.Float64()
		doc.ProjectedYield = &y
	}
	return doc
}

// PropertySource lists the properties a full reindex covers
type PropertySource interface {
	GetActiveProperties(ctx context.Context) ([]models.Property, error)
}

type SearchClient struct {
	client  *meilisearch.Client
	index   string
	logger  *zap.Logger
	breaker *CircuitBreaker
}

func NewSearchClient(host, apiKey, index string, logger *zap.Logger) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	if index == "" {
		index = "objekte"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger = logger.Named("search")

	return &SearchClient{
		client:  client,
		index:   index,
		logger:  logger,
		breaker: NewCircuitBreaker(3, 30*time.Second, logger),
	}
}

// InitIndex creates the index and configures its attributes
func (s *SearchClient) InitIndex() error {
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	// Ignore error if index already exists
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}

	idx := s.client.Index(s.index)
	if _, err := idx.UpdateSearchableAttributes(&[]string{
		"title",
		"region",
		"address",
		"asset_class",
	}); err != nil {
		return err
	}

	if _, err := idx.UpdateFilterableAttributes(&[]string{
		"id",
		"organization_id",
		"asset_class",
		"region",
		"purchase_price",
		"projected_yield",
		"status",
	}); err != nil {
		return err
	}

	if _, err := idx.UpdateSortableAttributes(&[]string{
		"purchase_price",
		"projected_yield",
		"created_at",
	}); err != nil {
		return err
	}

	return nil
}

// IndexProperty indexes a single property
func (s *SearchClient) IndexProperty(property *models.Property) error {
	_, err := s.client.Index(s.index).AddDocuments([]Document{NewDocument(property)})
	return err
}

// IndexProperties indexes properties in batches
func (s *SearchClient) IndexProperties(properties []models.Property) error {
	for start := 0; start < len(properties); start += batchSize {
		end := start + batchSize
		if end > len(properties) {
			end = len(properties)
		}
		docs := make([]Document, 0, end-start)
		for i := start; i < end; i++ {
			docs = append(docs, NewDocument(&properties[i]))
		}
		if _, err := s.client.Index(s.index).AddDocuments(docs); err != nil {
			return fmt.Errorf("index batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// RemoveProperty drops a property from the index
func (s *SearchClient) RemoveProperty(id string) error {
	_, err := s.client.Index(s.index).DeleteDocument(id)
	return err
}

// Reindex replaces the index contents with the active properties of src and
// returns the number of indexed documents
func (s *SearchClient) Reindex(ctx context.Context, src PropertySource) (int, error) {
	properties, err := src.GetActiveProperties(ctx)
	if err != nil {
		return 0, fmt.Errorf("load properties: %w", err)
	}

	if _, err := s.client.Index(s.index).DeleteAllDocuments(); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}
	if err := s.IndexProperties(properties); err != nil {
		return 0, err
	}

	s.logger.Info("search index rebuilt", zap.String("index", s.index), zap.Int("documents", len(properties)))
	return len(properties), nil
}

// SearchResult represents search results with facets
type SearchResult struct {
	Hits           []Document             `json:"hits"`
	TotalHits      int64                  `json:"total_hits"`
	Facets         map[string]interface{} `json:"facets,omitempty"`
	ProcessingTime int64                  `json:"processing_time_ms"`
}

// Search runs a filtered search
func (s *SearchClient) Search(params FilterParams) (*SearchResult, error) {
	searchReq := &meilisearch.SearchRequest{
		Limit:  params.limit(),
		Offset: params.Offset,
		Facets: []string{"asset_class", "region"},
	}
	if filter := BuildFilter(params); filter != "" {
		searchReq.Filter = filter
	}
	if params.SortBy != "" {
		searchReq.Sort = []string{params.SortBy}
	}

	if !s.breaker.CanProceed() {
		return nil, ErrUnavailable
	}
	searchRes, err := s.client.Index(s.index).Search(params.Query, searchReq)
	if err != nil {
		s.breaker.RecordFailure()
		return nil, err
	}
	s.breaker.RecordSuccess()

	docs := make([]Document, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		doc, err := decodeHit(hit)
		if err != nil {
			s.logger.Warn("skipping undecodable search hit", zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}

	var facets map[string]interface{}
	if searchRes.FacetDistribution != nil {
		facets, _ = searchRes.FacetDistribution.(map[string]interface{})
	}

	return &SearchResult{
		Hits:           docs,
		TotalHits:      searchRes.EstimatedTotalHits,
		Facets:         facets,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}

// decodeHit converts a raw hit back into a document
func decodeHit(hit interface{}) (Document, error) {
	var doc Document
	b, err := json.Marshal(hit)
	if err != nil {
		return doc, err
	}
	err = json.Unmarshal(b, &doc)
	return doc, err
}
