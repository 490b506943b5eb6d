package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"immo-backoffice/internal/logger"
	"immo-backoffice/internal/search"
)

// Searcher runs property searches
type Searcher interface {
	Search(params search.FilterParams) (*search.SearchResult, error)
	Reindex(ctx context.Context, src search.PropertySource) (int, error)
}

// PropertyHandler serves property search
type PropertyHandler struct {
	search Searcher
	source search.PropertySource
	logger *zap.Logger
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(s Searcher, src search.PropertySource, logger *zap.Logger) *PropertyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PropertyHandler{search: s, source: src, logger: logger}
}

// Search filters properties by asset class, region and price range
func (h *PropertyHandler) Search(c *gin.Context) {
	params := search.FilterParams{
		Query:        c.Query("q"),
		AssetClasses: search.ParseList(c.Query("asset_classes")),
		Region:       c.Query("region"),
		SortBy:       c.Query("sort"),
		ActiveOnly:   c.DefaultQuery("include_archived", "false") != "true",
	}

	var err error
	if params.MinPrice, err = search.ParseFloat(c.Query("min_price")); err != nil {
		badRequest(c, "min_price: "+err.Error())
		return
	}
	if params.MaxPrice, err = search.ParseFloat(c.Query("max_price")); err != nil {
		badRequest(c, "max_price: "+err.Error())
		return
	}
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		badRequest(c, "min_price must not exceed max_price")
		return
	}
	if !search.ValidSort(params.SortBy) {
		badRequest(c, "unsupported sort "+strconv.Quote(params.SortBy))
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		params.Limit = limit
	}

	result, err := h.search.Search(params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"properties": result.Hits,
		"total":      result.TotalHits,
		"facets":     result.Facets,
	})
}

// Reindex rebuilds the search index from the active properties
func (h *PropertyHandler) Reindex(c *gin.Context) {
	count, err := h.search.Reindex(c.Request.Context(), h.source)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	logger.FromGin(c, h.logger).Info("search index rebuilt on request", zap.Int("documents", count))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"indexed": count,
	})
}
