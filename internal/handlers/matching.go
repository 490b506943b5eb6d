package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"immo-backoffice/internal/auth"
	"immo-backoffice/internal/models"
	"immo-backoffice/internal/service"
	"immo-backoffice/internal/snapshot"
)

// MatchFinder runs a match for a property
type MatchFinder interface {
	FindBuyers(ctx context.Context, propertyID string, caller service.Caller) (*service.MatchResponse, error)
}

// HistoryReader reads recorded match runs
type HistoryReader interface {
	History(ctx context.Context, propertyID, excludedOrgID string, limit int) ([]snapshot.HistoryEntry, error)
}

// PropertyGetter loads a single property
type PropertyGetter interface {
	GetPropertyByID(ctx context.Context, id string) (*models.Property, error)
}

// MatchingHandler serves buyer matches for properties
type MatchingHandler struct {
	matches    MatchFinder
	history    HistoryReader
	properties PropertyGetter
	logger     *zap.Logger
}

// NewMatchingHandler creates a new matching handler. history may be nil when
// snapshots are not recorded.
func NewMatchingHandler(matches MatchFinder, history HistoryReader, properties PropertyGetter, logger *zap.Logger) *MatchingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchingHandler{matches: matches, history: history, properties: properties, logger: logger}
}

// GetMatches returns the ranked acquisition profiles for a property
func (h *MatchingHandler) GetMatches(c *gin.Context) {
	caller, ok := auth.CallerFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthenticated"})
		return
	}

	resp, err := h.matches.FindBuyers(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetHistory returns recorded match runs of a property with their changes
func (h *MatchingHandler) GetHistory(c *gin.Context) {
	caller, ok := auth.CallerFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthenticated"})
		return
	}
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "match history not available",
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		badRequest(c, "limit must be a positive integer")
		return
	}

	ctx := c.Request.Context()
	property, err := h.properties.GetPropertyByID(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	excluded := ""
	if !caller.Admin {
		excluded = property.OrganizationID
	}

	entries, err := h.history.History(ctx, property.ID, excluded, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"property_id": property.ID,
		"history":     entries,
		"count":       len(entries),
	})
}
