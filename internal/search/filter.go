package search

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

var sortable = map[string]bool{
	"purchase_price:asc":   true,
	"purchase_price:desc":  true,
	"projected_yield:asc":  true,
	"projected_yield:desc": true,
	"created_at:asc":       true,
	"created_at:desc":      true,
}

type FilterParams struct {
	Query          string
	AssetClasses   []string
	Region         string
	OrganizationID string
	MinPrice       *float64
	MaxPrice       *float64
	MinYield       *float64
	// ActiveOnly restricts hits to active properties
	ActiveOnly bool
	SortBy     string
	Limit      int64
	Offset     int64
}

func (p FilterParams) limit() int64 {
	switch {
	case p.Limit <= 0:
		return defaultLimit
	case p.Limit > maxLimit:
		return maxLimit
	}
	return p.Limit
}

// ValidSort reports whether s is an accepted sort expression
func ValidSort(s string) bool {
	return s == "" || sortable[s]
}

// BuildFilter renders params as a meilisearch filter expression. It returns an
// empty string when no filter applies.
func BuildFilter(params FilterParams) string {
	var filters []string

	if classes := nonEmpty(params.AssetClasses); len(classes) > 0 {
		parts := make([]string, len(classes))
		for i, c := range classes {
			parts[i] = "asset_class = " + quote(c)
		}
		if len(parts) == 1 {
			filters = append(filters, parts[0])
		} else {
			filters = append(filters, "("+strings.Join(parts, " OR ")+")")
		}
	}

	if r := strings.TrimSpace(params.Region); r != "" {
		filters = append(filters, "region = "+quote(r))
	}
	if o := strings.TrimSpace(params.OrganizationID); o != "" {
		filters = append(filters, "organization_id = "+quote(o))
	}

	if params.MinPrice != nil {
		filters = append(filters, "purchase_price >= "+number(*params.MinPrice))
	}
	if params.MaxPrice != nil {
		filters = append(filters, "purchase_price <= "+number(*params.MaxPrice))
	}
	if params.MinYield != nil {
		filters = append(filters, "projected_yield >= "+number(*params.MinYield))
	}
	if params.ActiveOnly {
		filters = append(filters, `status = "active"`)
	}

	return strings.Join(filters, " AND ")
}

// ParseList splits a comma separated query value
func ParseList(raw string) []string {
	if raw == "" {
		return nil
	}
	return nonEmpty(strings.Split(raw, ","))
}

// ParseFloat parses an optional numeric query value
func ParseFloat(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", raw)
	}
	return &v, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
