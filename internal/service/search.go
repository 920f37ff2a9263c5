package service

import (
	"context"
	"strings"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/relevance"
	"github.com/rcliao/team-memory/internal/store"
)

// Search limits.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
	// searchWindow multiplies the limit to size the candidate pool.
	searchWindow = 5
)

// SearchRequest filters and ranks records by keyword overlap.
type SearchRequest struct {
	Query             string
	Scope             model.Scope
	ScopeID           string
	Type              model.Type
	Category          model.Category
	Tags              []string
	IncludeDeprecated bool
	Limit             int
}

// Search returns the readable records that best overlap the query. When
// nothing overlaps, the most important candidates are returned instead.
func (s *Service) Search(ctx context.Context, c *auth.Caller, req SearchRequest) ([]model.Entry, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return nil, model.Validationf("limit %d exceeds maximum %d", limit, MaxSearchLimit)
	}

	f := store.Filter{
		ScopeID:           strings.TrimSpace(req.ScopeID),
		AnyTags:           req.Tags,
		IncludeDeprecated: req.IncludeDeprecated,
		Order:             store.OrderImportance,
		Limit:             limit * searchWindow,
	}
	if req.Scope != "" {
		scope, err := model.ParseScope(string(req.Scope))
		if err != nil {
			return nil, err
		}
		f.Scope = scope
		if f.ScopeID != "" && !c.CanRead(ctx, scope, f.ScopeID) {
			return nil, denied(c, "no read access to %s", scopeLabel(scope, f.ScopeID))
		}
	}
	if req.Type != "" {
		typ, err := model.ParseType(string(req.Type))
		if err != nil {
			return nil, err
		}
		f.Types = []model.Type{typ}
	}
	category, err := model.ParseCategory(string(req.Category))
	if err != nil {
		return nil, err
	}
	f.Category = category

	rows, err := s.repo.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	readable := rows[:0]
	for _, m := range rows {
		if c.CanRead(ctx, m.Scope, m.ScopeID) {
			readable = append(readable, m)
		}
	}
	if err := roleLoadErr(c); err != nil {
		return nil, err
	}

	results := relevance.RankSearch(s.entries(readable), relevance.ParseQuery(req.Query), limit)
	if err := s.touch(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}
