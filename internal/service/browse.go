package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/store"
)

// Todo statuses recognised in metadata. Any other value is kept verbatim.
const (
	TodoPending = "pending"
	TodoDone    = "done"
	// TodoAll disables the status filter.
	TodoAll = "all"
)

// Todos lists the project todos owned by owner, newest first. The owner and
// status live in the record's metadata; a todo without status is pending.
func (s *Service) Todos(ctx context.Context, c *auth.Caller, projectID, owner, status string) ([]model.Entry, error) {
	if projectID == "" || owner == "" {
		return nil, model.Validationf("project_id and owner are required")
	}
	if status == "" {
		status = TodoPending
	}
	if !c.CanRead(ctx, model.ScopeProject, projectID) {
		return nil, denied(c, "no read access to project %s", projectID)
	}

	rows, err := s.repo.Query(ctx, store.Filter{
		Scope:   model.ScopeProject,
		ScopeID: projectID,
		Types:   []model.Type{model.TypeTodo},
		Order:   store.OrderRecent,
	})
	if err != nil {
		return nil, err
	}

	var todos []model.Memory
	for _, m := range rows {
		if m.Metadata.String("owner") != owner {
			continue
		}
		st := m.Metadata.String("status")
		if st == "" {
			st = TodoPending
		}
		if status != TodoAll && st != status {
			continue
		}
		todos = append(todos, m)
	}
	out := s.entries(todos)
	if err := s.touch(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tags counts tag usage across the non-expired records of a project or team.
func (s *Service) Tags(ctx context.Context, c *auth.Caller, scopeID string) ([]store.TagCount, error) {
	if scopeID == "" {
		return nil, model.Validationf("scope_id is required")
	}
	if !c.CanRead(ctx, model.ScopeProject, scopeID) && !c.CanRead(ctx, model.ScopeTeam, scopeID) {
		return nil, denied(c, "no read access to %s", scopeID)
	}
	return s.repo.TagCounts(ctx, scopeID)
}

// GroupSummary is the count and mean importance of one scope/type group.
type GroupSummary struct {
	Count         int     `json:"count"`
	AvgImportance float64 `json:"avg_importance"`
}

// StatsResult maps "scope/type" to its group summary.
type StatsResult struct {
	ProjectID string                  `json:"project_id"`
	Stats     map[string]GroupSummary `json:"stats"`
}

// Stats summarises a project's records together with the global ones.
func (s *Service) Stats(ctx context.Context, c *auth.Caller, projectID string) (*StatsResult, error) {
	if !c.CanRead(ctx, model.ScopeProject, projectID) {
		return nil, denied(c, "no read access to project %s", projectID)
	}
	groups, err := s.repo.Stats(ctx, projectID)
	if err != nil {
		return nil, err
	}
	res := &StatsResult{ProjectID: projectID, Stats: map[string]GroupSummary{}}
	for _, g := range groups {
		res.Stats[string(g.Scope)+"/"+string(g.Type)] = GroupSummary{
			Count:         g.Count,
			AvgImportance: math.Round(g.AvgImportance*100) / 100,
		}
	}
	return res, nil
}

// Projects lists the projects the caller can read.
func (s *Service) Projects(ctx context.Context, c *auth.Caller) ([]store.ProjectSummary, error) {
	all, err := s.repo.Projects(ctx)
	if err != nil {
		return nil, err
	}
	out := []store.ProjectSummary{}
	for _, p := range all {
		if c.CanRead(ctx, model.ScopeProject, p.ProjectID) {
			out = append(out, p)
		}
	}
	if err := roleLoadErr(c); err != nil {
		return nil, err
	}
	return out, nil
}

// Similar project names at or above this score are suggested.
const (
	suggestThreshold = 0.4
	maxSuggestions   = 5
)

// ProjectMatch is a known project name resembling the requested one.
type ProjectMatch struct {
	ProjectID  string  `json:"project_id"`
	Similarity float64 `json:"similarity"`
}

// ProjectSuggestion answers whether a project name exists and, if not,
// which existing names look like it.
type ProjectSuggestion struct {
	ExactMatch  bool           `json:"exact_match"`
	Input       string         `json:"input"`
	Suggestions []ProjectMatch `json:"suggestions"`
}

// SuggestProjects catches typos in project names before a write lands in a
// new, accidental project.
func (s *Service) SuggestProjects(ctx context.Context, c *auth.Caller, name string) (*ProjectSuggestion, error) {
	if name == "" {
		return nil, model.Validationf("name is required")
	}
	projects, err := s.Projects(ctx, c)
	if err != nil {
		return nil, err
	}
	res := &ProjectSuggestion{Input: name, Suggestions: []ProjectMatch{}}
	for _, p := range projects {
		if p.ProjectID == name {
			res.ExactMatch = true
			return res, nil
		}
	}
	for _, p := range projects {
		if score := similarity(name, p.ProjectID); score >= suggestThreshold {
			res.Suggestions = append(res.Suggestions, ProjectMatch{
				ProjectID:  p.ProjectID,
				Similarity: math.Round(score*100) / 100,
			})
		}
	}
	sort.SliceStable(res.Suggestions, func(i, j int) bool {
		return res.Suggestions[i].Similarity > res.Suggestions[j].Similarity
	})
	if len(res.Suggestions) > maxSuggestions {
		res.Suggestions = res.Suggestions[:maxSuggestions]
	}
	return res, nil
}

// similarity is a cheap name resemblance score in [0, 1]: prefix 0.8,
// substring 0.6, otherwise the share of a's characters present in b.
func similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	switch {
	case a == b:
		return 1
	case strings.HasPrefix(a, b) || strings.HasPrefix(b, a):
		return 0.8
	case strings.Contains(a, b) || strings.Contains(b, a):
		return 0.6
	}
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if diff := len(ra) - len(rb); float64(max(diff, -diff)) > float64(longest)*0.5 {
		return 0
	}
	common := 0
	for _, r := range ra {
		if strings.ContainsRune(b, r) {
			common++
		}
	}
	return float64(common) / float64(longest)
}

// CategoryInfo names a category and what belongs in it.
type CategoryInfo struct {
	Category    model.Category `json:"category"`
	Description string         `json:"description"`
}

// Categories lists the closed category set.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(model.Categories))
	for _, cat := range model.Categories {
		out = append(out, CategoryInfo{Category: cat, Description: model.CategoryDescriptions[cat]})
	}
	return out
}
