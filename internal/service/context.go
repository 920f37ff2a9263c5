package service

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/relevance"
	"github.com/rcliao/team-memory/internal/store"
)

// Tier shares of max_tokens, in percent.
const (
	GlobalShare   = 15
	TeamShare     = 15
	DecisionShare = 30
	RecentShare   = 40
)

// Budgets is the per-tier token allowance.
type Budgets struct {
	Global    int `json:"global"`
	Team      int `json:"team"`
	Decisions int `json:"decisions"`
	Recent    int `json:"recent"`
}

// SplitBudget divides maxTokens across the four tiers, flooring each share.
// The split is done on quotient and remainder so large budgets cannot
// overflow.
func SplitBudget(maxTokens int) Budgets {
	return Budgets{
		Global:    share(maxTokens, GlobalShare),
		Team:      share(maxTokens, TeamShare),
		Decisions: share(maxTokens, DecisionShare),
		Recent:    share(maxTokens, RecentShare),
	}
}

func share(total, pct int) int {
	return total/100*pct + total%100*pct/100
}

// ContextRequest asks for a project's working context.
type ContextRequest struct {
	ProjectID string
	Query     string
	// MaxTokens caps the whole response; nil uses the configured default.
	MaxTokens *int
	Category  model.Category
	// IncludeDeprecated admits deprecated records into every tier.
	IncludeDeprecated bool
}

// ContextResult is a budgeted, tiered selection of records.
type ContextResult struct {
	ProjectID        string        `json:"project_id"`
	GlobalKnowledge  []model.Entry `json:"global_knowledge"`
	TeamKnowledge    []model.Entry `json:"team_knowledge"`
	ProjectDecisions []model.Entry `json:"project_decisions"`
	ProjectRecent    []model.Entry `json:"project_recent"`
	TotalTokens      int           `json:"total_tokens"`
	MaxTokens        int           `json:"max_tokens"`
	Budgets          Budgets       `json:"budgets"`
}

type tier struct {
	filter   store.Filter
	budget   int
	selected []model.Entry
	tokens   int
}

// Context assembles the four tiers for a project. Tiers are fetched and
// ranked concurrently; the access bump runs only after all four succeed,
// so a failed request leaves no counters touched.
func (s *Service) Context(ctx context.Context, c *auth.Caller, req ContextRequest) (*ContextResult, error) {
	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" {
		return nil, model.Validationf("project_id is required")
	}
	maxTokens := s.maxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	if maxTokens < 0 {
		return nil, model.Validationf("max_tokens must not be negative")
	}
	category, err := model.ParseCategory(string(req.Category))
	if err != nil {
		return nil, err
	}
	if !c.CanRead(ctx, model.ScopeProject, projectID) {
		return nil, denied(c, "no read access to project %s", projectID)
	}

	budgets := SplitBudget(maxTokens)
	base := store.Filter{
		IncludeDeprecated: req.IncludeDeprecated,
		Limit:             s.window,
	}
	global, team, decisions, recent := base, base, base, base
	global.Scope = model.ScopeGlobal
	team.Scope, team.ScopeID = model.ScopeTeam, c.TeamID
	decisions.Scope, decisions.ScopeID = model.ScopeProject, projectID
	decisions.Types = []model.Type{model.TypeDecision}
	recent.Scope, recent.ScopeID = model.ScopeProject, projectID
	recent.Types = []model.Type{model.TypeWork, model.TypeKnowledge}
	recent.Order = store.OrderRecent

	tiers := []*tier{
		{filter: global, budget: budgets.Global},
		{filter: team, budget: budgets.Team},
		{filter: decisions, budget: budgets.Decisions},
		{filter: recent, budget: budgets.Recent},
	}
	q := relevance.ParseQuery(req.Query)

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tiers {
		// Without a team there is no team tier.
		if i == 1 && c.TeamID == "" {
			t.selected = []model.Entry{}
			continue
		}
		g.Go(func() error {
			rows, err := s.repo.Query(gctx, t.filter)
			if err != nil {
				return err
			}
			ranked := relevance.Rank(s.entries(rows), q, category)
			t.selected, t.tokens = relevance.Select(ranked, t.budget)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &ContextResult{
		ProjectID:        projectID,
		GlobalKnowledge:  tiers[0].selected,
		TeamKnowledge:    tiers[1].selected,
		ProjectDecisions: tiers[2].selected,
		ProjectRecent:    tiers[3].selected,
		MaxTokens:        maxTokens,
		Budgets:          budgets,
	}
	for _, t := range tiers {
		res.TotalTokens += t.tokens
	}
	if err := s.touch(ctx, res.GlobalKnowledge, res.TeamKnowledge, res.ProjectDecisions, res.ProjectRecent); err != nil {
		return nil, err
	}

	s.log.Debug("context assembled", "project", projectID, "total_tokens", res.TotalTokens, "max_tokens", maxTokens)
	return res, nil
}
