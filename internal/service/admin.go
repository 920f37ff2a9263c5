package service

import (
	"context"
	"strings"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/store"
)

// MaxAuditLimit caps one audit log page.
const MaxAuditLimit = 1000

// IssuedKey is a freshly generated API key. The key is shown once and only
// its hash is stored.
type IssuedKey struct {
	UserID string     `json:"user_id"`
	TeamID string     `json:"team_id,omitempty"`
	Role   model.Role `json:"role"`
	APIKey string     `json:"api_key"`
}

func (s *Service) CreateTeam(ctx context.Context, c *auth.Caller, id, name string) (*model.Team, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		return nil, model.Validationf("team id is required")
	}
	if name == "" {
		name = id
	}
	t := &model.Team{ID: id, Name: name}
	if err := s.repo.CreateTeam(ctx, t); err != nil {
		return nil, err
	}
	s.record(ctx, c, "create_team", "team", id, map[string]any{"name": name})
	return t, nil
}

func (s *Service) ListTeams(ctx context.Context, c *auth.Caller) ([]model.Team, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	return s.repo.ListTeams(ctx)
}

// CreateUser registers a user and issues their first API key.
func (s *Service) CreateUser(ctx context.Context, c *auth.Caller, id, teamID string, role model.Role) (*IssuedKey, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, model.Validationf("user id is required")
	}
	role, err := model.ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	key, err := auth.GenerateKey()
	if err != nil {
		return nil, err
	}
	u := &model.User{ID: id, TeamID: strings.TrimSpace(teamID), Role: role}
	if err := s.repo.CreateUser(ctx, u, auth.HashKey(key)); err != nil {
		return nil, err
	}
	s.record(ctx, c, "create_user", "user", id, map[string]any{"team_id": u.TeamID, "role": string(role)})
	return &IssuedKey{UserID: id, TeamID: u.TeamID, Role: role, APIKey: key}, nil
}

func (s *Service) ListUsers(ctx context.Context, c *auth.Caller) ([]model.User, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// RegenerateKey replaces a user's API key. The old key stops working at once.
func (s *Service) RegenerateKey(ctx context.Context, c *auth.Caller, userID string) (*IssuedKey, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	key, err := auth.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetUserKey(ctx, userID, auth.HashKey(key)); err != nil {
		return nil, err
	}
	s.record(ctx, c, "regenerate_api_key", "user", userID, nil)
	return &IssuedKey{UserID: userID, APIKey: key}, nil
}

// AddMember grants a user a role in a project. Global admins and project
// admins may do this.
func (s *Service) AddMember(ctx context.Context, c *auth.Caller, projectID, userID string, role model.Role) (*model.Member, error) {
	if projectID == "" || userID == "" {
		return nil, model.Validationf("project_id and user_id are required")
	}
	if !c.CanManageProject(ctx, projectID) {
		return nil, denied(c, "project admin access required for %s", projectID)
	}
	role, err := model.ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	m := &model.Member{ProjectID: projectID, UserID: userID, Role: role}
	if err := s.repo.AddMember(ctx, m); err != nil {
		return nil, err
	}
	s.record(ctx, c, "add_project_member", "project", projectID, map[string]any{
		"user_id": userID,
		"role":    string(role),
	})
	return m, nil
}

func (s *Service) ListMembers(ctx context.Context, c *auth.Caller, projectID string) ([]model.Member, error) {
	if !c.CanRead(ctx, model.ScopeProject, projectID) {
		return nil, denied(c, "no read access to project %s", projectID)
	}
	return s.repo.ListMembers(ctx, projectID)
}

func (s *Service) AuditLogs(ctx context.Context, c *auth.Caller, f store.AuditFilter) ([]model.AuditEntry, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	if f.Limit > MaxAuditLimit {
		return nil, model.Validationf("limit %d exceeds maximum %d", f.Limit, MaxAuditLimit)
	}
	return s.repo.AuditLogs(ctx, f)
}
