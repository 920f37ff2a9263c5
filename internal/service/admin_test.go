package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/store"
)

func TestAdminRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	member := e.user(t, "mia", "", model.RoleMember, nil)

	_, err := e.svc.CreateTeam(ctx, member, "t1", "Team One")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = e.svc.CreateUser(ctx, member, "u1", "", model.RoleMember)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = e.svc.ListUsers(ctx, member)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = e.svc.AuditLogs(ctx, member, store.AuditFilter{})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestCreateUserIssuesKey(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.gate.Admin()

	team, err := e.svc.CreateTeam(ctx, admin, "t1", "")
	require.NoError(t, err)
	assert.Equal(t, "t1", team.Name, "name defaults to id")
	_, err = e.svc.CreateTeam(ctx, admin, "t1", "again")
	assert.ErrorIs(t, err, model.ErrConflict)

	issued, err := e.svc.CreateUser(ctx, admin, "alice", "t1", "")
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, issued.Role)
	assert.True(t, strings.HasPrefix(issued.APIKey, auth.KeyPrefix))

	caller, err := e.gate.Resolve(ctx, issued.APIKey)
	require.NoError(t, err)
	assert.Equal(t, "alice", caller.ID)
	assert.Equal(t, "t1", caller.TeamID)

	fresh, err := e.svc.RegenerateKey(ctx, admin, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, issued.APIKey, fresh.APIKey)
	_, err = e.gate.Resolve(ctx, issued.APIKey)
	assert.ErrorIs(t, err, model.ErrUnauthenticated, "old key is revoked")
	_, err = e.gate.Resolve(ctx, fresh.APIKey)
	assert.NoError(t, err)

	_, err = e.svc.RegenerateKey(ctx, admin, "nobody")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = e.svc.CreateUser(ctx, admin, "bob", "", "owner")
	assert.ErrorIs(t, err, model.ErrValidation)

	assert.Subset(t, e.audit.actions(), []string{"create_team", "create_user", "regenerate_api_key"})
}

func TestAddMember(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	lead := e.user(t, "lead", "", model.RoleMember, map[string]model.Role{"p1": model.RoleAdmin})
	dev := e.user(t, "dev", "", model.RoleMember, map[string]model.Role{"p1": model.RoleMember})
	e.user(t, "newbie", "", model.RoleMember, nil)

	_, err := e.svc.AddMember(ctx, dev, "p1", "newbie", model.RoleMember)
	assert.ErrorIs(t, err, model.ErrUnauthorized, "project members cannot manage membership")

	m, err := e.svc.AddMember(ctx, lead, "p1", "newbie", model.RoleViewer)
	require.NoError(t, err)
	assert.Equal(t, model.RoleViewer, m.Role)
	_, err = e.svc.AddMember(ctx, lead, "p1", "newbie", model.RoleMember)
	assert.ErrorIs(t, err, model.ErrConflict)
	_, err = e.svc.AddMember(ctx, lead, "p1", "ghost", model.RoleMember)
	assert.ErrorIs(t, err, model.ErrNotFound)

	members, err := e.svc.ListMembers(ctx, dev, "p1")
	require.NoError(t, err)
	assert.Len(t, members, 3)

	// Membership grants take effect on the next request's caller.
	newbie := e.gate.ForUser(&model.User{ID: "newbie", Role: model.RoleMember})
	_, err = e.svc.Context(ctx, newbie, ContextRequest{ProjectID: "p1"})
	assert.NoError(t, err)
	_, err = e.svc.Store(ctx, newbie, StoreRequest{ScopeID: "p1", Content: "x"})
	assert.ErrorIs(t, err, model.ErrUnauthorized, "viewers cannot write")
}

func TestAuditLogsLimit(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.AuditLogs(context.Background(), e.gate.Admin(), store.AuditFilter{Limit: MaxAuditLimit + 1})
	assert.ErrorIs(t, err, model.ErrValidation)
}
