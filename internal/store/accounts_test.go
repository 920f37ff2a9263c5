package store

import (
	"context"
	"errors"
	"testing"

	"github.com/rcliao/team-memory/internal/model"
)

func TestTeamsAndUsers(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if err := s.CreateTeam(ctx, &model.Team{ID: "core", Name: "Core"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateTeam(ctx, &model.Team{ID: "core", Name: "Again"}); !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	teams, _ := s.ListTeams(ctx)
	if len(teams) != 1 || teams[0].Name != "Core" {
		t.Errorf("unexpected teams: %+v", teams)
	}

	u := &model.User{ID: "alice", TeamID: "core"}
	if err := s.CreateUser(ctx, u, "hash-1"); err != nil {
		t.Fatal(err)
	}
	if u.Role != model.RoleMember {
		t.Errorf("expected default role member, got %q", u.Role)
	}
	if err := s.CreateUser(ctx, &model.User{ID: "bob", TeamID: "nope"}, "hash-2"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected missing team to be rejected, got %v", err)
	}

	got, err := s.UserByKeyHash(ctx, "hash-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "alice" || got.TeamID != "core" || got.LastAccessedAt == nil {
		t.Errorf("unexpected user: %+v", got)
	}
	if _, err := s.UserByKeyHash(ctx, "bogus"); !errors.Is(err, model.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}

	if err := s.SetUserKey(ctx, "alice", "hash-3"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UserByKeyHash(ctx, "hash-1"); err == nil {
		t.Error("old key should no longer resolve")
	}
	if err := s.SetUserKey(ctx, "ghost", "x"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMembers(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	s.CreateUser(ctx, &model.User{ID: "alice"}, "h1")
	if err := s.AddMember(ctx, &model.Member{ProjectID: "p1", UserID: "alice", Role: model.RoleAdmin}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddMember(ctx, &model.Member{ProjectID: "p2", UserID: "alice", Role: model.RoleViewer}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddMember(ctx, &model.Member{ProjectID: "p1", UserID: "alice"}); !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	if err := s.AddMember(ctx, &model.Member{ProjectID: "p1", UserID: "ghost"}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	roles, err := s.ProjectRoles(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if roles["p1"] != model.RoleAdmin || roles["p2"] != model.RoleViewer {
		t.Errorf("unexpected roles: %v", roles)
	}

	members, _ := s.ListMembers(ctx, "p1")
	if len(members) != 1 || members[0].UserID != "alice" {
		t.Errorf("unexpected members: %+v", members)
	}
}

func TestAuditLogs(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	s.InsertAudit(ctx, &model.AuditEntry{UserID: "alice", Action: "store_memory", ResourceType: "memory", ResourceID: "m1",
		Details: map[string]any{"scope": "project"}})
	clock.advance(1)
	s.InsertAudit(ctx, &model.AuditEntry{UserID: "bob", Action: "delete_memory", ResourceID: "m2"})

	all, err := s.AuditLogs(ctx, AuditFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Action != "delete_memory" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	alice, _ := s.AuditLogs(ctx, AuditFilter{UserID: "alice"})
	if len(alice) != 1 || alice[0].Details["scope"] != "project" {
		t.Errorf("unexpected filtered logs: %+v", alice)
	}
	del, _ := s.AuditLogs(ctx, AuditFilter{Action: "delete_memory", Limit: 5})
	if len(del) != 1 || del[0].UserID != "bob" {
		t.Errorf("unexpected action filter result: %+v", del)
	}
}
