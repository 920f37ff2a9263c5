package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/store"
	"github.com/rcliao/team-memory/internal/tokens"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (a *recordingAuditor) Record(e model.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *recordingAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type testEnv struct {
	svc   *Service
	db    *store.DB
	gate  *auth.Gate
	clock *testClock
	audit *recordingAuditor
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "test.db"), store.WithClock(clock.now))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	audit := &recordingAuditor{}
	svc := New(db, tokens.Heuristic{}, Options{
		Now:     clock.now,
		Auditor: audit,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &testEnv{svc: svc, db: db, gate: auth.NewGate(auth.DefaultPolicy(), db), clock: clock, audit: audit}
}

// user registers a user with the given project roles and returns a fresh
// caller for them.
func (e *testEnv) user(t *testing.T, id, teamID string, role model.Role, projects map[string]model.Role) *auth.Caller {
	t.Helper()
	ctx := context.Background()
	if teamID != "" {
		err := e.db.CreateTeam(ctx, &model.Team{ID: teamID, Name: teamID})
		if err != nil && !errors.Is(err, model.ErrConflict) {
			t.Fatalf("create team: %v", err)
		}
	}
	u := &model.User{ID: id, TeamID: teamID, Role: role}
	require.NoError(t, e.db.CreateUser(ctx, u, auth.HashKey("key-"+id)))
	for p, r := range projects {
		require.NoError(t, e.db.AddMember(ctx, &model.Member{ProjectID: p, UserID: id, Role: r}))
	}
	return e.gate.ForUser(u)
}

func (e *testEnv) store(t *testing.T, c *auth.Caller, req StoreRequest) *StoreResult {
	t.Helper()
	res, err := e.svc.Store(context.Background(), c, req)
	require.NoError(t, err)
	return res
}

func (e *testEnv) raw(t *testing.T, id string) *model.Memory {
	t.Helper()
	m, err := e.db.Get(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (e *testEnv) count(t *testing.T) int {
	t.Helper()
	all, err := e.db.Query(context.Background(), store.Filter{IncludeDeprecated: true, IncludeExpired: true})
	require.NoError(t, err)
	return len(all)
}

func ptr[T any](v T) *T { return &v }

func TestStoreDefaults(t *testing.T) {
	e := newEnv(t)
	anon := e.gate.Anonymous()

	res := e.store(t, anon, StoreRequest{ScopeID: "p1", Content: "Set up the nightly job\nmore detail below"})
	assert.Equal(t, model.ScopeProject, res.Scope)
	assert.Equal(t, model.TypeWork, res.Type)
	assert.Equal(t, "Memory stored (project/work)", res.Message)
	assert.Equal(t, tokens.Heuristic{}.Count("Set up the nightly job\nmore detail below"), res.Tokens)
	assert.Empty(t, res.SupersededIDs)
	assert.Empty(t, res.SkippedSupersedes)

	m := e.raw(t, res.ID)
	assert.Equal(t, 0.5, m.Importance)
	assert.Equal(t, "Set up the nightly job", m.Summary)
	assert.Empty(t, m.CreatedBy, "anonymous writes have no creator")
	require.NotNil(t, m.ExpiresAt)
	assert.True(t, m.ExpiresAt.Equal(e.clock.now().Add(30*24*time.Hour)), "work expires after 30 days, got %v", m.ExpiresAt)
	assert.Contains(t, e.audit.actions(), "store_memory")
}

func TestStoreTTLByType(t *testing.T) {
	e := newEnv(t)
	anon := e.gate.Anonymous()

	res := e.store(t, anon, StoreRequest{ScopeID: "p1", Type: model.TypeDecision, Content: "Adopt trunk based development"})
	m := e.raw(t, res.ID)
	require.NotNil(t, m.ExpiresAt)
	assert.True(t, m.ExpiresAt.Equal(m.CreatedAt.Add(365*24*time.Hour)))

	explicit := e.clock.now().Add(2 * time.Hour)
	res = e.store(t, anon, StoreRequest{ScopeID: "p1", Content: "Short lived note", ExpiresAt: &explicit})
	assert.True(t, e.raw(t, res.ID).ExpiresAt.Equal(explicit))
}

func TestStoreValidation(t *testing.T) {
	e := newEnv(t)
	anon := e.gate.Anonymous()
	past := e.clock.now().Add(-time.Hour)

	tests := []struct {
		name string
		req  StoreRequest
	}{
		{"missing project id", StoreRequest{Content: "x"}},
		{"global with scope id", StoreRequest{Scope: model.ScopeGlobal, ScopeID: "p1", Content: "x"}},
		{"bad scope", StoreRequest{Scope: "planet", ScopeID: "p1", Content: "x"}},
		{"bad type", StoreRequest{ScopeID: "p1", Type: "idea", Content: "x"}},
		{"blank content", StoreRequest{ScopeID: "p1", Content: "   "}},
		{"oversized content", StoreRequest{ScopeID: "p1", Content: strings.Repeat("a", model.MaxContentLength+1)}},
		{"importance too high", StoreRequest{ScopeID: "p1", Content: "x", Importance: ptr(1.5)}},
		{"importance negative", StoreRequest{ScopeID: "p1", Content: "x", Importance: ptr(-0.1)}},
		{"importance NaN", StoreRequest{ScopeID: "p1", Content: "x", Importance: ptr(math.NaN())}},
		{"bad category", StoreRequest{ScopeID: "p1", Content: "x", Category: "cooking"}},
		{"expiry in the past", StoreRequest{ScopeID: "p1", Content: "x", ExpiresAt: &past}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Store(context.Background(), anon, tt.req)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
	assert.Zero(t, e.count(t), "rejected writes leave no rows")
}

func TestStoreTeamScopeDefaultsToCallerTeam(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	member := e.user(t, "alice", "t1", model.RoleMember, nil)
	loner := e.user(t, "bob", "", model.RoleMember, nil)

	res := e.store(t, member, StoreRequest{Scope: model.ScopeTeam, Content: "Team standup moves to 10am"})
	assert.Equal(t, "t1", res.ScopeID)

	_, err := e.svc.Store(ctx, loner, StoreRequest{Scope: model.ScopeTeam, Content: "x"})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = e.svc.Store(ctx, member, StoreRequest{Scope: model.ScopeTeam, ScopeID: "t2", Content: "x"})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestStoreRequiresWriteAccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	viewer := e.user(t, "vera", "", model.RoleMember, map[string]model.Role{"p1": model.RoleViewer})
	outsider := e.user(t, "olaf", "", model.RoleMember, nil)
	globalViewer := e.user(t, "gina", "", model.RoleViewer, nil)

	_, err := e.svc.Store(ctx, viewer, StoreRequest{ScopeID: "p1", Content: "x"})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = e.svc.Store(ctx, outsider, StoreRequest{ScopeID: "p1", Content: "x"})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = e.svc.Store(ctx, globalViewer, StoreRequest{Scope: model.ScopeGlobal, Content: "x"})
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	assert.Zero(t, e.count(t))
}

func TestStoreSuggestsCategoryAndTags(t *testing.T) {
	e := newEnv(t)
	res := e.store(t, e.gate.Anonymous(), StoreRequest{
		ScopeID:  "p1",
		Content:  "Cache invalidation uses redis pub/sub",
		Tags:     []string{"Infra-Notes"},
		Metadata: model.Metadata{"file": "internal/cache/redis_client.go"},
	})
	assert.Equal(t, "infra-notes", res.Tags[0], "explicit tags come first")
	assert.Contains(t, res.Tags, "redis")
	assert.Contains(t, res.Tags, "cache")

	res = e.store(t, e.gate.Anonymous(), StoreRequest{ScopeID: "p1", Content: "plain words", Category: model.CategoryDocs})
	assert.Equal(t, model.CategoryDocs, res.Category, "explicit category wins")
}

func TestStoreSupersedes(t *testing.T) {
	e := newEnv(t)
	anon := e.gate.Anonymous()

	old := e.store(t, anon, StoreRequest{ScopeID: "p1", Type: model.TypeDecision, Content: "Use MySQL"})
	res := e.store(t, anon, StoreRequest{
		ScopeID:    "p1",
		Type:       model.TypeDecision,
		Content:    "Use PostgreSQL",
		Supersedes: []string{old.ID, old.ID, "missing"},
	})

	assert.Equal(t, []string{old.ID}, res.SupersededIDs, "duplicate targets are applied once")
	assert.Equal(t, []Skip{{ID: "missing", Reason: model.ReasonNotFound}}, res.SkippedSupersedes)

	m := e.raw(t, old.ID)
	assert.True(t, m.Deprecated)
	assert.Equal(t, res.ID, m.SupersededBy)
	assert.False(t, e.raw(t, res.ID).Deprecated)
}

func TestStoreSupersedePermissions(t *testing.T) {
	e := newEnv(t)
	roles := map[string]model.Role{"p1": model.RoleMember}
	user1 := e.user(t, "user1", "", model.RoleMember, roles)
	user2 := e.user(t, "user2", "", model.RoleMember, roles)

	mine := e.store(t, user1, StoreRequest{ScopeID: "p1", Content: "user1 note"})
	ownerless := e.store(t, e.gate.Anonymous(), StoreRequest{ScopeID: "p1", Content: "imported note"})

	res := e.store(t, user2, StoreRequest{ScopeID: "p1", Content: "user2 note", Supersedes: []string{mine.ID, ownerless.ID}})
	assert.Equal(t, []string{ownerless.ID}, res.SupersededIDs, "ownerless records are supersedable by default")
	assert.Equal(t, []Skip{{ID: mine.ID, Reason: model.ReasonPermissionDenied}}, res.SkippedSupersedes)
	assert.False(t, e.raw(t, mine.ID).Deprecated)
	e.raw(t, res.ID)

	res = e.store(t, user1, StoreRequest{ScopeID: "p1", Content: "user1 follow-up", Supersedes: []string{mine.ID}})
	assert.Equal(t, []string{mine.ID}, res.SupersededIDs, "creators may supersede their own records")
}

func TestStoreSupersedeOwnerlessStrictPolicy(t *testing.T) {
	e := newEnv(t)
	e.user(t, "user2", "", model.RoleMember, map[string]model.Role{"p1": model.RoleMember})
	strict := auth.NewGate(auth.Policy{}, e.db).ForUser(&model.User{ID: "user2", Role: model.RoleMember})

	ownerless := e.store(t, e.gate.Anonymous(), StoreRequest{ScopeID: "p1", Content: "imported note"})
	res := e.store(t, strict, StoreRequest{ScopeID: "p1", Content: "replacement", Supersedes: []string{ownerless.ID}})
	assert.Empty(t, res.SupersededIDs)
	assert.Equal(t, model.ReasonPermissionDenied, res.SkippedSupersedes[0].Reason)
}

func TestStoreSupersedeExpiredIsNotFound(t *testing.T) {
	e := newEnv(t)
	anon := e.gate.Anonymous()
	soon := e.clock.now().Add(time.Hour)

	old := e.store(t, anon, StoreRequest{ScopeID: "p1", Content: "temporary", ExpiresAt: &soon})
	e.clock.advance(2 * time.Hour)

	res := e.store(t, anon, StoreRequest{ScopeID: "p1", Content: "replacement", Supersedes: []string{old.ID}})
	assert.Equal(t, []Skip{{ID: old.ID, Reason: model.ReasonNotFound}}, res.SkippedSupersedes)
}

func TestGetCountsReads(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.store(t, e.gate.Anonymous(), StoreRequest{ScopeID: "p1", Content: "read me"})

	_, err := e.svc.Get(ctx, e.gate.Anonymous(), res.ID)
	require.NoError(t, err)
	got, err := e.svc.Get(ctx, e.gate.Anonymous(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AccessCount)
	assert.Equal(t, 2, e.raw(t, res.ID).AccessCount)
	assert.Equal(t, 2, got.Tokens)

	_, err = e.svc.Get(ctx, e.gate.Anonymous(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	outsider := e.user(t, "olaf", "", model.RoleMember, nil)
	_, err = e.svc.Get(ctx, outsider, res.ID)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner", "", model.RoleMember, map[string]model.Role{"p1": model.RoleMember})
	other := e.user(t, "other", "", model.RoleMember, map[string]model.Role{"p1": model.RoleMember})

	res := e.store(t, owner, StoreRequest{
		ScopeID:  "p1",
		Content:  "plain words",
		Tags:     []string{"alpha", "beta"},
		Metadata: model.Metadata{"owner": "owner", "status": "pending"},
	})

	got, err := e.svc.Update(ctx, owner, res.ID, UpdateRequest{AddTags: []string{"Gamma"}, RemoveTags: []string{"alpha"}})
	require.NoError(t, err)
	assert.Equal(t, model.Tags{"beta", "gamma"}, got.Tags)

	got, err = e.svc.Update(ctx, owner, res.ID, UpdateRequest{
		Tags:       []string{"delta"},
		AddTags:    []string{"ignored"},
		Importance: ptr(0.9),
		Summary:    ptr("new summary"),
		Metadata:   model.Metadata{"status": "done"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.Tags{"delta"}, got.Tags, "tags replaces and wins over add_tags")

	m := e.raw(t, res.ID)
	assert.Equal(t, 0.9, m.Importance)
	assert.Equal(t, "new summary", m.Summary)
	assert.Equal(t, "done", m.Metadata.String("status"))
	assert.Equal(t, "owner", m.Metadata.String("owner"), "metadata merges")

	_, err = e.svc.Update(ctx, owner, res.ID, UpdateRequest{Tags: []string{}})
	require.NoError(t, err)
	assert.Empty(t, e.raw(t, res.ID).Tags)

	_, err = e.svc.Update(ctx, owner, res.ID, UpdateRequest{})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = e.svc.Update(ctx, owner, res.ID, UpdateRequest{Importance: ptr(2.0)})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = e.svc.Update(ctx, owner, res.ID, UpdateRequest{Importance: ptr(math.NaN())})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = e.svc.Update(ctx, other, res.ID, UpdateRequest{Summary: ptr("hijack")})
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	_, err = e.svc.Update(ctx, owner, "missing", UpdateRequest{Summary: ptr("x")})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateCapsAddedTags(t *testing.T) {
	e := newEnv(t)
	anon := e.gate.Anonymous()
	res := e.store(t, anon, StoreRequest{ScopeID: "p1", Content: "plain words", Tags: []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8"}})

	got, err := e.svc.Update(context.Background(), anon, res.ID, UpdateRequest{AddTags: []string{"b1", "b2", "b3", "b4"}})
	require.NoError(t, err)
	assert.Len(t, got.Tags, model.MaxTags)
	assert.Equal(t, "b2", got.Tags[model.MaxTags-1])
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner", "", model.RoleMember, map[string]model.Role{"p1": model.RoleMember})
	other := e.user(t, "other", "", model.RoleMember, map[string]model.Role{"p1": model.RoleMember})
	res := e.store(t, owner, StoreRequest{ScopeID: "p1", Content: "to be removed"})

	assert.ErrorIs(t, e.svc.Delete(ctx, other, res.ID), model.ErrPermissionDenied)
	require.NoError(t, e.svc.Delete(ctx, owner, res.ID))
	assert.ErrorIs(t, e.svc.Delete(ctx, owner, res.ID), model.ErrNotFound)
	assert.Contains(t, e.audit.actions(), "delete_memory")
}

// brokenRoles serves users from the store but fails every project role load.
type brokenRoles struct {
	*store.DB
}

func (brokenRoles) ProjectRoles(context.Context, string) (map[string]model.Role, error) {
	return nil, errors.New("connection refused")
}

func TestRoleLoadFailureIsNotADenial(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store(t, e.gate.Anonymous(), StoreRequest{ScopeID: "p1", Content: "pinned decision"})

	gate := auth.NewGate(auth.DefaultPolicy(), brokenRoles{e.db})
	dev := gate.ForUser(&model.User{ID: "dev", Role: model.RoleMember})

	_, err := e.svc.Context(ctx, dev, ContextRequest{ProjectID: "p1"})
	require.Error(t, err)
	assert.Empty(t, model.ReasonOf(err), "outage must not look like missing access")
	assert.Contains(t, err.Error(), "connection refused")

	_, err = e.svc.Store(ctx, dev.Fresh(), StoreRequest{ScopeID: "p1", Content: "new note"})
	require.Error(t, err)
	assert.Empty(t, model.ReasonOf(err))

	_, err = e.svc.Search(ctx, dev.Fresh(), SearchRequest{Query: "pinned"})
	require.Error(t, err)
	assert.Empty(t, model.ReasonOf(err))

	_, err = e.svc.Projects(ctx, dev.Fresh())
	require.Error(t, err)

	res, err := e.svc.Import(ctx, dev.Fresh(), []model.Memory{{Scope: model.ScopeProject, ScopeID: "p1", Type: model.TypeWork, Content: "imported"}})
	require.NoError(t, err)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, model.ReasonInternal, res.Skipped[0].Reason)
}
