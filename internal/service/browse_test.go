package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/team-memory/internal/model"
)

func TestSearchRanksByOverlap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	anon := e.gate.Anonymous()

	both := e.store(t, anon, StoreRequest{ScopeID: "p1", Importance: ptr(0.3), Content: "golang channels tutorial"})
	one := e.store(t, anon, StoreRequest{ScopeID: "p1", Importance: ptr(0.9), Content: "golang modules"})
	e.store(t, anon, StoreRequest{ScopeID: "p1", Importance: ptr(1.0), Content: "python notes"})

	got, err := e.svc.Search(ctx, anon, SearchRequest{Query: "golang channels"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, both.ID, got[0].ID)
	assert.Equal(t, one.ID, got[1].ID)
	assert.Equal(t, 1, e.raw(t, both.ID).AccessCount)

	got, err = e.svc.Search(ctx, anon, SearchRequest{Query: "haskell", Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2, "no overlap falls back to the most important")
	assert.Equal(t, "python notes", got[0].Content)

	_, err = e.svc.Search(ctx, anon, SearchRequest{Query: "x", Limit: MaxSearchLimit + 1})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSearchFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	anon := e.gate.Anonymous()
	e.store(t, anon, StoreRequest{ScopeID: "p1", Type: model.TypeDecision, Content: "deploy with blue green", Tags: []string{"deploy"}})
	e.store(t, anon, StoreRequest{ScopeID: "p2", Content: "deploy on fridays never"})

	got, err := e.svc.Search(ctx, anon, SearchRequest{Query: "deploy", Scope: model.ScopeProject, ScopeID: "p2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].ScopeID)

	got, err = e.svc.Search(ctx, anon, SearchRequest{Query: "deploy", Type: model.TypeDecision})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.TypeDecision, got[0].Type)

	got, err = e.svc.Search(ctx, anon, SearchRequest{Query: "deploy", Tags: []string{"deploy"}})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	member := e.user(t, "mia", "", model.RoleMember, map[string]model.Role{"p1": model.RoleMember})
	got, err = e.svc.Search(ctx, member, SearchRequest{Query: "deploy"})
	require.NoError(t, err)
	require.Len(t, got, 1, "unreadable projects are filtered out")
	assert.Equal(t, "p1", got[0].ScopeID)

	_, err = e.svc.Search(ctx, member, SearchRequest{Query: "deploy", Scope: model.ScopeProject, ScopeID: "p2"})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestTodos(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	anon := e.gate.Anonymous()
	todo := func(content string, meta model.Metadata) {
		e.store(t, anon, StoreRequest{ScopeID: "p1", Type: model.TypeTodo, Content: content, Metadata: meta})
		e.clock.advance(time.Minute)
	}
	todo("write docs", model.Metadata{"owner": "alice"})
	todo("ship release", model.Metadata{"owner": "alice", "status": "done"})
	todo("review pr", model.Metadata{"owner": "bob"})
	e.store(t, anon, StoreRequest{ScopeID: "p1", Content: "not a todo", Metadata: model.Metadata{"owner": "alice"}})

	got, err := e.svc.Todos(ctx, anon, "p1", "alice", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "write docs", got[0].Content)

	got, err = e.svc.Todos(ctx, anon, "p1", "alice", TodoAll)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ship release", got[0].Content, "newest first")

	got, err = e.svc.Todos(ctx, anon, "p1", "alice", TodoDone)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = e.svc.Todos(ctx, anon, "p1", "", "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestTagsStatsProjects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	anon := e.gate.Anonymous()
	e.store(t, anon, StoreRequest{ScopeID: "p1", Type: model.TypeDecision, Importance: ptr(0.8), Content: "one", Tags: []string{"x", "y"}})
	e.store(t, anon, StoreRequest{ScopeID: "p1", Type: model.TypeDecision, Importance: ptr(0.4), Content: "two", Tags: []string{"x"}})
	e.store(t, anon, StoreRequest{Scope: model.ScopeGlobal, Content: "three"})
	e.store(t, anon, StoreRequest{ScopeID: "p2", Content: "four"})

	tags, err := e.svc.Tags(ctx, anon, "p1")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "x", tags[0].Tag)
	assert.Equal(t, 2, tags[0].Count)

	stats, err := e.svc.Stats(ctx, anon, "p1")
	require.NoError(t, err)
	assert.Equal(t, GroupSummary{Count: 2, AvgImportance: 0.6}, stats.Stats["project/decision"])
	assert.Equal(t, 1, stats.Stats["global/work"].Count)
	assert.NotContains(t, stats.Stats, "project/work")

	member := e.user(t, "mia", "", model.RoleMember, map[string]model.Role{"p2": model.RoleMember})
	projects, err := e.svc.Projects(ctx, member)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "p2", projects[0].ProjectID)

	_, err = e.svc.Stats(ctx, member, "p1")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = e.svc.Tags(ctx, member, "p1")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestSuggestProjects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	anon := e.gate.Anonymous()
	e.store(t, anon, StoreRequest{ScopeID: "typo-test", Content: "typo test"})
	e.store(t, anon, StoreRequest{ScopeID: "unrelated-zzz", Content: "other"})

	got, err := e.svc.SuggestProjects(ctx, anon, "typo-test")
	require.NoError(t, err)
	assert.True(t, got.ExactMatch)

	got, err = e.svc.SuggestProjects(ctx, anon, "typo-tset")
	require.NoError(t, err)
	assert.False(t, got.ExactMatch)
	require.NotEmpty(t, got.Suggestions)
	assert.Equal(t, "typo-test", got.Suggestions[0].ProjectID)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("Alpha", "alpha"))
	assert.Equal(t, 0.8, similarity("alpha", "alpha-v2"))
	assert.Equal(t, 0.6, similarity("my-alpha", "alpha"))
	assert.Zero(t, similarity("xy", "abcdefgh"))
}

func TestCategories(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, len(model.Categories))
	for _, c := range cats {
		assert.NotEmpty(t, c.Description, c.Category)
	}
}
