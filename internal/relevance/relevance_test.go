package relevance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rcliao/team-memory/internal/model"
)

func entry(id, content string, tokens int, tags ...string) model.Entry {
	return model.Entry{
		Memory: model.Memory{ID: id, Content: content, Tags: model.Tags(tags)},
		Tokens: tokens,
	}
}

func ids(entries []model.Entry) []string {
	out := []string{}
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestScore(t *testing.T) {
	q := ParseQuery("JWT auth tokens")
	m := &model.Memory{Content: "Use JWT for auth auth", Tags: model.Tags{"jwt", "security"}, Category: model.CategorySecurity}

	assert.Equal(t, 2+2*1, Score(m, q, model.CategoryUnset))
	assert.Equal(t, 2+2*1+CategoryBoost, Score(m, q, model.CategorySecurity))
	assert.Equal(t, 2+2*1, Score(m, q, model.CategoryAPI))
}

func TestOverlap(t *testing.T) {
	q := ParseQuery("redis cache")
	m := &model.Memory{Content: "Put a cache in front", Tags: model.Tags{"redis", "cache"}}
	assert.Equal(t, 2, Overlap(m, q))
}

func TestRankOrdersByScoreStable(t *testing.T) {
	entries := []model.Entry{
		entry("a", "postgres", 1),
		entry("b", "nothing", 1),
		entry("c", "postgres schema", 1),
		entry("d", "postgres", 1),
	}
	got := Rank(entries, ParseQuery("postgres schema"), model.CategoryUnset)
	assert.Equal(t, []string{"c", "a", "d"}, ids(got))
}

func TestRankFallback(t *testing.T) {
	for _, n := range []int{0, 3, 5, 8} {
		var entries []model.Entry
		for i := 0; i < n; i++ {
			entries = append(entries, entry(fmt.Sprint(i), "unrelated text", 1))
		}
		got := Rank(entries, ParseQuery("kubernetes"), model.CategoryUnset)
		assert.Len(t, got, min(FallbackSize, n), "pool size %d", n)
		for i, e := range got {
			assert.Equal(t, fmt.Sprint(i), e.ID, "fallback keeps pre-sort order")
		}
	}
}

func TestRankCategoryOnly(t *testing.T) {
	a := entry("a", "x", 1)
	b := entry("b", "y", 1)
	b.Category = model.CategoryDatabase
	got := Rank([]model.Entry{a, b}, ParseQuery(""), model.CategoryDatabase)
	assert.Equal(t, []string{"b"}, ids(got))
}

func TestRankSearch(t *testing.T) {
	entries := []model.Entry{
		entry("a", "alpha", 1),
		entry("b", "beta", 1, "alpha"),
		entry("c", "gamma", 1),
	}
	assert.Equal(t, []string{"a", "b"}, ids(RankSearch(entries, ParseQuery("alpha"), 10)))
	assert.Equal(t, []string{"a"}, ids(RankSearch(entries, ParseQuery("alpha"), 1)))
	assert.Equal(t, []string{"a", "b"}, ids(RankSearch(entries, ParseQuery("zeta"), 2)))
}

func TestSelectStopsAtFirstOverflow(t *testing.T) {
	ranked := []model.Entry{entry("a", "", 40), entry("b", "", 50), entry("c", "", 5)}
	got, total := Select(ranked, 60)
	assert.Equal(t, []string{"a"}, ids(got), "must not skip ahead to smaller entries")
	assert.Equal(t, 40, total)
}

func TestSelectBudget(t *testing.T) {
	ranked := []model.Entry{entry("a", "", 10), entry("b", "", 10), entry("c", "", 10)}

	got, total := Select(ranked, 30)
	assert.Len(t, got, 3)
	assert.Equal(t, 30, total)

	got, total = Select(ranked, 0)
	assert.Empty(t, got)
	assert.Equal(t, 0, total)

	zero := []model.Entry{entry("z", "", 0)}
	got, _ = Select(zero, 0)
	assert.Len(t, got, 1)
}

func TestSelectDeterministic(t *testing.T) {
	ranked := []model.Entry{entry("a", "", 7), entry("b", "", 3), entry("c", "", 9), entry("d", "", 1)}
	first, t1 := Select(ranked, 12)
	second, t2 := Select(ranked, 12)
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, t1, t2)
	assert.LessOrEqual(t, t1, 12)
}
