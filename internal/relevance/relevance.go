// Package relevance ranks memories against a keyword query and packs
// ranked memories into a token budget.
package relevance

import (
	"sort"
	"strings"

	"github.com/rcliao/team-memory/internal/model"
)

const (
	// TagWeight multiplies tag matches; tags are curated signal.
	TagWeight = 2
	// CategoryBoost is added when a record's category equals the filter.
	CategoryBoost = 5
	// FallbackSize is how many pre-sorted candidates are kept when nothing
	// matches the query.
	FallbackSize = 5
)

// Query is a set of lowercase query words.
type Query map[string]struct{}

// ParseQuery splits q on whitespace into a lowercase word set.
func ParseQuery(q string) Query {
	words := Query{}
	for _, w := range strings.Fields(strings.ToLower(q)) {
		words[w] = struct{}{}
	}
	return words
}

func (q Query) overlap(words []string) int {
	n := 0
	seen := map[string]bool{}
	for _, w := range words {
		w = strings.ToLower(w)
		if seen[w] {
			continue
		}
		seen[w] = true
		if _, ok := q[w]; ok {
			n++
		}
	}
	return n
}

// Score rates m against q: content word matches, plus TagWeight per tag
// match, plus CategoryBoost when category is set and equals m's.
func Score(m *model.Memory, q Query, category model.Category) int {
	score := q.overlap(strings.Fields(m.Content)) + TagWeight*q.overlap(m.Tags)
	if category.IsSet() && m.Category == category {
		score += CategoryBoost
	}
	return score
}

// Overlap counts query words found in m's content or tags.
func Overlap(m *model.Memory, q Query) int {
	words := strings.Fields(m.Content)
	words = append(words, m.Tags...)
	return q.overlap(words)
}

// Rank orders entries by Score, dropping non-matches. Ties keep input
// order. When nothing matches it returns the first FallbackSize entries.
func Rank(entries []model.Entry, q Query, category model.Category) []model.Entry {
	return rank(entries, func(m *model.Memory) int { return Score(m, q, category) }, FallbackSize)
}

// RankSearch orders entries by Overlap and keeps at most limit. When
// nothing matches it returns the first limit entries.
func RankSearch(entries []model.Entry, q Query, limit int) []model.Entry {
	ranked := rank(entries, func(m *model.Memory) int { return Overlap(m, q) }, limit)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func rank(entries []model.Entry, score func(*model.Memory) int, fallback int) []model.Entry {
	type scored struct {
		entry model.Entry
		score int
	}
	var matched []scored
	for _, e := range entries {
		if s := score(&e.Memory); s > 0 {
			matched = append(matched, scored{e, s})
		}
	}
	if len(matched) == 0 {
		n := min(fallback, len(entries))
		return append([]model.Entry{}, entries[:n]...)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})
	out := make([]model.Entry, len(matched))
	for i, s := range matched {
		out[i] = s.entry
	}
	return out
}

// Select accepts ranked entries in order while they fit in budget and
// stops at the first one that would overflow. It returns the accepted
// prefix and its total cost.
func Select(ranked []model.Entry, budget int) ([]model.Entry, int) {
	selected := []model.Entry{}
	total := 0
	for _, e := range ranked {
		if total+e.Tokens > budget {
			break
		}
		selected = append(selected, e)
		total += e.Tokens
	}
	return selected, total
}
