// Package model defines the core memory data types.
package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxContentLength is the maximum content length in characters.
	MaxContentLength = 65536
	// MaxTags caps the tag set of a single memory.
	MaxTags = 10
	// SummaryMaxLength is the cap applied to derived summaries.
	SummaryMaxLength = 100
)

// Scope is the visibility tier of a memory.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeTeam    Scope = "team"
	ScopeProject Scope = "project"
)

// ParseScope validates a scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeGlobal, ScopeTeam, ScopeProject:
		return Scope(s), nil
	}
	return "", Validationf("invalid scope %q (valid: global, team, project)", s)
}

// Type classifies a memory and drives its default retention.
type Type string

const (
	TypeDecision  Type = "decision"
	TypeWork      Type = "work"
	TypeKnowledge Type = "knowledge"
	TypeTodo      Type = "todo"
)

// Types lists every memory type.
var Types = []Type{TypeDecision, TypeWork, TypeKnowledge, TypeTodo}

// ParseType validates a type string.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", Validationf("invalid type %q (valid: decision, work, knowledge, todo)", s)
}

// Category is a closed set of subject areas. CategoryUnset means none.
type Category string

const (
	CategoryUnset        Category = ""
	CategoryBackend      Category = "backend"
	CategoryFrontend     Category = "frontend"
	CategoryInfra        Category = "infra"
	CategorySecurity     Category = "security"
	CategoryDatabase     Category = "database"
	CategoryAPI          Category = "api"
	CategoryUI           Category = "ui"
	CategoryTest         Category = "test"
	CategoryDocs         Category = "docs"
	CategoryArchitecture Category = "architecture"
	CategoryOther        Category = "other"
)

// Categories lists the valid categories in display order.
var Categories = []Category{
	CategoryBackend, CategoryFrontend, CategoryInfra, CategorySecurity,
	CategoryDatabase, CategoryAPI, CategoryUI, CategoryTest, CategoryDocs,
	CategoryArchitecture, CategoryOther,
}

// CategoryDescriptions gives a short label for each category.
var CategoryDescriptions = map[Category]string{
	CategoryBackend:      "Server-side development",
	CategoryFrontend:     "Client-side development",
	CategoryInfra:        "Infrastructure and DevOps",
	CategorySecurity:     "Security",
	CategoryDatabase:     "Databases",
	CategoryAPI:          "API design",
	CategoryUI:           "UI/UX",
	CategoryTest:         "Testing",
	CategoryDocs:         "Documentation",
	CategoryArchitecture: "Architecture",
	CategoryOther:        "Other",
}

// ParseCategory validates a category string. The empty string is CategoryUnset.
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryUnset, nil
	}
	if _, ok := CategoryDescriptions[Category(s)]; ok {
		return Category(s), nil
	}
	return CategoryUnset, Validationf("invalid category %q", s)
}

// IsSet reports whether c holds a real category.
func (c Category) IsSet() bool { return c != CategoryUnset }

// Role is a global or per-project role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// ParseRole validates a role string. Empty defaults to member.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "":
		return RoleMember, nil
	case RoleAdmin, RoleMember, RoleViewer:
		return Role(s), nil
	}
	return "", Validationf("invalid role %q (valid: admin, member, viewer)", s)
}

// Tags is a deduplicated, lowercase, size-capped tag set in insertion order.
type Tags []string

// NormalizeTags merges tag lists into a single set: trimmed, lowercased,
// first occurrence wins, capped at MaxTags.
func NormalizeTags(lists ...[]string) Tags {
	out := Tags{}
	seen := map[string]bool{}
	for _, list := range lists {
		for _, t := range list {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" || seen[t] {
				continue
			}
			if len(out) == MaxTags {
				return out
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Contains reports whether tag is in the set.
func (t Tags) Contains(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, x := range t {
		if x == tag {
			return true
		}
	}
	return false
}

// Without returns the set minus the given tags.
func (t Tags) Without(remove []string) Tags {
	drop := map[string]bool{}
	for _, r := range remove {
		drop[strings.ToLower(strings.TrimSpace(r))] = true
	}
	out := Tags{}
	for _, x := range t {
		if !drop[x] {
			out = append(out, x)
		}
	}
	return out
}

// Metadata is an open key/value map. Unknown keys pass through untouched.
type Metadata map[string]any

// String returns the value at key if it is a string.
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Merge returns a copy of m with every key of patch applied over it.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := make(Metadata, len(m)+len(patch))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Memory represents a stored memory record.
type Memory struct {
	ID             string     `json:"id"`
	Scope          Scope      `json:"scope"`
	ScopeID        string     `json:"scope_id,omitempty"`
	Type           Type       `json:"type"`
	Content        string     `json:"content"`
	Summary        string     `json:"summary"`
	Importance     float64    `json:"importance"`
	Category       Category   `json:"category,omitempty"`
	Tags           Tags       `json:"tags"`
	Metadata       Metadata   `json:"metadata"`
	CreatedBy      string     `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	Deprecated     bool       `json:"deprecated"`
	SupersededBy   string     `json:"superseded_by,omitempty"`
}

// Entry is a memory paired with its token cost, as returned to readers.
type Entry struct {
	Memory
	Tokens int `json:"tokens"`
}

// Expired reports whether m is past its expiry at now.
func (m *Memory) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// ValidateScope checks the scope/scope_id pairing.
func ValidateScope(scope Scope, scopeID string) error {
	switch scope {
	case ScopeGlobal:
		if scopeID != "" {
			return Validationf("global scope does not take a scope_id")
		}
	case ScopeTeam, ScopeProject:
		if scopeID == "" {
			return Validationf("%s scope requires scope_id", scope)
		}
	default:
		return Validationf("invalid scope %q", scope)
	}
	return nil
}

// ValidateImportance checks that v lies in [0, 1].
func ValidateImportance(v float64) error {
	if !(v >= 0 && v <= 1) {
		return Validationf("importance %v out of range [0, 1]", v)
	}
	return nil
}

// ValidateContent checks that content is non-empty and within MaxContentLength.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return Validationf("content is required")
	}
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return Validationf("content too long: %d characters (max %d)", n, MaxContentLength)
	}
	return nil
}

// Summarize derives a summary from the first line of content.
func Summarize(content string) string {
	first, _, _ := strings.Cut(content, "\n")
	first = strings.TrimSpace(first)
	r := []rune(first)
	if len(r) <= SummaryMaxLength {
		return first
	}
	return string(r[:SummaryMaxLength-3]) + "..."
}

func (s Scope) String() string { return string(s) }

func (t Type) String() string { return string(t) }

// Label is a display form of scope/type, e.g. "project/decision".
func (m *Memory) Label() string {
	return fmt.Sprintf("%s/%s", m.Scope, m.Type)
}
