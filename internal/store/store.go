// Package store provides the memory repository over SQLite or PostgreSQL.
package store

import (
	"context"
	"time"

	"github.com/rcliao/team-memory/internal/model"
)

// Order selects the pre-sort applied to a range query.
type Order int

const (
	// OrderImportance sorts by importance desc, then created_at desc.
	OrderImportance Order = iota
	// OrderRecent sorts by created_at desc only.
	OrderRecent
)

// Filter narrows a range query over memories. Zero values mean "any".
type Filter struct {
	Scope    model.Scope
	ScopeID  string
	Types    []model.Type
	Category model.Category
	// AnyTags matches records carrying at least one of the tags.
	AnyTags           []string
	IncludeDeprecated bool
	IncludeExpired    bool
	Order             Order
	// Limit caps the result size; 0 means no cap.
	Limit int
}

// TagCount is a tag and how many records carry it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// GroupStats aggregates records sharing a scope and type.
type GroupStats struct {
	Scope         model.Scope `json:"scope"`
	Type          model.Type  `json:"type"`
	Count         int         `json:"count"`
	AvgImportance float64     `json:"avg_importance"`
}

// ProjectSummary describes one project's stored records.
type ProjectSummary struct {
	ProjectID     string     `json:"project_id"`
	MemoryCount   int        `json:"memory_count"`
	DecisionCount int        `json:"decision_count"`
	LastActivity  *time.Time `json:"last_activity,omitempty"`
}

// AuditFilter narrows an audit log listing.
type AuditFilter struct {
	UserID string
	Action string
	Limit  int
}

// Memories is the memory record repository.
type Memories interface {
	// Insert stores a new record, assigning ID and CreatedAt when empty.
	Insert(ctx context.Context, m *model.Memory) error

	// Upsert stores a record under its own ID, replacing any existing row.
	Upsert(ctx context.Context, m *model.Memory) error

	// Get returns a non-expired record by id.
	Get(ctx context.Context, id string) (*model.Memory, error)

	// Lookup returns a record by id whether or not it has expired.
	Lookup(ctx context.Context, id string) (*model.Memory, error)

	// Query returns records matching f in f.Order.
	Query(ctx context.Context, f Filter) ([]model.Memory, error)

	// Update writes the mutable fields (summary, importance, category, tags,
	// metadata) of m back to its row.
	Update(ctx context.Context, m *model.Memory) error

	// SetDeprecated sets the deprecation flag and successor of one record.
	SetDeprecated(ctx context.Context, id string, deprecated bool, supersededBy string) error

	// Delete removes a record permanently.
	Delete(ctx context.Context, id string) error

	// Touch increments access_count and sets last_accessed_at for every id
	// in a single statement.
	Touch(ctx context.Context, ids []string) error

	// PurgeExpired deletes every record whose expiry has passed.
	PurgeExpired(ctx context.Context) (int64, error)

	TagCounts(ctx context.Context, scopeID string) ([]TagCount, error)
	Stats(ctx context.Context, projectID string) ([]GroupStats, error)
	Projects(ctx context.Context) ([]ProjectSummary, error)
}

// Accounts holds teams, users and project memberships.
type Accounts interface {
	CreateTeam(ctx context.Context, t *model.Team) error
	ListTeams(ctx context.Context) ([]model.Team, error)
	CreateUser(ctx context.Context, u *model.User, keyHash string) error
	ListUsers(ctx context.Context) ([]model.User, error)
	SetUserKey(ctx context.Context, userID, keyHash string) error
	// UserByKeyHash resolves an API key hash and records the access.
	UserByKeyHash(ctx context.Context, keyHash string) (*model.User, error)
	AddMember(ctx context.Context, m *model.Member) error
	ListMembers(ctx context.Context, projectID string) ([]model.Member, error)
	ProjectRoles(ctx context.Context, userID string) (map[string]model.Role, error)
}

// AuditLog persists audit entries.
type AuditLog interface {
	InsertAudit(ctx context.Context, e *model.AuditEntry) error
	AuditLogs(ctx context.Context, f AuditFilter) ([]model.AuditEntry, error)
}
