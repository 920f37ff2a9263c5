// Package auth resolves callers from API keys and decides what they may
// read, write and modify.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"sync"

	"github.com/rcliao/team-memory/internal/model"
)

// KeyPrefix marks generated API keys.
const KeyPrefix = "tm_"

// AdminID is the identity recorded for the configured admin key.
const AdminID = "admin"

// Policy holds the configurable authorization rules.
type Policy struct {
	// Required rejects requests without an API key.
	Required bool
	// AdminKey, when set, grants global admin to its bearer.
	AdminKey string
	// OwnerlessModifiable lets non-admins update, delete or deprecate
	// records with no creator.
	OwnerlessModifiable bool
	// OwnerlessSupersedable lets non-admins supersede records with no creator.
	OwnerlessSupersedable bool
}

// DefaultPolicy is open mode with ownerless records supersedable but not
// otherwise modifiable.
func DefaultPolicy() Policy {
	return Policy{OwnerlessSupersedable: true}
}

// Directory is the account data the gate consults.
type Directory interface {
	UserByKeyHash(ctx context.Context, keyHash string) (*model.User, error)
	ProjectRoles(ctx context.Context, userID string) (map[string]model.Role, error)
}

// Gate builds callers for requests.
type Gate struct {
	policy Policy
	dir    Directory
}

// NewGate returns a gate over dir.
func NewGate(policy Policy, dir Directory) *Gate {
	return &Gate{policy: policy, dir: dir}
}

// Policy returns the gate's policy.
func (g *Gate) Policy() Policy { return g.policy }

// Resolve maps an API key to a caller. An empty key yields the anonymous
// open-mode caller unless keys are required.
func (g *Gate) Resolve(ctx context.Context, apiKey string) (*Caller, error) {
	if apiKey == "" {
		if g.policy.Required {
			return nil, model.Unauthenticated("API key required")
		}
		return g.Anonymous(), nil
	}
	if g.policy.AdminKey != "" && subtle.ConstantTimeCompare([]byte(apiKey), []byte(g.policy.AdminKey)) == 1 {
		return g.Admin(), nil
	}
	u, err := g.dir.UserByKeyHash(ctx, HashKey(apiKey))
	if err != nil {
		return nil, err
	}
	return g.ForUser(u), nil
}

// Anonymous returns the open-mode caller: allowed everything, recorded as
// no creator.
func (g *Gate) Anonymous() *Caller {
	return &Caller{Role: model.RoleAdmin, admin: true, open: true, policy: g.policy}
}

// Admin returns a caller holding the admin key.
func (g *Gate) Admin() *Caller {
	return &Caller{ID: AdminID, Role: model.RoleAdmin, admin: true, policy: g.policy}
}

// ForUser returns a caller for a resolved user.
func (g *Gate) ForUser(u *model.User) *Caller {
	return &Caller{
		ID:     u.ID,
		TeamID: u.TeamID,
		Role:   u.Role,
		admin:  u.Role == model.RoleAdmin,
		policy: g.policy,
		dir:    g.dir,
	}
}

// Caller is the identity behind one request. Project roles are cached
// after the first successful load and never shared across callers; a failed
// load is retried on the next check.
type Caller struct {
	ID     string
	TeamID string
	Role   model.Role

	admin  bool
	open   bool
	policy Policy
	dir    Directory

	mu       sync.Mutex
	loaded   bool
	roles    map[string]model.Role
	rolesErr error
}

// Fresh returns a copy of the caller's identity with no cached project
// roles. Long-lived sessions take one per request so membership changes
// are seen.
func (c *Caller) Fresh() *Caller {
	return &Caller{
		ID:     c.ID,
		TeamID: c.TeamID,
		Role:   c.Role,
		admin:  c.admin,
		open:   c.open,
		policy: c.policy,
		dir:    c.dir,
	}
}

// IsAdmin reports whether the caller holds global admin.
func (c *Caller) IsAdmin() bool { return c.admin }

// Anonymous reports whether the caller is the open-mode anonymous caller.
func (c *Caller) Anonymous() bool { return c.open }

// ProjectRole returns the caller's role in a project. A failed role load
// reports no role; RolesErr then tells a denial from an outage.
func (c *Caller) ProjectRole(ctx context.Context, projectID string) (model.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		if c.dir == nil || c.ID == "" {
			c.roles, c.loaded = map[string]model.Role{}, true
		} else {
			roles, err := c.dir.ProjectRoles(ctx, c.ID)
			c.rolesErr = err
			if err != nil {
				return "", false
			}
			c.roles, c.loaded = roles, true
		}
	}
	r, ok := c.roles[projectID]
	return r, ok
}

// RolesErr returns the error from the latest failed role load, or nil once
// roles have loaded.
func (c *Caller) RolesErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rolesErr
}

// CanRead reports whether the caller may read records in a scope.
func (c *Caller) CanRead(ctx context.Context, scope model.Scope, scopeID string) bool {
	if c.admin || c.open {
		return true
	}
	switch scope {
	case model.ScopeGlobal:
		return true
	case model.ScopeTeam:
		return c.TeamID != "" && scopeID == c.TeamID
	case model.ScopeProject:
		_, ok := c.ProjectRole(ctx, scopeID)
		return ok
	}
	return false
}

// CanWrite reports whether the caller may create records in a scope.
func (c *Caller) CanWrite(ctx context.Context, scope model.Scope, scopeID string) bool {
	if c.admin || c.open {
		return true
	}
	switch scope {
	case model.ScopeGlobal:
		return c.Role != model.RoleViewer
	case model.ScopeTeam:
		return c.TeamID != "" && scopeID == c.TeamID && c.Role != model.RoleViewer
	case model.ScopeProject:
		r, ok := c.ProjectRole(ctx, scopeID)
		return ok && (r == model.RoleAdmin || r == model.RoleMember)
	}
	return false
}

// CanModify reports whether the caller may update, delete, deprecate or
// restore m.
func (c *Caller) CanModify(m *model.Memory) bool {
	if c.admin {
		return true
	}
	if m.CreatedBy == "" {
		return c.policy.OwnerlessModifiable
	}
	return m.CreatedBy == c.ID
}

// CanSupersede reports whether the caller's new record may retire m.
func (c *Caller) CanSupersede(m *model.Memory) bool {
	if c.admin {
		return true
	}
	if m.CreatedBy == "" {
		return c.policy.OwnerlessSupersedable
	}
	return m.CreatedBy == c.ID
}

// CanManageProject reports whether the caller may change project membership.
func (c *Caller) CanManageProject(ctx context.Context, projectID string) bool {
	if c.admin {
		return true
	}
	r, ok := c.ProjectRole(ctx, projectID)
	return ok && r == model.RoleAdmin
}

type callerKey struct{}

// WithCaller attaches c to ctx.
func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// FromContext returns the caller attached to ctx, or nil.
func FromContext(ctx context.Context) *Caller {
	c, _ := ctx.Value(callerKey{}).(*Caller)
	return c
}

// GenerateKey returns a new random API key.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashKey returns the stored form of an API key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
