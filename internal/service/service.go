// Package service implements the memory operations on top of a store
// repository: storing with supersedes, the tiered context assembler, search,
// deprecation and the admin surface. Every operation takes the resolved
// caller and enforces its permissions before touching data.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/store"
	"github.com/rcliao/team-memory/internal/tokens"
)

// Repository is the storage the service runs on.
type Repository interface {
	store.Memories
	store.Accounts
	store.AuditLog
}

// Auditor receives audit events. Record must not block the caller.
type Auditor interface {
	Record(e model.AuditEntry)
}

type nopAuditor struct{}

func (nopAuditor) Record(model.AuditEntry) {}

// Defaults applied when Options leaves a field zero.
const (
	DefaultMaxTokens       = 2000
	DefaultCandidateWindow = 20
)

// Options tunes a Service.
type Options struct {
	// TTL returns the default retention for a type.
	TTL              func(model.Type) time.Duration
	DefaultMaxTokens int
	// CandidateWindow is how many rows each context tier considers.
	CandidateWindow int
	Auditor         Auditor
	Logger          *slog.Logger
	Now             func() time.Time
}

// Service executes memory operations for authenticated callers.
type Service struct {
	repo      Repository
	counter   tokens.Counter
	ttl       func(model.Type) time.Duration
	maxTokens int
	window    int
	audit     Auditor
	log       *slog.Logger
	now       func() time.Time
}

// New returns a Service over repo.
func New(repo Repository, counter tokens.Counter, opts Options) *Service {
	s := &Service{
		repo:      repo,
		counter:   counter,
		ttl:       opts.TTL,
		maxTokens: opts.DefaultMaxTokens,
		window:    opts.CandidateWindow,
		audit:     opts.Auditor,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if s.counter == nil {
		s.counter = tokens.Heuristic{}
	}
	if s.ttl == nil {
		s.ttl = defaultTTL
	}
	if s.maxTokens <= 0 {
		s.maxTokens = DefaultMaxTokens
	}
	if s.window <= 0 {
		s.window = DefaultCandidateWindow
	}
	if s.audit == nil {
		s.audit = nopAuditor{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func defaultTTL(t model.Type) time.Duration {
	switch t {
	case model.TypeDecision, model.TypeKnowledge:
		return 365 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

func (s *Service) entry(m model.Memory) model.Entry {
	return model.Entry{Memory: m, Tokens: s.counter.Count(m.Content)}
}

func (s *Service) entries(ms []model.Memory) []model.Entry {
	out := make([]model.Entry, len(ms))
	for i, m := range ms {
		out[i] = s.entry(m)
	}
	return out
}

// touch records a read of every entry and reflects it in the returned copies.
func (s *Service) touch(ctx context.Context, entries ...[]model.Entry) error {
	var ids []string
	for _, list := range entries {
		for _, e := range list {
			ids = append(ids, e.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.repo.Touch(ctx, ids); err != nil {
		return err
	}
	now := s.now().UTC()
	for _, list := range entries {
		for i := range list {
			list[i].AccessCount++
			list[i].LastAccessedAt = &now
		}
	}
	return nil
}

type clientIPKey struct{}

// WithClientIP attaches the request's remote address for audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func (s *Service) record(ctx context.Context, c *auth.Caller, action, resourceType, resourceID string, details map[string]any) {
	s.audit.Record(model.AuditEntry{
		UserID:       c.ID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    clientIP(ctx),
		CreatedAt:    s.now().UTC(),
	})
}

func requireAdmin(c *auth.Caller) error {
	if !c.IsAdmin() {
		return model.Unauthorized("admin access required")
	}
	return nil
}

// denied reports a failed permission check. When the caller's project roles
// could not be loaded the load error is returned instead, so an outage is
// not reported as missing access.
func denied(c *auth.Caller, format string, args ...any) error {
	if err := roleLoadErr(c); err != nil {
		return err
	}
	return model.Unauthorized(format, args...)
}

func roleLoadErr(c *auth.Caller) error {
	if err := c.RolesErr(); err != nil {
		return fmt.Errorf("load project roles: %w", err)
	}
	return nil
}
