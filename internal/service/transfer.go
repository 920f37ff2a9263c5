package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/store"
)

// Export is a portable snapshot of a project and the global records.
type Export struct {
	ProjectID  string         `json:"project_id"`
	ExportedAt time.Time      `json:"exported_at"`
	Count      int            `json:"count"`
	Memories   []model.Memory `json:"memories"`
}

// Export returns every live record of a project plus the global records,
// deprecated ones included, newest first.
func (s *Service) Export(ctx context.Context, c *auth.Caller, projectID string) (*Export, error) {
	if projectID == "" {
		return nil, model.Validationf("project_id is required")
	}
	if !c.CanRead(ctx, model.ScopeProject, projectID) {
		return nil, denied(c, "no read access to project %s", projectID)
	}

	project, err := s.repo.Query(ctx, store.Filter{
		Scope:             model.ScopeProject,
		ScopeID:           projectID,
		IncludeDeprecated: true,
		Order:             store.OrderRecent,
	})
	if err != nil {
		return nil, err
	}
	global, err := s.repo.Query(ctx, store.Filter{
		Scope:             model.ScopeGlobal,
		IncludeDeprecated: true,
		Order:             store.OrderRecent,
	})
	if err != nil {
		return nil, err
	}

	all := append(project, global...)
	return &Export{
		ProjectID:  projectID,
		ExportedAt: s.now().UTC(),
		Count:      len(all),
		Memories:   all,
	}, nil
}

// ImportResult reports how many records an import wrote and which it
// passed over.
type ImportResult struct {
	Imported int    `json:"imported"`
	Skipped  []Skip `json:"skipped"`
}

// Import writes exported records back. Records keep their id and creation
// time; expiry is recomputed from the type's TTL, and records
// whose retention has already run out are skipped. Existing rows, expired
// or not, are replaced only when the caller may modify them.
func (s *Service) Import(ctx context.Context, c *auth.Caller, records []model.Memory) (*ImportResult, error) {
	res := &ImportResult{Skipped: []Skip{}}
	now := s.now().UTC()

	for i := range records {
		m := records[i]
		label := m.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		skip := func(reason model.Reason) {
			res.Skipped = append(res.Skipped, Skip{ID: label, Reason: reason})
		}

		if err := s.normalizeImport(&m, c); err != nil {
			skip(model.ReasonValidation)
			continue
		}
		if !c.CanWrite(ctx, m.Scope, m.ScopeID) {
			if c.RolesErr() != nil {
				skip(model.ReasonInternal)
			} else {
				skip(model.ReasonUnauthorized)
			}
			continue
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		expires := m.CreatedAt.Add(s.ttl(m.Type))
		if !expires.After(now) {
			skip(model.ReasonExpired)
			continue
		}
		m.ExpiresAt = &expires
		m.AccessCount = 0
		m.LastAccessedAt = nil

		if m.ID != "" {
			existing, err := s.repo.Lookup(ctx, m.ID)
			switch {
			case err == nil:
				if !c.CanModify(existing) {
					skip(model.ReasonPermissionDenied)
					continue
				}
			case !errors.Is(err, model.ErrNotFound):
				return nil, err
			}
		}
		if err := s.repo.Upsert(ctx, &m); err != nil {
			return nil, err
		}
		res.Imported++
	}

	s.record(ctx, c, "import_memories", "memory", "", map[string]any{
		"imported": res.Imported,
		"skipped":  len(res.Skipped),
	})
	return res, nil
}

func (s *Service) normalizeImport(m *model.Memory, c *auth.Caller) error {
	if m.Scope == "" {
		m.Scope = model.ScopeProject
	}
	if m.Type == "" {
		m.Type = model.TypeWork
	}
	if _, err := model.ParseScope(string(m.Scope)); err != nil {
		return err
	}
	if _, err := model.ParseType(string(m.Type)); err != nil {
		return err
	}
	if _, err := model.ParseCategory(string(m.Category)); err != nil {
		return err
	}
	if err := model.ValidateScope(m.Scope, m.ScopeID); err != nil {
		return err
	}
	if err := model.ValidateContent(m.Content); err != nil {
		return err
	}
	if err := model.ValidateImportance(m.Importance); err != nil {
		return err
	}
	m.Tags = model.NormalizeTags(m.Tags)
	if strings.TrimSpace(m.Summary) == "" {
		m.Summary = model.Summarize(m.Content)
	}
	// Only admins may carry another creator across.
	if m.CreatedBy == "" || !c.IsAdmin() {
		m.CreatedBy = c.ID
	}
	if !m.Deprecated {
		m.SupersededBy = ""
	}
	return nil
}

// PurgeExpired deletes every record past its expiry and reports how many.
func (s *Service) PurgeExpired(ctx context.Context, c *auth.Caller) (int64, error) {
	n, err := s.repo.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	s.record(ctx, c, "cleanup_expired", "memory", "", map[string]any{"deleted": n})
	s.log.Info("expired memories purged", "deleted", n)
	return n, nil
}
