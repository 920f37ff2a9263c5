package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
)

// Deprecate marks a record as outdated, optionally pointing at the record
// that replaces it. The successor must exist.
func (s *Service) Deprecate(ctx context.Context, c *auth.Caller, id, supersededBy string) (*model.Memory, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.CanModify(m) {
		return nil, model.PermissionDenied("cannot deprecate memory %s created by another user", id)
	}

	supersededBy = strings.TrimSpace(supersededBy)
	if supersededBy != "" {
		if supersededBy == id {
			return nil, model.Validationf("memory %s cannot supersede itself", id)
		}
		if _, err := s.repo.Get(ctx, supersededBy); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, model.Validationf("superseding memory not found: %s", supersededBy)
			}
			return nil, err
		}
	}

	if err := s.repo.SetDeprecated(ctx, id, true, supersededBy); err != nil {
		return nil, err
	}
	s.record(ctx, c, "deprecate_memory", "memory", id, map[string]any{"superseded_by": supersededBy})

	m.Deprecated = true
	m.SupersededBy = supersededBy
	return m, nil
}

// Restore clears the deprecation flag and successor of a record.
func (s *Service) Restore(ctx context.Context, c *auth.Caller, id string) (*model.Memory, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.CanModify(m) {
		return nil, model.PermissionDenied("cannot restore memory %s created by another user", id)
	}
	if err := s.repo.SetDeprecated(ctx, id, false, ""); err != nil {
		return nil, err
	}
	s.record(ctx, c, "restore_memory", "memory", id, nil)

	m.Deprecated = false
	m.SupersededBy = ""
	return m, nil
}
