package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/suggest"
)

// StoreRequest describes a new memory. Zero values take the defaults:
// project scope, work type, importance 0.5, TTL-derived expiry.
type StoreRequest struct {
	Scope      model.Scope    `json:"scope,omitempty"`
	ScopeID    string         `json:"scope_id,omitempty"`
	Type       model.Type     `json:"type,omitempty"`
	Content    string         `json:"content"`
	Summary    string         `json:"summary,omitempty"`
	Importance *float64       `json:"importance,omitempty"`
	Category   model.Category `json:"category,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Metadata   model.Metadata `json:"metadata,omitempty"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	// Supersedes lists records the new one retires.
	Supersedes []string `json:"supersedes,omitempty"`
}

// Skip reports a supersedes or import item that was not applied.
type Skip struct {
	ID     string       `json:"id"`
	Reason model.Reason `json:"reason"`
}

// StoreResult is the outcome of Store.
type StoreResult struct {
	ID                string         `json:"id"`
	Tokens            int            `json:"tokens"`
	Scope             model.Scope    `json:"scope"`
	ScopeID           string         `json:"scope_id,omitempty"`
	Type              model.Type     `json:"type"`
	Category          model.Category `json:"category,omitempty"`
	Tags              model.Tags     `json:"tags"`
	Message           string         `json:"message"`
	SupersededIDs     []string       `json:"superseded_ids"`
	SkippedSupersedes []Skip         `json:"skipped_supersedes"`
}

// Store validates and persists a new memory, then retires every record
// named in Supersedes that the caller may supersede. Supersede failures
// are reported per id and never undo the new record.
func (s *Service) Store(ctx context.Context, c *auth.Caller, req StoreRequest) (*StoreResult, error) {
	m, err := s.prepare(ctx, c, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return nil, err
	}

	superseded, skipped := s.supersede(ctx, c, m.ID, req.Supersedes)

	s.record(ctx, c, "store_memory", "memory", m.ID, map[string]any{
		"scope":      string(m.Scope),
		"scope_id":   m.ScopeID,
		"type":       string(m.Type),
		"supersedes": superseded,
	})
	s.log.Debug("memory stored", "id", m.ID, "scope", m.Scope, "type", m.Type, "superseded", len(superseded))

	return &StoreResult{
		ID:                m.ID,
		Tokens:            s.counter.Count(m.Content),
		Scope:             m.Scope,
		ScopeID:           m.ScopeID,
		Type:              m.Type,
		Category:          m.Category,
		Tags:              m.Tags,
		Message:           fmt.Sprintf("Memory stored (%s)", m.Label()),
		SupersededIDs:     superseded,
		SkippedSupersedes: skipped,
	}, nil
}

// prepare applies defaults, validation, the write check and suggestions.
func (s *Service) prepare(ctx context.Context, c *auth.Caller, req StoreRequest) (*model.Memory, error) {
	scope := model.ScopeProject
	if req.Scope != "" {
		var err error
		if scope, err = model.ParseScope(string(req.Scope)); err != nil {
			return nil, err
		}
	}
	typ := model.TypeWork
	if req.Type != "" {
		var err error
		if typ, err = model.ParseType(string(req.Type)); err != nil {
			return nil, err
		}
	}
	if err := model.ValidateContent(req.Content); err != nil {
		return nil, err
	}
	importance := 0.5
	if req.Importance != nil {
		importance = *req.Importance
	}
	if err := model.ValidateImportance(importance); err != nil {
		return nil, err
	}
	category, err := model.ParseCategory(string(req.Category))
	if err != nil {
		return nil, err
	}

	scopeID := strings.TrimSpace(req.ScopeID)
	if scope == model.ScopeTeam && scopeID == "" {
		scopeID = c.TeamID
	}
	if err := model.ValidateScope(scope, scopeID); err != nil {
		return nil, err
	}
	if !c.CanWrite(ctx, scope, scopeID) {
		return nil, denied(c, "no write access to %s", scopeLabel(scope, scopeID))
	}

	sug := suggest.Suggest(req.Content, req.Metadata.String(suggest.MetadataFileKey))
	if !category.IsSet() {
		category = sug.Category
	}
	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		summary = model.Summarize(req.Content)
	}

	now := s.now().UTC()
	expires := now.Add(s.ttl(typ))
	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(now) {
			return nil, model.Validationf("expires_at must be in the future")
		}
		expires = req.ExpiresAt.UTC()
	}

	return &model.Memory{
		Scope:      scope,
		ScopeID:    scopeID,
		Type:       typ,
		Content:    req.Content,
		Summary:    summary,
		Importance: importance,
		Category:   category,
		Tags:       model.NormalizeTags(req.Tags, sug.Tags),
		Metadata:   req.Metadata,
		CreatedBy:  c.ID,
		CreatedAt:  now,
		ExpiresAt:  &expires,
	}, nil
}

// supersede deprecates each distinct id in favour of newID, in order.
func (s *Service) supersede(ctx context.Context, c *auth.Caller, newID string, ids []string) ([]string, []Skip) {
	superseded := []string{}
	skipped := []Skip{}
	seen := map[string]bool{}

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		if id == newID {
			skipped = append(skipped, Skip{ID: id, Reason: model.ReasonNotFound})
			continue
		}
		old, err := s.repo.Get(ctx, id)
		if err != nil {
			skipped = append(skipped, Skip{ID: id, Reason: s.skipReason(id, err)})
			continue
		}
		if !c.CanSupersede(old) {
			skipped = append(skipped, Skip{ID: id, Reason: model.ReasonPermissionDenied})
			continue
		}
		if err := s.repo.SetDeprecated(ctx, id, true, newID); err != nil {
			skipped = append(skipped, Skip{ID: id, Reason: s.skipReason(id, err)})
			continue
		}
		superseded = append(superseded, id)
	}
	return superseded, skipped
}

func (s *Service) skipReason(id string, err error) model.Reason {
	if errors.Is(err, model.ErrNotFound) {
		return model.ReasonNotFound
	}
	s.log.Warn("supersede failed", "id", id, "error", err)
	return model.ReasonInternal
}

// Get returns one readable record and counts the read.
func (s *Service) Get(ctx context.Context, c *auth.Caller, id string) (*model.Entry, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.CanRead(ctx, m.Scope, m.ScopeID) {
		return nil, denied(c, "no read access to %s", scopeLabel(m.Scope, m.ScopeID))
	}
	e := []model.Entry{s.entry(*m)}
	if err := s.touch(ctx, e); err != nil {
		return nil, err
	}
	return &e[0], nil
}

// UpdateRequest patches the mutable fields of a record. Nil or empty fields
// are left alone. Tags replaces the whole set; otherwise AddTags then
// RemoveTags apply to the current set.
type UpdateRequest struct {
	Summary    *string        `json:"summary,omitempty"`
	Importance *float64       `json:"importance,omitempty"`
	Category   model.Category `json:"category,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	AddTags    []string       `json:"add_tags,omitempty"`
	RemoveTags []string       `json:"remove_tags,omitempty"`
	// Metadata is merged key by key over the existing map.
	Metadata model.Metadata `json:"metadata,omitempty"`
}

func (r UpdateRequest) empty() bool {
	return r.Summary == nil && r.Importance == nil && r.Category == "" &&
		r.Tags == nil && len(r.AddTags) == 0 && len(r.RemoveTags) == 0 && len(r.Metadata) == 0
}

// Update applies a patch to a record the caller owns.
func (s *Service) Update(ctx context.Context, c *auth.Caller, id string, patch UpdateRequest) (*model.Entry, error) {
	if patch.empty() {
		return nil, model.Validationf("no updates provided")
	}
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.CanModify(m) {
		return nil, model.PermissionDenied("cannot edit memory %s created by another user", id)
	}

	var changed []string
	if patch.Summary != nil {
		m.Summary = strings.TrimSpace(*patch.Summary)
		changed = append(changed, "summary")
	}
	if patch.Importance != nil {
		if err := model.ValidateImportance(*patch.Importance); err != nil {
			return nil, err
		}
		m.Importance = *patch.Importance
		changed = append(changed, "importance")
	}
	if patch.Category != "" {
		cat, err := model.ParseCategory(string(patch.Category))
		if err != nil {
			return nil, err
		}
		m.Category = cat
		changed = append(changed, "category")
	}
	switch {
	case patch.Tags != nil:
		m.Tags = model.NormalizeTags(patch.Tags)
		changed = append(changed, "tags")
	case len(patch.AddTags) > 0 || len(patch.RemoveTags) > 0:
		tags := m.Tags
		if len(patch.AddTags) > 0 {
			tags = model.NormalizeTags(tags, patch.AddTags)
		}
		if len(patch.RemoveTags) > 0 {
			tags = tags.Without(patch.RemoveTags)
		}
		m.Tags = tags
		changed = append(changed, "tags")
	}
	if len(patch.Metadata) > 0 {
		m.Metadata = m.Metadata.Merge(patch.Metadata)
		changed = append(changed, "metadata")
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	s.record(ctx, c, "update_memory", "memory", id, map[string]any{"fields": changed})
	e := s.entry(*m)
	return &e, nil
}

// Delete permanently removes a record the caller owns.
func (s *Service) Delete(ctx context.Context, c *auth.Caller, id string) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.CanModify(m) {
		return model.PermissionDenied("cannot delete memory %s created by another user", id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, c, "delete_memory", "memory", id, nil)
	return nil
}

func scopeLabel(scope model.Scope, scopeID string) string {
	if scopeID == "" {
		return string(scope)
	}
	return string(scope) + " " + scopeID
}
