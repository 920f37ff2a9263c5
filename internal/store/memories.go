package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rcliao/team-memory/internal/model"
)

const memoryColumns = `id, scope, scope_id, type, content, summary, importance, category, tags, metadata,
	created_by, created_at, expires_at, access_count, last_accessed_at, deprecated, superseded_by`

const notExpired = "(expires_at IS NULL OR expires_at > ?)"

func (d *DB) Insert(ctx context.Context, m *model.Memory) error {
	if m.ID == "" {
		m.ID = d.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = d.now()
	}
	m.CreatedAt = m.CreatedAt.UTC()

	args, err := memoryArgs(m)
	if err != nil {
		return err
	}
	_, err = d.exec(ctx,
		`INSERT INTO memories (`+memoryColumns+`)
		 VALUES (`+placeholders(17)+`)`, args...)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (d *DB) Upsert(ctx context.Context, m *model.Memory) error {
	if m.ID == "" {
		return d.Insert(ctx, m)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = d.now()
	}
	args, err := memoryArgs(m)
	if err != nil {
		return err
	}
	_, err = d.exec(ctx,
		`INSERT INTO memories (`+memoryColumns+`)
		 VALUES (`+placeholders(17)+`)
		 ON CONFLICT (id) DO UPDATE SET
		   scope = excluded.scope, scope_id = excluded.scope_id, type = excluded.type,
		   content = excluded.content, summary = excluded.summary, importance = excluded.importance,
		   category = excluded.category, tags = excluded.tags, metadata = excluded.metadata,
		   created_by = excluded.created_by, created_at = excluded.created_at,
		   expires_at = excluded.expires_at, deprecated = excluded.deprecated,
		   superseded_by = excluded.superseded_by`, args...)
	if err != nil {
		return fmt.Errorf("upsert memory: %w", err)
	}
	return nil
}

func memoryArgs(m *model.Memory) ([]any, error) {
	tags := m.Tags
	if tags == nil {
		tags = model.Tags{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	meta := m.Metadata
	if meta == nil {
		meta = model.Metadata{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return []any{
		m.ID, string(m.Scope), nullString(m.ScopeID), string(m.Type), m.Content, m.Summary,
		m.Importance, nullString(string(m.Category)), string(tagsJSON), string(metaJSON),
		nullString(m.CreatedBy), formatTime(m.CreatedAt), nullTime(m.ExpiresAt),
		m.AccessCount, nullTime(m.LastAccessedAt), boolInt(m.Deprecated), nullString(m.SupersededBy),
	}, nil
}

func (d *DB) Get(ctx context.Context, id string) (*model.Memory, error) {
	return scanOne(id, d.queryRow(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ? AND `+notExpired,
		id, d.timestamp()))
}

func (d *DB) Lookup(ctx context.Context, id string) (*model.Memory, error) {
	return scanOne(id, d.queryRow(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id))
}

func scanOne(id string, row *sql.Row) (*model.Memory, error) {
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &m, nil
}

func (d *DB) Query(ctx context.Context, f Filter) ([]model.Memory, error) {
	var where []string
	var args []any

	if !f.IncludeExpired {
		where = append(where, notExpired)
		args = append(args, d.timestamp())
	}
	if !f.IncludeDeprecated {
		where = append(where, "deprecated = 0")
	}
	if f.Scope != "" {
		where = append(where, "scope = ?")
		args = append(args, string(f.Scope))
	}
	if f.ScopeID != "" {
		where = append(where, "scope_id = ?")
		args = append(args, f.ScopeID)
	}
	if len(f.Types) > 0 {
		where = append(where, "type IN ("+placeholders(len(f.Types))+")")
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	if f.Category.IsSet() {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if tags := model.NormalizeTags(f.AnyTags); len(tags) > 0 {
		var or []string
		for _, tag := range tags {
			or = append(or, "tags LIKE ?")
			args = append(args, `%"`+tag+`"%`)
		}
		where = append(where, "("+strings.Join(or, " OR ")+")")
	}

	query := `SELECT ` + memoryColumns + ` FROM memories`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	switch f.Order {
	case OrderRecent:
		query += ` ORDER BY created_at DESC, id DESC`
	default:
		query += ` ORDER BY importance DESC, created_at DESC, id DESC`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := d.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	memories := []model.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (d *DB) Update(ctx context.Context, m *model.Memory) error {
	tags := m.Tags
	if tags == nil {
		tags = model.Tags{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	meta := m.Metadata
	if meta == nil {
		meta = model.Metadata{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	res, err := d.exec(ctx,
		`UPDATE memories SET summary = ?, importance = ?, category = ?, tags = ?, metadata = ?
		 WHERE id = ?`,
		m.Summary, m.Importance, nullString(string(m.Category)), string(tagsJSON), string(metaJSON), m.ID)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	return requireRow(res, m.ID)
}

func (d *DB) SetDeprecated(ctx context.Context, id string, deprecated bool, supersededBy string) error {
	res, err := d.exec(ctx,
		`UPDATE memories SET deprecated = ?, superseded_by = ? WHERE id = ?`,
		boolInt(deprecated), nullString(supersededBy), id)
	if err != nil {
		return fmt.Errorf("set deprecated: %w", err)
	}
	return requireRow(res, id)
}

func (d *DB) Delete(ctx context.Context, id string) error {
	res, err := d.exec(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return requireRow(res, id)
}

func (d *DB) Touch(ctx context.Context, ids []string) error {
	seen := map[string]bool{}
	args := []any{d.timestamp()}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			args = append(args, id)
		}
	}
	if len(seen) == 0 {
		return nil
	}
	_, err := d.exec(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ?
		 WHERE id IN (`+placeholders(len(seen))+`)`, args...)
	if err != nil {
		return fmt.Errorf("touch memories: %w", err)
	}
	return nil
}

func (d *DB) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := d.exec(ctx,
		`DELETE FROM memories WHERE expires_at IS NOT NULL AND expires_at <= ?`, d.timestamp())
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return res.RowsAffected()
}

func (d *DB) TagCounts(ctx context.Context, scopeID string) ([]TagCount, error) {
	rows, err := d.query(ctx,
		`SELECT tags FROM memories WHERE scope_id = ? AND `+notExpired, scopeID, d.timestamp())
	if err != nil {
		return nil, fmt.Errorf("tag counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, fmt.Errorf("tag counts: decode tags: %w", err)
		}
		for _, t := range tags {
			counts[t]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TagCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TagCount{Tag: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NotFound(id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var scope, typ, tagsJSON, metaJSON, createdAt string
	var scopeID, category, createdBy, expiresAt, lastAccessed, supersededBy sql.NullString
	var deprecated int

	err := row.Scan(
		&m.ID, &scope, &scopeID, &typ, &m.Content, &m.Summary, &m.Importance,
		&category, &tagsJSON, &metaJSON, &createdBy, &createdAt, &expiresAt,
		&m.AccessCount, &lastAccessed, &deprecated, &supersededBy,
	)
	if err != nil {
		return m, err
	}

	m.Scope = model.Scope(scope)
	m.ScopeID = scopeID.String
	m.Type = model.Type(typ)
	m.Category = model.Category(category.String)
	m.CreatedBy = createdBy.String
	m.CreatedAt = parseTime(createdAt)
	m.ExpiresAt = timePtr(expiresAt)
	m.LastAccessedAt = timePtr(lastAccessed)
	m.Deprecated = deprecated != 0
	m.SupersededBy = supersededBy.String

	m.Tags = model.Tags{}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return m, fmt.Errorf("decode tags of %s: %w", m.ID, err)
	}
	m.Metadata = model.Metadata{}
	if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
		return m, fmt.Errorf("decode metadata of %s: %w", m.ID, err)
	}

	return m, nil
}
