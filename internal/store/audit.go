package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rcliao/team-memory/internal/model"
)

func (d *DB) InsertAudit(ctx context.Context, e *model.AuditEntry) error {
	if e.ID == "" {
		e.ID = d.newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = d.now().UTC()
	}
	var details sql.NullString
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}
	_, err := d.exec(ctx,
		`INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, details, ip_address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, nullString(e.UserID), e.Action, nullString(e.ResourceType), nullString(e.ResourceID),
		details, nullString(e.IPAddress), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func (d *DB) AuditLogs(ctx context.Context, f AuditFilter) ([]model.AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	where := []string{"1=1"}
	var args []any
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	args = append(args, limit)

	rows, err := d.query(ctx,
		`SELECT id, user_id, action, resource_type, resource_id, details, ip_address, created_at
		 FROM audit_logs WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY created_at DESC, id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("audit logs: %w", err)
	}
	defer rows.Close()

	logs := []model.AuditEntry{}
	for rows.Next() {
		var e model.AuditEntry
		var user, rtype, rid, details, ip sql.NullString
		var created string
		if err := rows.Scan(&e.ID, &user, &e.Action, &rtype, &rid, &details, &ip, &created); err != nil {
			return nil, err
		}
		e.UserID = user.String
		e.ResourceType = rtype.String
		e.ResourceID = rid.String
		e.IPAddress = ip.String
		e.CreatedAt = parseTime(created)
		if details.Valid {
			json.Unmarshal([]byte(details.String), &e.Details)
		}
		logs = append(logs, e)
	}
	return logs, rows.Err()
}
