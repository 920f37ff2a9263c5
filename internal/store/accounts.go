package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rcliao/team-memory/internal/model"
)

func (d *DB) CreateTeam(ctx context.Context, t *model.Team) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = d.now().UTC()
	}
	res, err := d.exec(ctx,
		`INSERT INTO teams (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		t.ID, t.Name, formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Conflictf("team already exists: %s", t.ID)
	}
	return nil
}

func (d *DB) ListTeams(ctx context.Context) ([]model.Team, error) {
	rows, err := d.query(ctx, `SELECT id, name, created_at FROM teams ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	teams := []model.Team{}
	for rows.Next() {
		var t model.Team
		var created string
		if err := rows.Scan(&t.ID, &t.Name, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = parseTime(created)
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (d *DB) CreateUser(ctx context.Context, u *model.User, keyHash string) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = d.now().UTC()
	}
	if u.Role == "" {
		u.Role = model.RoleMember
	}
	if u.TeamID != "" {
		var n int
		if err := d.queryRow(ctx, `SELECT COUNT(*) FROM teams WHERE id = ?`, u.TeamID).Scan(&n); err != nil {
			return fmt.Errorf("check team: %w", err)
		}
		if n == 0 {
			return model.NotFoundf("team not found: %s", u.TeamID)
		}
	}
	res, err := d.exec(ctx,
		`INSERT INTO users (id, team_id, api_key_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		u.ID, nullString(u.TeamID), keyHash, string(u.Role), formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Conflictf("user already exists: %s", u.ID)
	}
	return nil
}

func (d *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := d.query(ctx,
		`SELECT id, team_id, role, created_at, last_accessed_at FROM users ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (d *DB) SetUserKey(ctx context.Context, userID, keyHash string) error {
	res, err := d.exec(ctx, `UPDATE users SET api_key_hash = ? WHERE id = ?`, keyHash, userID)
	if err != nil {
		return fmt.Errorf("set user key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFoundf("user not found: %s", userID)
	}
	return nil
}

func (d *DB) UserByKeyHash(ctx context.Context, keyHash string) (*model.User, error) {
	row := d.queryRow(ctx,
		`SELECT id, team_id, role, created_at, last_accessed_at FROM users WHERE api_key_hash = ?`, keyHash)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.Unauthenticated("invalid API key")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	now := d.now().UTC()
	if _, err := d.exec(ctx, `UPDATE users SET last_accessed_at = ? WHERE id = ?`, formatTime(now), u.ID); err == nil {
		u.LastAccessedAt = &now
	}
	return &u, nil
}

func (d *DB) AddMember(ctx context.Context, m *model.Member) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = d.now().UTC()
	}
	if m.Role == "" {
		m.Role = model.RoleMember
	}
	var n int
	if err := d.queryRow(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, m.UserID).Scan(&n); err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if n == 0 {
		return model.NotFoundf("user not found: %s", m.UserID)
	}
	res, err := d.exec(ctx,
		`INSERT INTO project_members (project_id, user_id, role, created_at)
		 VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		m.ProjectID, m.UserID, string(m.Role), formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Conflictf("member already exists: %s in %s", m.UserID, m.ProjectID)
	}
	return nil
}

func (d *DB) ListMembers(ctx context.Context, projectID string) ([]model.Member, error) {
	rows, err := d.query(ctx, `
		SELECT pm.project_id, pm.user_id, pm.role, pm.created_at, u.team_id
		FROM project_members pm
		JOIN users u ON pm.user_id = u.id
		WHERE pm.project_id = ?
		ORDER BY pm.created_at, pm.user_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []model.Member{}
	for rows.Next() {
		var m model.Member
		var role, created string
		var team sql.NullString
		if err := rows.Scan(&m.ProjectID, &m.UserID, &role, &created, &team); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		m.CreatedAt = parseTime(created)
		m.TeamID = team.String
		members = append(members, m)
	}
	return members, rows.Err()
}

func (d *DB) ProjectRoles(ctx context.Context, userID string) (map[string]model.Role, error) {
	rows, err := d.query(ctx, `SELECT project_id, role FROM project_members WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("project roles: %w", err)
	}
	defer rows.Close()

	roles := map[string]model.Role{}
	for rows.Next() {
		var project, role string
		if err := rows.Scan(&project, &role); err != nil {
			return nil, err
		}
		roles[project] = model.Role(role)
	}
	return roles, rows.Err()
}

func scanUser(row scanner) (model.User, error) {
	var u model.User
	var team, last sql.NullString
	var role, created string
	if err := row.Scan(&u.ID, &team, &role, &created, &last); err != nil {
		return u, err
	}
	u.TeamID = team.String
	u.Role = model.Role(role)
	u.CreatedAt = parseTime(created)
	u.LastAccessedAt = timePtr(last)
	return u, nil
}
