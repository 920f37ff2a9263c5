package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rcliao/team-memory/internal/model"
)

// Stats returns per scope/type counts over a project's records and the
// global records.
func (d *DB) Stats(ctx context.Context, projectID string) ([]GroupStats, error) {
	rows, err := d.query(ctx, `
		SELECT scope, type, COUNT(*) AS cnt, AVG(importance) AS avg_importance
		FROM memories
		WHERE (scope_id = ? OR scope = 'global') AND `+notExpired+`
		GROUP BY scope, type
		ORDER BY scope, type`, projectID, d.timestamp())
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	stats := []GroupStats{}
	for rows.Next() {
		var g GroupStats
		var scope, typ string
		var avg sql.NullFloat64
		if err := rows.Scan(&scope, &typ, &g.Count, &avg); err != nil {
			return nil, err
		}
		g.Scope = model.Scope(scope)
		g.Type = model.Type(typ)
		g.AvgImportance = avg.Float64
		stats = append(stats, g)
	}
	return stats, rows.Err()
}

// Projects lists every project that has stored records, most recently
// active first.
func (d *DB) Projects(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := d.query(ctx, `
		SELECT scope_id,
		       COUNT(*) AS cnt,
		       SUM(CASE WHEN type = 'decision' THEN 1 ELSE 0 END) AS decisions,
		       MAX(created_at) AS last_activity
		FROM memories
		WHERE scope = 'project' AND scope_id IS NOT NULL
		GROUP BY scope_id
		ORDER BY last_activity DESC, scope_id`)
	if err != nil {
		return nil, fmt.Errorf("projects: %w", err)
	}
	defer rows.Close()

	projects := []ProjectSummary{}
	for rows.Next() {
		var p ProjectSummary
		var last sql.NullString
		if err := rows.Scan(&p.ProjectID, &p.MemoryCount, &p.DecisionCount, &last); err != nil {
			return nil, err
		}
		p.LastActivity = timePtr(last)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
