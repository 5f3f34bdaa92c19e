// report_repository.go implements ReportRepository, the aggregate queries
// behind the audit stats endpoint: overall counts, per-action counts, rolling
// period windows, and the activity-by-category breakdown. All aggregates
// respect the caller's role scope.
package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/scholaris/scholaris/internal/db/models"
)

// ReportRepository handles aggregate reporting queries over the audit trail.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// scopeClause renders the role-scope restriction for aggregate queries.
// allowed nil means unrestricted.
func scopeClause(allowed []string) (string, []interface{}) {
	if allowed == nil {
		return ``, nil
	}
	return ` WHERE category = ANY($1)`, []interface{}{pq.Array(allowed)}
}

// Overview returns the aggregate statistics for the scoped audit trail. An
// empty store yields zeroed counts and an empty action map, never an error.
func (r *ReportRepository) Overview(ctx context.Context, allowed []string) (*models.AuditStats, error) {
	where, args := scopeClause(allowed)

	var row struct {
		Total              int64 `db:"total"`
		DistinctCategories int64 `db:"distinct_categories"`
		DistinctActors     int64 `db:"distinct_actors"`
		Today              int64 `db:"today"`
		Week               int64 `db:"week"`
		Month              int64 `db:"month"`
	}

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(DISTINCT category) AS distinct_categories,
			COUNT(DISTINCT changed_by) AS distinct_actors,
			COUNT(*) FILTER (WHERE changed_at >= date_trunc('day', now())) AS today,
			COUNT(*) FILTER (WHERE changed_at >= now() - interval '7 days') AS week,
			COUNT(*) FILTER (WHERE changed_at >= now() - interval '30 days') AS month
		FROM audit_trail` + where

	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, err
	}

	stats := &models.AuditStats{
		TotalCount:         row.Total,
		DistinctCategories: row.DistinctCategories,
		DistinctActors:     row.DistinctActors,
		CountsByAction:     map[string]int64{},
		CountsByPeriod: models.PeriodCounts{
			Today: row.Today,
			Week:  row.Week,
			Month: row.Month,
		},
	}

	actionQuery := `SELECT action, COUNT(*) AS count FROM audit_trail` + where + ` GROUP BY action`
	rows, err := r.db.QueryxContext(ctx, actionQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var action string
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		stats.CountsByAction[action] = count
	}

	return stats, rows.Err()
}

// ActivityByCategory returns per-category entry counts with the most recent
// activity timestamp, ordered by count descending.
func (r *ReportRepository) ActivityByCategory(ctx context.Context, allowed []string) ([]models.CategoryActivity, error) {
	where, args := scopeClause(allowed)

	query := `
		SELECT category, COUNT(*) AS count, MAX(changed_at) AS last_activity_at
		FROM audit_trail` + where + `
		GROUP BY category
		ORDER BY count DESC, category ASC`

	activity := make([]models.CategoryActivity, 0)
	if err := r.db.SelectContext(ctx, &activity, query, args...); err != nil {
		return nil, err
	}
	return activity, nil
}
