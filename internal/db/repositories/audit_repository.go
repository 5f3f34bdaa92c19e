// audit_repository.go implements AuditRepository, providing database access for
// writing and retrieving audit trail entries with filtered, role-scoped,
// paginated queries. The table is append-only: there is no update or delete
// here, by design.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/scholaris/scholaris/internal/db/models"
)

// AuditRepository handles audit trail database operations.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying the audit trail. All set filters
// are ANDed together.
type AuditFilters struct {
	Category *string
	Action   *string
	ActorID  *int64
	// From is an inclusive lower bound on changed_at.
	From *time.Time
	// Until is an exclusive upper bound on changed_at. Callers wanting an
	// inclusive date granularity pass the start of the following day.
	Until *time.Time
	// AllowedCategories is the caller's role scope. nil means unrestricted; an
	// empty non-nil slice matches nothing.
	AllowedCategories []string
}

const entrySelectColumns = `
		a.id, a.category, a.record_id, a.action, a.description,
		a.old_value, a.new_value, a.changed_by, a.user_role,
		a.affected_user_name, a.ip_address, a.changed_at,
		u.full_name AS actor_name, u.role AS actor_current_role`

// Insert persists a new audit entry and returns its assigned id. ChangedAt is
// stamped here if the caller left it zero; the id comes from the database
// sequence so it strictly reflects insertion order.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) (int64, error) {
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now()
	}

	oldJSON, err := models.EncodeSnapshot(entry.OldValue)
	if err != nil {
		return 0, fmt.Errorf("encoding old value snapshot: %w", err)
	}
	newJSON, err := models.EncodeSnapshot(entry.NewValue)
	if err != nil {
		return 0, fmt.Errorf("encoding new value snapshot: %w", err)
	}

	query := `
		INSERT INTO audit_trail (category, record_id, action, description, old_value, new_value,
		                         changed_by, user_role, affected_user_name, ip_address, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err = r.db.QueryRowContext(ctx, query,
		entry.Category,
		entry.RecordID,
		entry.Action,
		entry.Description,
		oldJSON,
		newJSON,
		entry.ChangedBy,
		entry.UserRole,
		entry.AffectedUserName,
		entry.IPAddress,
		entry.ChangedAt,
	).Scan(&entry.ID)
	if err != nil {
		return 0, err
	}

	return entry.ID, nil
}

// List retrieves audit entries matching the filters, newest first (changed_at
// descending, ties broken by id descending), along with the total number of
// matching rows ignoring pagination. Each entry is enriched with the actor's
// current display name and role from the user directory.
func (r *AuditRepository) List(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditEntryView, int, error) {
	where, args := buildAuditWhere(filters)

	countQuery := `SELECT COUNT(*) FROM audit_trail a` + where

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT` + entrySelectColumns + `
		FROM audit_trail a
		LEFT JOIN users u ON u.id = a.changed_by` +
		where +
		fmt.Sprintf(` ORDER BY a.changed_at DESC, a.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]*models.AuditEntryView, 0)
	for rows.Next() {
		entry, err := scanEntryView(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}

	return entries, total, rows.Err()
}

// Get retrieves a single audit entry by id. Returns (nil, nil) when no entry
// with that id exists.
func (r *AuditRepository) Get(ctx context.Context, id int64) (*models.AuditEntryView, error) {
	query := `SELECT` + entrySelectColumns + `
		FROM audit_trail a
		LEFT JOIN users u ON u.id = a.changed_by
		WHERE a.id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)
	entry, err := scanEntryView(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// buildAuditWhere renders the WHERE clause and arguments for the given filters.
// The role-scope clause composes with an explicit category filter: when the
// explicit category lies outside the allowlist the two conjuncts are disjoint
// and the query legitimately matches nothing.
func buildAuditWhere(filters AuditFilters) (string, []interface{}) {
	where := ` WHERE 1=1`
	args := make([]interface{}, 0)

	next := func() int { return len(args) + 1 }

	if filters.Category != nil {
		where += fmt.Sprintf(` AND a.category = $%d`, next())
		args = append(args, *filters.Category)
	}
	if filters.Action != nil {
		where += fmt.Sprintf(` AND a.action = $%d`, next())
		args = append(args, *filters.Action)
	}
	if filters.ActorID != nil {
		where += fmt.Sprintf(` AND a.changed_by = $%d`, next())
		args = append(args, *filters.ActorID)
	}
	if filters.From != nil {
		where += fmt.Sprintf(` AND a.changed_at >= $%d`, next())
		args = append(args, *filters.From)
	}
	if filters.Until != nil {
		where += fmt.Sprintf(` AND a.changed_at < $%d`, next())
		args = append(args, *filters.Until)
	}
	if filters.AllowedCategories != nil {
		where += fmt.Sprintf(` AND a.category = ANY($%d)`, next())
		args = append(args, pq.Array(filters.AllowedCategories))
	}

	return where, args
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanEntryView.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntryView(row rowScanner) (*models.AuditEntryView, error) {
	entry := &models.AuditEntryView{}
	var oldJSON, newJSON []byte

	err := row.Scan(
		&entry.ID,
		&entry.Category,
		&entry.RecordID,
		&entry.Action,
		&entry.Description,
		&oldJSON,
		&newJSON,
		&entry.ChangedBy,
		&entry.UserRole,
		&entry.AffectedUserName,
		&entry.IPAddress,
		&entry.ChangedAt,
		&entry.ActorName,
		&entry.ActorCurrentRole,
	)
	if err != nil {
		return nil, err
	}

	if entry.OldValue, err = models.DecodeSnapshot(oldJSON); err != nil {
		return nil, fmt.Errorf("decoding old value of entry %d: %w", entry.ID, err)
	}
	if entry.NewValue, err = models.DecodeSnapshot(newJSON); err != nil {
		return nil, fmt.Errorf("decoding new value of entry %d: %w", entry.ID, err)
	}

	return entry, nil
}
