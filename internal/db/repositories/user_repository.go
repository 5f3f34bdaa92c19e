// user_repository.go implements UserRepository, the lookups against the user
// directory used by the auth middleware and the admin bootstrap path.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/scholaris/scholaris/internal/db/models"
)

// UserRepository handles user directory database operations.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, full_name, role, password_hash, active, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.FullName,
		&u.Role,
		&u.PasswordHash,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by id. Returns (nil, nil) when not found.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByUsername retrieves a user by username. Returns (nil, nil) when not found.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user and returns its assigned id.
func (r *UserRepository) Create(ctx context.Context, u *models.User) (int64, error) {
	now := time.Now()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, full_name, role, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, u.Username, u.FullName, u.Role, u.PasswordHash, u.Active, now, now).Scan(&u.ID)
	if err != nil {
		return 0, err
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return u.ID, nil
}

// Count returns the total number of users in the directory.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
