// user.go defines the minimal user directory model backing actor resolution.
// Full account management (students, employees, enrollment) lives elsewhere in
// the application; this model covers what the audit subsystem needs: identity,
// display name, and current role.
package models

import "time"

// User is one account in the user directory.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         string    `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
