// Package models - audit_entry.go defines the AuditEntry model, the immutable record
// of a single state-changing action in the school information system, along with the
// known action and category vocabularies.
package models

import "time"

// Audit actions. Stored as plain text so new kinds can be introduced without a
// schema change; consumers must render unknown actions as-is with a neutral style.
const (
	ActionInsert               = "INSERT"
	ActionUpdate               = "UPDATE"
	ActionDelete               = "DELETE"
	ActionStatusChange         = "STATUS_CHANGE"
	ActionPasswordReset        = "PASSWORD_RESET"
	ActionRevisionRequest      = "REVISION_REQUEST"
	ActionRevisionApproved     = "REVISION_APPROVED"
	ActionRevisionRejected     = "REVISION_REJECTED"
	ActionRevisionImplemented  = "REVISION_IMPLEMENTED"
	ActionDocumentSubmission   = "DOCUMENT_SUBMISSION"
	ActionDocumentVerification = "DOCUMENT_VERIFICATION"
)

// Audit categories identify which business entity type an entry concerns.
// The set is fixed but extensible; values are stored as text.
const (
	CategoryUser                   = "user"
	CategoryEmployee               = "employee"
	CategoryStudent                = "student"
	CategoryEnrollment             = "enrollment"
	CategorySection                = "section"
	CategorySectionAssignment      = "sectionassignment"
	CategoryStrand                 = "strand"
	CategoryStudentRevisionRequest = "StudentRevisionRequest"
	CategoryDocumentSubmission     = "documentsubmission"
)

// AuditEntry is one immutable audit trail record. Rows are append-only: no code
// path updates or deletes an entry once it has been persisted.
type AuditEntry struct {
	ID               int64     `db:"id" json:"id"`
	Category         string    `db:"category" json:"category"`
	RecordID         int64     `db:"record_id" json:"record_id"`
	Action           string    `db:"action" json:"action"`
	Description      string    `db:"description" json:"description"`
	OldValue         *Snapshot `db:"old_value" json:"old_value,omitempty"`
	NewValue         *Snapshot `db:"new_value" json:"new_value,omitempty"`
	ChangedBy        *int64    `db:"changed_by" json:"changed_by,omitempty"`
	UserRole         string    `db:"user_role" json:"user_role"`
	AffectedUserName *string   `db:"affected_user_name" json:"affected_user_name,omitempty"`
	IPAddress        string    `db:"ip_address" json:"ip_address"`
	ChangedAt        time.Time `db:"changed_at" json:"changed_at"`
}

// AuditEntryView is an AuditEntry enriched with the acting user's display name
// and role as they are NOW, resolved by a live join against the user directory.
// UserRole on the embedded entry is the role captured at write time; the two can
// legitimately differ when a user's role changed after the action, and both are
// surfaced so consumers never have to guess which one they are looking at.
type AuditEntryView struct {
	AuditEntry
	ActorName        *string `db:"actor_name" json:"actor_name,omitempty"`
	ActorCurrentRole *string `db:"actor_current_role" json:"actor_current_role,omitempty"`
}

// PeriodCounts holds entry counts for calendar-day, 7-day, and 30-day windows
// relative to query time.
type PeriodCounts struct {
	Today int64 `json:"today"`
	Week  int64 `json:"week"`
	Month int64 `json:"month"`
}

// AuditStats is the aggregate view over the (role-scoped) audit trail.
type AuditStats struct {
	TotalCount         int64            `json:"total_count"`
	DistinctCategories int64            `json:"distinct_categories"`
	DistinctActors     int64            `json:"distinct_actors"`
	CountsByAction     map[string]int64 `json:"counts_by_action"`
	CountsByPeriod     PeriodCounts     `json:"counts_by_period"`
}

// CategoryActivity is one row of the activity-by-category breakdown, ordered by
// count descending in query results.
type CategoryActivity struct {
	Category       string    `db:"category" json:"category"`
	Count          int64     `db:"count" json:"count"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
}
