// Package audit implements the audit trail core: the recorder that appends
// immutable entries for every mutating action in the school information
// system, and the query service that serves the trail back through
// role-scoped, paginated, aggregated reads.
//
// The audit trail is intentionally separate from application logs. Application
// logs are ephemeral debug output for on-call engineers; the trail is an
// immutable record with its own consumers (registrars, coordinators,
// compliance) and its own retention expectations. The trail never encodes
// workflow state by mutating rows: a revision request accumulates
// REVISION_REQUEST, REVISION_APPROVED, REVISION_IMPLEMENTED entries over its
// lifetime as separate rows, and the current state of the request lives with
// the business entity, not here.
package audit

import (
	"context"
	"log/slog"

	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/db/models"
	"github.com/scholaris/scholaris/internal/db/repositories"
	"github.com/scholaris/scholaris/internal/safego"
	"github.com/scholaris/scholaris/internal/telemetry"
)

// Sink is the boundary interface business-mutation handlers depend on. Handlers
// call Record and never inspect more than the boolean: a failed audit write
// must never abort the business operation that triggered it.
type Sink interface {
	Record(ctx context.Context, ev Event) bool
}

// Recorder is the single write path into the audit trail. All convenience
// wrappers route through Append so validation, IP capture, snapshot encoding,
// and metrics behave identically for every call site.
type Recorder struct {
	repo    *repositories.AuditRepository
	shipper Shipper // optional external destinations, may be nil
}

// NewRecorder creates a Recorder. shipper may be nil when no external audit
// destinations are configured.
func NewRecorder(repo *repositories.AuditRepository, shipper Shipper) *Recorder {
	return &Recorder{repo: repo, shipper: shipper}
}

// Append validates the event and persists exactly one new entry, returning its
// assigned id. Unlike Record it propagates failures; it is the right call for
// direct API ingestion where there is no enclosing business transaction to
// protect.
func (r *Recorder) Append(ctx context.Context, ev Event) (int64, error) {
	if err := ev.Validate(); err != nil {
		return 0, err
	}

	entry := ev.entry()
	id, err := r.repo.Insert(ctx, entry)
	if err != nil {
		return 0, &StorageError{Op: "append audit entry", Err: err}
	}

	telemetry.AuditEntriesWrittenTotal.WithLabelValues(entry.Category, entry.Action).Inc()
	r.ship(entry)
	return id, nil
}

// Record appends the event, swallowing any failure. Failures are logged to the
// operational channel and counted; the caller only learns success or not.
func (r *Recorder) Record(ctx context.Context, ev Event) bool {
	if _, err := r.Append(ctx, ev); err != nil {
		telemetry.AuditWriteFailuresTotal.Inc()
		slog.Error("audit write failed",
			"category", ev.Category,
			"action", ev.Action,
			"record_id", ev.RecordID,
			"actor_id", ev.Actor.ID,
			"error", err,
		)
		return false
	}
	return true
}

// ship forwards a persisted entry to external destinations without blocking
// the write path. Ship failures are counted, never propagated.
func (r *Recorder) ship(entry *models.AuditEntry) {
	if r.shipper == nil {
		return
	}
	shipped := *entry
	safego.Named("audit-ship", func() {
		ctx, cancel := context.WithTimeout(context.Background(), shipTimeout)
		defer cancel()
		if err := r.shipper.Ship(ctx, &shipped); err != nil {
			slog.Error("audit ship failed", "entry_id", shipped.ID, "error", err)
		}
	})
}

// ---------------------------------------------------------------------------
// Convenience wrappers. One per business scenario; each fixes category and
// action and builds the canned description. These document the call sites —
// they contain no logic of their own.
// ---------------------------------------------------------------------------

// UserCreated records the creation of a user account.
func (r *Recorder) UserCreated(ctx context.Context, actor auth.Actor, userID int64, username, role string) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryUser,
		RecordID:         userID,
		Action:           models.ActionInsert,
		Description:      "Created new user account: " + username + " with role " + role,
		NewValue:         models.KeyValues(map[string]any{"username": username, "role": role}),
		AffectedUserName: username,
		Actor:            actor,
	})
}

// UserUpdated records an edit to a user account, with before/after snapshots.
func (r *Recorder) UserUpdated(ctx context.Context, actor auth.Actor, userID int64, username string, oldValue, newValue *models.Snapshot) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryUser,
		RecordID:         userID,
		Action:           models.ActionUpdate,
		Description:      "Updated user account: " + username,
		OldValue:         oldValue,
		NewValue:         newValue,
		AffectedUserName: username,
		Actor:            actor,
	})
}

// UserStatusChanged records activation or deactivation of a user account.
func (r *Recorder) UserStatusChanged(ctx context.Context, actor auth.Actor, userID int64, username string, active bool) bool {
	verb := "Deactivated"
	if active {
		verb = "Activated"
	}
	return r.Record(ctx, Event{
		Category:         models.CategoryUser,
		RecordID:         userID,
		Action:           models.ActionStatusChange,
		Description:      verb + " user account: " + username,
		NewValue:         models.KeyValues(map[string]any{"active": active}),
		AffectedUserName: username,
		Actor:            actor,
	})
}

// PasswordReset records an administrative password reset. No snapshots: the
// trail must never carry credential material.
func (r *Recorder) PasswordReset(ctx context.Context, actor auth.Actor, userID int64, username string) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryUser,
		RecordID:         userID,
		Action:           models.ActionPasswordReset,
		Description:      "Reset password for user account: " + username,
		AffectedUserName: username,
		Actor:            actor,
	})
}

// EmployeeCreated records the creation of an employee record.
func (r *Recorder) EmployeeCreated(ctx context.Context, actor auth.Actor, employeeID int64, name string) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryEmployee,
		RecordID:         employeeID,
		Action:           models.ActionInsert,
		Description:      "Created employee record for " + name,
		AffectedUserName: name,
		Actor:            actor,
	})
}

// EmployeeUpdated records an edit to an employee record.
func (r *Recorder) EmployeeUpdated(ctx context.Context, actor auth.Actor, employeeID int64, name string, oldValue, newValue *models.Snapshot) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryEmployee,
		RecordID:         employeeID,
		Action:           models.ActionUpdate,
		Description:      "Updated employee record for " + name,
		OldValue:         oldValue,
		NewValue:         newValue,
		AffectedUserName: name,
		Actor:            actor,
	})
}

// EmployeeDeactivated records the deactivation of an employee record.
func (r *Recorder) EmployeeDeactivated(ctx context.Context, actor auth.Actor, employeeID int64, name string) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryEmployee,
		RecordID:         employeeID,
		Action:           models.ActionStatusChange,
		Description:      "Deactivated employee record for " + name,
		AffectedUserName: name,
		Actor:            actor,
	})
}

// EnrollmentCreated records a new student enrollment.
func (r *Recorder) EnrollmentCreated(ctx context.Context, actor auth.Actor, enrollmentID int64, studentName, schoolYear string) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryEnrollment,
		RecordID:         enrollmentID,
		Action:           models.ActionInsert,
		Description:      "Enrolled " + studentName + " for school year " + schoolYear,
		AffectedUserName: studentName,
		Actor:            actor,
	})
}

// EnrollmentStatusChanged records an enrollment status transition.
func (r *Recorder) EnrollmentStatusChanged(ctx context.Context, actor auth.Actor, enrollmentID int64, studentName, oldStatus, newStatus string) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryEnrollment,
		RecordID:         enrollmentID,
		Action:           models.ActionStatusChange,
		Description:      "Changed enrollment status of " + studentName + " from " + oldStatus + " to " + newStatus,
		OldValue:         models.KeyValues(map[string]any{"status": oldStatus}),
		NewValue:         models.KeyValues(map[string]any{"status": newStatus}),
		AffectedUserName: studentName,
		Actor:            actor,
	})
}

// SectionCreated records the creation of a class section.
func (r *Recorder) SectionCreated(ctx context.Context, actor auth.Actor, sectionID int64, name, gradeLevel string) bool {
	return r.Record(ctx, Event{
		Category:    models.CategorySection,
		RecordID:    sectionID,
		Action:      models.ActionInsert,
		Description: "Created section " + name + " (" + gradeLevel + ")",
		Actor:       actor,
	})
}

// StudentAssignedToSection records a student being placed into a section.
func (r *Recorder) StudentAssignedToSection(ctx context.Context, actor auth.Actor, assignmentID int64, studentName, sectionName string) bool {
	return r.Record(ctx, Event{
		Category:         models.CategorySectionAssignment,
		RecordID:         assignmentID,
		Action:           models.ActionInsert,
		Description:      "Assigned " + studentName + " to section " + sectionName,
		AffectedUserName: studentName,
		Actor:            actor,
	})
}

// StudentRecordUpdated records a direct edit to a student record as a
// per-field diff list.
func (r *Recorder) StudentRecordUpdated(ctx context.Context, actor auth.Actor, studentID int64, studentName string, diffs ...models.FieldDiff) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryStudent,
		RecordID:         studentID,
		Action:           models.ActionUpdate,
		Description:      "Updated student record of " + studentName,
		NewValue:         models.FieldDiffs(diffs...),
		AffectedUserName: studentName,
		Actor:            actor,
	})
}

// RevisionRequested records the opening of a student record revision request.
// Each later step of the workflow is a separate entry sharing the request id.
func (r *Recorder) RevisionRequested(ctx context.Context, actor auth.Actor, requestID int64, studentName string, diffs ...models.FieldDiff) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryStudentRevisionRequest,
		RecordID:         requestID,
		Action:           models.ActionRevisionRequest,
		Description:      "Requested revision of student record for " + studentName,
		NewValue:         models.FieldDiffs(diffs...),
		AffectedUserName: studentName,
		Actor:            actor,
	})
}

// RevisionApproved records approval of a revision request.
func (r *Recorder) RevisionApproved(ctx context.Context, actor auth.Actor, requestID int64, studentName string) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryStudentRevisionRequest,
		RecordID:         requestID,
		Action:           models.ActionRevisionApproved,
		Description:      "Approved revision request for " + studentName,
		AffectedUserName: studentName,
		Actor:            actor,
	})
}

// RevisionRejected records rejection of a revision request.
func (r *Recorder) RevisionRejected(ctx context.Context, actor auth.Actor, requestID int64, studentName, reason string) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryStudentRevisionRequest,
		RecordID:         requestID,
		Action:           models.ActionRevisionRejected,
		Description:      "Rejected revision request for " + studentName + ": " + reason,
		AffectedUserName: studentName,
		Actor:            actor,
	})
}

// RevisionImplemented records that an approved revision was applied to the
// student record.
func (r *Recorder) RevisionImplemented(ctx context.Context, actor auth.Actor, requestID int64, studentName string) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryStudentRevisionRequest,
		RecordID:         requestID,
		Action:           models.ActionRevisionImplemented,
		Description:      "Implemented approved revision for " + studentName,
		AffectedUserName: studentName,
		Actor:            actor,
	})
}

// DocumentSubmitted records a student document submission.
func (r *Recorder) DocumentSubmitted(ctx context.Context, actor auth.Actor, submissionID int64, studentName, documentType string) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryDocumentSubmission,
		RecordID:         submissionID,
		Action:           models.ActionDocumentSubmission,
		Description:      "Received " + documentType + " submission from " + studentName,
		AffectedUserName: studentName,
		Actor:            actor,
	})
}

// DocumentVerified records verification of a submitted document.
func (r *Recorder) DocumentVerified(ctx context.Context, actor auth.Actor, submissionID int64, studentName, documentType string) bool {
	return r.Record(ctx, Event{
		Category:         models.CategoryDocumentSubmission,
		RecordID:         submissionID,
		Action:           models.ActionDocumentVerification,
		Description:      "Verified " + documentType + " of " + studentName,
		AffectedUserName: studentName,
		Actor:            actor,
	})
}
