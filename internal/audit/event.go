// event.go defines the Event a business mutation hands to the recorder, and
// its validation rules.
package audit

import (
	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/db/models"
)

// Event describes one state-changing business action to be recorded. Category,
// RecordID, Action, and the actor id are required; everything else is optional.
type Event struct {
	Category    string
	RecordID    int64
	Action      string
	Description string
	// OldValue and NewValue are independently optional point-in-time
	// snapshots. The caller declares the snapshot shape at construction time
	// (key/value mapping or ChangedFields diff list).
	OldValue *models.Snapshot
	NewValue *models.Snapshot
	// AffectedUserName is the display name of the person the action was
	// about, which may differ from the actor.
	AffectedUserName string
	// Actor identifies who performed the action. Actor.Role is captured onto
	// the entry as historical metadata; query-time scoping always uses the
	// caller's current role instead.
	Actor auth.Actor
}

// Validate checks the required fields, returning a ValidationError naming the
// first missing one.
func (e *Event) Validate() error {
	if e.Category == "" {
		return &ValidationError{Field: "category"}
	}
	if e.RecordID <= 0 {
		return &ValidationError{Field: "recordId"}
	}
	if e.Action == "" {
		return &ValidationError{Field: "action"}
	}
	if e.Actor.ID <= 0 {
		return &ValidationError{Field: "actorId"}
	}
	return nil
}

// entry materializes the event into a persistable audit entry.
func (e *Event) entry() *models.AuditEntry {
	actorID := e.Actor.ID
	entry := &models.AuditEntry{
		Category:    e.Category,
		RecordID:    e.RecordID,
		Action:      e.Action,
		Description: e.Description,
		OldValue:    e.OldValue,
		NewValue:    e.NewValue,
		ChangedBy:   &actorID,
		UserRole:    string(e.Actor.Role),
		IPAddress:   e.Actor.IPAddress,
	}
	if entry.IPAddress == "" {
		entry.IPAddress = "Unknown"
	}
	if e.AffectedUserName != "" {
		name := e.AffectedUserName
		entry.AffectedUserName = &name
	}
	return entry
}
