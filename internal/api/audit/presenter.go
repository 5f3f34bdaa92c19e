// presenter.go decorates audit entries with display metadata for reporting
// UIs: a human label and a color token per action. Unknown actions fall back
// to the literal action text with a neutral color, so new action kinds render
// without a code change here.
package audit

import "github.com/scholaris/scholaris/internal/db/models"

// Display color tokens. These are semantic names, not CSS values; the
// consuming UI maps them onto its palette.
const (
	colorGreen   = "green"
	colorBlue    = "blue"
	colorAmber   = "amber"
	colorRed     = "red"
	colorNeutral = "neutral"
)

var actionLabels = map[string]string{
	models.ActionInsert:               "Created",
	models.ActionUpdate:               "Updated",
	models.ActionDelete:               "Deleted",
	models.ActionStatusChange:         "Status Changed",
	models.ActionPasswordReset:        "Password Reset",
	models.ActionRevisionRequest:      "Revision Requested",
	models.ActionRevisionApproved:     "Revision Approved",
	models.ActionRevisionRejected:     "Revision Rejected",
	models.ActionRevisionImplemented:  "Revision Implemented",
	models.ActionDocumentSubmission:   "Document Submitted",
	models.ActionDocumentVerification: "Document Verified",
}

var actionColors = map[string]string{
	models.ActionInsert:               colorGreen,
	models.ActionUpdate:               colorBlue,
	models.ActionDelete:               colorRed,
	models.ActionStatusChange:         colorAmber,
	models.ActionPasswordReset:        colorAmber,
	models.ActionRevisionRequest:      colorBlue,
	models.ActionRevisionApproved:     colorGreen,
	models.ActionRevisionRejected:     colorRed,
	models.ActionRevisionImplemented:  colorGreen,
	models.ActionDocumentSubmission:   colorBlue,
	models.ActionDocumentVerification: colorGreen,
}

// ActionLabel returns the display label for an action. Unknown actions are
// labeled with their literal text.
func ActionLabel(action string) string {
	if label, ok := actionLabels[action]; ok {
		return label
	}
	return action
}

// ActionColor returns the display color token for an action.
func ActionColor(action string) string {
	if color, ok := actionColors[action]; ok {
		return color
	}
	return colorNeutral
}

// presentedEntry is an entry plus its display metadata. Embedding keeps the
// entry's own JSON fields flat in the response.
type presentedEntry struct {
	*models.AuditEntryView
	ActionLabel string `json:"action_label"`
	ActionColor string `json:"action_color"`
}

func presentEntry(entry *models.AuditEntryView) presentedEntry {
	return presentedEntry{
		AuditEntryView: entry,
		ActionLabel:    ActionLabel(entry.Action),
		ActionColor:    ActionColor(entry.Action),
	}
}

func presentEntries(entries []*models.AuditEntryView) []presentedEntry {
	out := make([]presentedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, presentEntry(e))
	}
	return out
}
