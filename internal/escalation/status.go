// Package escalation provides escalation persistence and the append-only
// audit trail.
package escalation

// Status is the escalation lifecycle state. Exactly three values exist.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPosted     Status = "posted"
	StatusPostFailed Status = "post_failed"
)

// Valid reports whether s is one of the three permitted statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPosted, StatusPostFailed:
		return true
	}
	return false
}

// CanPost reports whether an escalation in this status may enter the
// posting pipeline. Only drafts and failed posts are eligible.
func (s Status) CanPost() bool {
	return s == StatusDraft || s == StatusPostFailed
}

// Editable reports whether field edits are allowed in this status.
// Posted escalations are frozen.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusPostFailed
}
