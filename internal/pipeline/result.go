package pipeline

import (
	"github.com/zulandar/handoff/internal/escalation"
	"github.com/zulandar/handoff/internal/publisher"
)

// OutcomeState is the per-step result of a publish sub-action.
type OutcomeState string

const (
	// OutcomeSuccess means the remote call completed this run.
	OutcomeSuccess OutcomeState = "success"
	// OutcomeSkipped means a prior run already completed this step, so it
	// was not re-sent.
	OutcomeSkipped OutcomeState = "skipped"
	// OutcomeFailure means the remote call failed this run.
	OutcomeFailure OutcomeState = "failure"
)

// CommentOutcome describes what happened to the ticket comment.
type CommentOutcome struct {
	State    OutcomeState
	RemoteID string         // set on success
	Kind     publisher.Kind // set on failure
	Message  string         // set on failure
}

// AttachmentOutcome describes what happened to one attachment.
type AttachmentOutcome struct {
	File    string // base name of the local file
	State   OutcomeState
	Kind    publisher.Kind // set on failure
	Message string         // set on failure
}

// PostResult is the structured outcome of one pipeline run. The caller can
// render a specific message from it ("3 of 5 attachments failed: rate
// limited — retry").
type PostResult struct {
	EscalationID int64
	Comment      CommentOutcome
	Attachments  []AttachmentOutcome
	FinalStatus  escalation.Status
}

// FailedAttachments returns the attachments that failed this run.
func (r *PostResult) FailedAttachments() []AttachmentOutcome {
	var failed []AttachmentOutcome
	for _, a := range r.Attachments {
		if a.State == OutcomeFailure {
			failed = append(failed, a)
		}
	}
	return failed
}

// Succeeded reports whether the run reached posted status.
func (r *PostResult) Succeeded() bool {
	return r.FinalStatus == escalation.StatusPosted
}
