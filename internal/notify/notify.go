// Package notify delivers posting outcomes and scheduled digests to chat
// webhooks. Delivery is best-effort: a webhook failure is logged and never
// fails the posting run that triggered it.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/zulandar/handoff/internal/escalation"
	"github.com/zulandar/handoff/internal/models"
	"github.com/zulandar/handoff/internal/pipeline"
)

// Severity classifies an event for color-coding in chat clients.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Field is a short key/value pair rendered alongside an event.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Event is a formatted notification ready for delivery.
type Event struct {
	Title    string
	Body     string
	Severity Severity
	Fields   []Field
}

// Notifier delivers one event to a single destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, evt Event) error
}

// Fanout delivers an event to every notifier. Errors are logged, not
// returned.
func Fanout(ctx context.Context, notifiers []Notifier, evt Event) {
	for _, n := range notifiers {
		if err := n.Send(ctx, evt); err != nil {
			log.Printf("notify: %s: %v", n.Name(), err)
		}
	}
}

// OutcomeEvent formats a finished posting run as a notification.
func OutcomeEvent(esc *models.Escalation, result *pipeline.PostResult) Event {
	var bodyLines []string

	switch result.Comment.State {
	case pipeline.OutcomeSuccess:
		bodyLines = append(bodyLines, fmt.Sprintf("Comment posted (remote id %s)", result.Comment.RemoteID))
	case pipeline.OutcomeSkipped:
		bodyLines = append(bodyLines, "Comment already posted, skipped")
	case pipeline.OutcomeFailure:
		bodyLines = append(bodyLines, fmt.Sprintf("Comment failed: %s: %s", result.Comment.Kind, result.Comment.Message))
	}

	sent, skipped := 0, 0
	for _, a := range result.Attachments {
		switch a.State {
		case pipeline.OutcomeSuccess:
			sent++
		case pipeline.OutcomeSkipped:
			skipped++
		}
	}
	if len(result.Attachments) > 0 {
		line := fmt.Sprintf("Attachments: %d sent", sent)
		if skipped > 0 {
			line += fmt.Sprintf(", %d skipped", skipped)
		}
		bodyLines = append(bodyLines, line)
	}
	for _, a := range result.FailedAttachments() {
		bodyLines = append(bodyLines, fmt.Sprintf("  %s failed: %s: %s", a.File, a.Kind, a.Message))
	}

	evt := Event{
		Body: strings.Join(bodyLines, "\n"),
		Fields: []Field{
			{Name: "Ticket", Value: esc.TicketRef, Short: true},
			{Name: "Status", Value: string(result.FinalStatus), Short: true},
		},
	}
	if result.Succeeded() {
		evt.Title = fmt.Sprintf("Escalation #%d posted to %s", esc.ID, esc.TicketRef)
		evt.Severity = SeverityInfo
	} else {
		evt.Title = fmt.Sprintf("Escalation #%d failed to post to %s", esc.ID, esc.TicketRef)
		evt.Severity = SeverityError
	}
	return evt
}

// lastFailureDetail returns the detail of the most recent failure audit row
// for an escalation, or "" when none is recorded.
func lastFailureDetail(history []models.AuditLogEntry) string {
	for i := len(history) - 1; i >= 0; i-- {
		switch history[i].Action {
		case escalation.ActionPostFailed, escalation.ActionAttachmentFailed:
			if history[i].Details != nil {
				return *history[i].Details
			}
			return ""
		}
	}
	return ""
}
