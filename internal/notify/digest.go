package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/handoff/internal/escalation"
	"github.com/zulandar/handoff/internal/models"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// BuildFailedDigest summarizes every escalation stuck in post_failed, with
// the most recent recorded failure for each. Returns nil when there is
// nothing to report.
func BuildFailedDigest(db *gorm.DB) (*Event, error) {
	var failed []models.Escalation
	err := db.Where("status = ?", string(escalation.StatusPostFailed)).
		Order("created_at ASC").
		Find(&failed).Error
	if err != nil {
		return nil, fmt.Errorf("notify: failed digest: %w", err)
	}
	if len(failed) == 0 {
		return nil, nil
	}

	var bodyLines []string
	for _, esc := range failed {
		line := fmt.Sprintf("#%d %s — %s", esc.ID, esc.TicketRef, esc.ProblemSummary)
		history, err := escalation.AuditHistory(db, esc.ID)
		if err == nil {
			if detail := lastFailureDetail(history); detail != "" {
				line += fmt.Sprintf(" (last failure: %s)", detail)
			}
		}
		bodyLines = append(bodyLines, line)
	}

	return &Event{
		Title:    fmt.Sprintf("%d escalation(s) awaiting retry", len(failed)),
		Body:     strings.Join(bodyLines, "\n"),
		Severity: SeverityWarning,
		Fields: []Field{
			{Name: "Failed", Value: fmt.Sprintf("%d", len(failed)), Short: true},
		},
	}, nil
}

// Scheduler periodically builds the failed-post digest and fans it out.
type Scheduler struct {
	db        *gorm.DB
	schedule  cron.Schedule
	notifiers []Notifier
}

// NewScheduler parses a 5-field cron expression and returns a Scheduler.
func NewScheduler(db *gorm.DB, expr string, notifiers []Notifier) (*Scheduler, error) {
	if db == nil {
		return nil, fmt.Errorf("notify: scheduler: db is required")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("notify: scheduler: parse schedule %q: %w", expr, err)
	}
	return &Scheduler{db: db, schedule: sched, notifiers: notifiers}, nil
}

// Next returns the next fire time after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	return s.schedule.Next(now)
}

// Run fires the digest on schedule until the context is cancelled. A digest
// with no failed escalations is suppressed.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		wait := time.Until(s.schedule.Next(time.Now()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		evt, err := BuildFailedDigest(s.db)
		if err != nil {
			log.Printf("notify: digest: %v", err)
			continue
		}
		if evt == nil {
			continue
		}
		Fanout(ctx, s.notifiers, *evt)
	}
}
