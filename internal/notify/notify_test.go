package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/handoff/internal/escalation"
	"github.com/zulandar/handoff/internal/models"
	"github.com/zulandar/handoff/internal/pipeline"
	"github.com/zulandar/handoff/internal/publisher"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Escalation{}, &models.AuditLogEntry{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestOutcomeEvent_Success(t *testing.T) {
	esc := &models.Escalation{ID: 7, TicketRef: "SUP-1234"}
	result := &pipeline.PostResult{
		EscalationID: 7,
		Comment:      pipeline.CommentOutcome{State: pipeline.OutcomeSuccess, RemoteID: "10042"},
		Attachments: []pipeline.AttachmentOutcome{
			{File: "a.png", State: pipeline.OutcomeSuccess},
		},
		FinalStatus: escalation.StatusPosted,
	}

	evt := OutcomeEvent(esc, result)
	if evt.Severity != SeverityInfo {
		t.Errorf("Severity = %q", evt.Severity)
	}
	if !strings.Contains(evt.Title, "#7 posted to SUP-1234") {
		t.Errorf("Title = %q", evt.Title)
	}
	if !strings.Contains(evt.Body, "remote id 10042") {
		t.Errorf("Body = %q", evt.Body)
	}
	if !strings.Contains(evt.Body, "1 sent") {
		t.Errorf("Body = %q", evt.Body)
	}
}

func TestOutcomeEvent_Failure(t *testing.T) {
	esc := &models.Escalation{ID: 9, TicketRef: "SUP-2"}
	result := &pipeline.PostResult{
		EscalationID: 9,
		Comment:      pipeline.CommentOutcome{State: pipeline.OutcomeSkipped},
		Attachments: []pipeline.AttachmentOutcome{
			{File: "b.log", State: pipeline.OutcomeFailure, Kind: publisher.KindRateLimited, Message: "rate limited"},
		},
		FinalStatus: escalation.StatusPostFailed,
	}

	evt := OutcomeEvent(esc, result)
	if evt.Severity != SeverityError {
		t.Errorf("Severity = %q", evt.Severity)
	}
	if !strings.Contains(evt.Title, "failed to post") {
		t.Errorf("Title = %q", evt.Title)
	}
	if !strings.Contains(evt.Body, "b.log failed: rate_limited") {
		t.Errorf("Body = %q", evt.Body)
	}
	if !strings.Contains(evt.Body, "already posted, skipped") {
		t.Errorf("Body = %q", evt.Body)
	}
}

func TestSlackNotifier_Send(t *testing.T) {
	var gotURL string
	var gotMsg *slackapi.WebhookMessage

	n, err := NewSlack("https://hooks.slack.com/services/T/B/x")
	if err != nil {
		t.Fatal(err)
	}
	n.post = func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error {
		gotURL = url
		gotMsg = msg
		return nil
	}

	evt := Event{
		Title:    "Escalation #7 posted",
		Body:     "Comment posted",
		Severity: SeverityInfo,
		Fields:   []Field{{Name: "Ticket", Value: "SUP-1", Short: true}},
	}
	if err := n.Send(context.Background(), evt); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotURL != "https://hooks.slack.com/services/T/B/x" {
		t.Errorf("url = %q", gotURL)
	}
	if len(gotMsg.Attachments) != 1 {
		t.Fatalf("attachments = %d", len(gotMsg.Attachments))
	}
	att := gotMsg.Attachments[0]
	if att.Title != evt.Title || att.Color != "good" {
		t.Errorf("attachment = %+v", att)
	}
	if len(att.Fields) != 1 || att.Fields[0].Title != "Ticket" {
		t.Errorf("fields = %+v", att.Fields)
	}
}

func TestSlackNotifier_RequiresURL(t *testing.T) {
	if _, err := NewSlack(""); err == nil {
		t.Error("expected error for empty webhook url")
	}
}

type fakeWebhookSession struct {
	gotID     string
	gotToken  string
	gotParams *discordgo.WebhookParams
	err       error
}

func (f *fakeWebhookSession) WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.gotID = webhookID
	f.gotToken = token
	f.gotParams = data
	return nil, f.err
}

func TestDiscordNotifier_Send(t *testing.T) {
	sess := &fakeWebhookSession{}
	n := NewDiscordWithSession("123", "tok", sess)

	evt := Event{
		Title:    "Escalation #7 failed to post",
		Body:     "Comment failed: network: connection refused",
		Severity: SeverityError,
		Fields:   []Field{{Name: "Status", Value: "post_failed", Short: true}},
	}
	if err := n.Send(context.Background(), evt); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if sess.gotID != "123" || sess.gotToken != "tok" {
		t.Errorf("webhook = %s/%s", sess.gotID, sess.gotToken)
	}
	if len(sess.gotParams.Embeds) != 1 {
		t.Fatalf("embeds = %d", len(sess.gotParams.Embeds))
	}
	embed := sess.gotParams.Embeds[0]
	if embed.Title != evt.Title || embed.Color != discordColorError {
		t.Errorf("embed = %+v", embed)
	}
}

func TestDiscordNotifier_SendError(t *testing.T) {
	sess := &fakeWebhookSession{err: errors.New("boom")}
	n := NewDiscordWithSession("123", "tok", sess)

	if err := n.Send(context.Background(), Event{Title: "t"}); err == nil {
		t.Error("expected error")
	}
}

type failingNotifier struct {
	name  string
	calls int
	err   error
}

func (f *failingNotifier) Name() string { return f.name }
func (f *failingNotifier) Send(ctx context.Context, evt Event) error {
	f.calls++
	return f.err
}

func TestFanout_ContinuesPastFailures(t *testing.T) {
	a := &failingNotifier{name: "a", err: errors.New("down")}
	b := &failingNotifier{name: "b"}

	Fanout(context.Background(), []Notifier{a, b}, Event{Title: "t"})

	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", a.calls, b.calls)
	}
}

func TestBuildFailedDigest(t *testing.T) {
	db := openTestDB(t)

	esc, err := escalation.Create(db, escalation.Input{
		TicketRef:      "SUP-3",
		ProblemSummary: "printer on fire",
	})
	if err != nil {
		t.Fatal(err)
	}
	escalation.AppendAudit(db, esc.ID, escalation.ActionPostFailed, "network: connection refused")
	if err := escalation.UpdateStatus(db, esc.ID, escalation.StatusPostFailed, nil, esc.UpdatedAt); err != nil {
		t.Fatal(err)
	}
	// A draft escalation must not appear in the digest.
	if _, err := escalation.Create(db, escalation.Input{TicketRef: "SUP-4", ProblemSummary: "other"}); err != nil {
		t.Fatal(err)
	}

	evt, err := BuildFailedDigest(db)
	if err != nil {
		t.Fatalf("BuildFailedDigest: %v", err)
	}
	if evt == nil {
		t.Fatal("expected digest event")
	}
	if !strings.Contains(evt.Title, "1 escalation") {
		t.Errorf("Title = %q", evt.Title)
	}
	if !strings.Contains(evt.Body, "SUP-3") || strings.Contains(evt.Body, "SUP-4") {
		t.Errorf("Body = %q", evt.Body)
	}
	if !strings.Contains(evt.Body, "last failure: network: connection refused") {
		t.Errorf("Body = %q", evt.Body)
	}
	if evt.Severity != SeverityWarning {
		t.Errorf("Severity = %q", evt.Severity)
	}
}

func TestBuildFailedDigest_SuppressedWhenEmpty(t *testing.T) {
	db := openTestDB(t)

	evt, err := BuildFailedDigest(db)
	if err != nil {
		t.Fatalf("BuildFailedDigest: %v", err)
	}
	if evt != nil {
		t.Errorf("evt = %+v, want nil", evt)
	}
}

func TestNewScheduler(t *testing.T) {
	db := openTestDB(t)

	s, err := NewScheduler(db, "0 9 * * *", nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	next := s.Next(now)
	if next.Hour() != 9 || next.Minute() != 0 {
		t.Errorf("Next = %v", next)
	}

	if _, err := NewScheduler(db, "not a cron expr", nil); err == nil {
		t.Error("expected parse error")
	}
	if _, err := NewScheduler(nil, "0 9 * * *", nil); err == nil {
		t.Error("expected db error")
	}
}
