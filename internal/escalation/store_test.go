package escalation

import (
	"errors"
	"testing"
	"time"

	"github.com/zulandar/handoff/internal/models"
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

func testInput(ticketRef string) Input {
	return Input{
		TicketRef:      ticketRef,
		ProblemSummary: "VPN drops every 10 minutes",
		Checklist: []models.ChecklistItem{
			{Text: "Collected VPN client logs", Checked: true},
			{Text: "Checked DNS resolution", Checked: false},
		},
		CurrentStatus: "Reproduced on two machines",
		NextSteps:     "Needs packet capture from the network team",
	}
}

func TestCreate(t *testing.T) {
	db := openTestDB(t)

	esc, err := Create(db, testInput("SUP-100"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if esc.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}
	if esc.Status != string(StatusDraft) {
		t.Errorf("Status = %q, want %q", esc.Status, StatusDraft)
	}
	if esc.PostedAt != nil {
		t.Error("PostedAt should be nil for a draft")
	}

	// A "created" audit row is written alongside.
	history, err := AuditHistory(db, esc.ID)
	if err != nil {
		t.Fatalf("AuditHistory: %v", err)
	}
	if len(history) != 1 || history[0].Action != ActionCreated {
		t.Errorf("history = %+v, want single created row", history)
	}
}

func TestCreate_RequiresTicketRef(t *testing.T) {
	db := openTestDB(t)
	if _, err := Create(db, Input{}); err == nil {
		t.Fatal("expected error for missing ticket ref")
	}
}

func TestGet_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := Get(db, 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	first, _ := Create(db, testInput("SUP-1"))
	second, _ := Create(db, testInput("SUP-2"))

	summaries, err := List(db)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len = %d, want 2", len(summaries))
	}
	if summaries[0].ID != second.ID || summaries[1].ID != first.ID {
		t.Errorf("order = [%d %d], want [%d %d]", summaries[0].ID, summaries[1].ID, second.ID, first.ID)
	}
}

func TestUpdate_DoesNotTouchStatus(t *testing.T) {
	db := openTestDB(t)
	esc, _ := Create(db, testInput("SUP-100"))

	in := testInput("SUP-100")
	in.NextSteps = "Escalate to network ops"
	if err := Update(db, esc.ID, in); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := Get(db, esc.ID)
	if got.NextSteps != "Escalate to network ops" {
		t.Errorf("NextSteps = %q", got.NextSteps)
	}
	if got.Status != string(StatusDraft) {
		t.Errorf("Status = %q, want draft unchanged", got.Status)
	}
}

func TestUpdate_RejectsPosted(t *testing.T) {
	db := openTestDB(t)
	esc, _ := Create(db, testInput("SUP-100"))

	now := time.Now()
	if err := UpdateStatus(db, esc.ID, StatusPosted, &now, esc.UpdatedAt); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := Update(db, esc.ID, testInput("SUP-100")); err == nil {
		t.Fatal("expected error editing a posted escalation")
	}
}

func TestDelete_CascadesAuditRows(t *testing.T) {
	db := openTestDB(t)
	keep, _ := Create(db, testInput("SUP-1"))
	doomed, _ := Create(db, testInput("SUP-2"))
	AppendAudit(db, doomed.ID, ActionPostAttempted, "")
	AppendAudit(db, keep.ID, ActionPostAttempted, "")

	if err := Delete(db, doomed.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := Get(db, doomed.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted escalation still loadable: %v", err)
	}

	var count int64
	db.Model(&models.AuditLogEntry{}).Where("escalation_id = ?", doomed.ID).Count(&count)
	if count != 0 {
		t.Errorf("audit rows for deleted escalation = %d, want 0", count)
	}

	// The other escalation's rows are untouched.
	history, _ := AuditHistory(db, keep.ID)
	if len(history) != 2 {
		t.Errorf("kept escalation history = %d rows, want 2", len(history))
	}
}

func TestDelete_NotFound(t *testing.T) {
	db := openTestDB(t)
	if err := Delete(db, 9); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatus_SetsPostedAt(t *testing.T) {
	db := openTestDB(t)
	esc, _ := Create(db, testInput("SUP-100"))

	now := time.Now()
	if err := UpdateStatus(db, esc.ID, StatusPosted, &now, esc.UpdatedAt); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, _ := Get(db, esc.ID)
	if got.Status != string(StatusPosted) {
		t.Errorf("Status = %q, want posted", got.Status)
	}
	if got.PostedAt == nil {
		t.Error("PostedAt not set")
	}
}

func TestUpdateStatus_PostedAtInvariant(t *testing.T) {
	db := openTestDB(t)
	esc, _ := Create(db, testInput("SUP-100"))

	// posted without a timestamp is rejected.
	if err := UpdateStatus(db, esc.ID, StatusPosted, nil, esc.UpdatedAt); err == nil {
		t.Error("expected error: posted without posted_at")
	}
	// non-posted with a timestamp is rejected.
	now := time.Now()
	if err := UpdateStatus(db, esc.ID, StatusPostFailed, &now, esc.UpdatedAt); err == nil {
		t.Error("expected error: post_failed with posted_at")
	}
}

func TestUpdateStatus_ClearsPostedAtOnFailure(t *testing.T) {
	db := openTestDB(t)
	esc, _ := Create(db, testInput("SUP-100"))

	now := time.Now()
	if err := UpdateStatus(db, esc.ID, StatusPosted, &now, esc.UpdatedAt); err != nil {
		t.Fatalf("UpdateStatus posted: %v", err)
	}
	reloaded, _ := Get(db, esc.ID)
	if err := UpdateStatus(db, esc.ID, StatusPostFailed, nil, reloaded.UpdatedAt); err != nil {
		t.Fatalf("UpdateStatus post_failed: %v", err)
	}

	got, _ := Get(db, esc.ID)
	if got.PostedAt != nil {
		t.Error("PostedAt should be cleared when status leaves posted")
	}
}

func TestUpdateStatus_Conflict(t *testing.T) {
	db := openTestDB(t)
	esc, _ := Create(db, testInput("SUP-100"))
	staleLoadedAt := esc.UpdatedAt

	// A later edit bumps updated_at.
	time.Sleep(2 * time.Millisecond)
	if err := Update(db, esc.ID, testInput("SUP-100")); err != nil {
		t.Fatalf("Update: %v", err)
	}

	err := UpdateStatus(db, esc.ID, StatusPostFailed, nil, staleLoadedAt)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}

	// Status untouched by the conflicted write.
	got, _ := Get(db, esc.ID)
	if got.Status != string(StatusDraft) {
		t.Errorf("Status = %q, want draft", got.Status)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	db := openTestDB(t)
	err := UpdateStatus(db, 77, StatusPostFailed, nil, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateMarkdown(t *testing.T) {
	db := openTestDB(t)
	esc, _ := Create(db, testInput("SUP-100"))

	if err := UpdateMarkdown(db, esc.ID, "# Escalation\nbody"); err != nil {
		t.Fatalf("UpdateMarkdown: %v", err)
	}
	got, _ := Get(db, esc.ID)
	if got.MarkdownOutput == nil || *got.MarkdownOutput != "# Escalation\nbody" {
		t.Errorf("MarkdownOutput = %v", got.MarkdownOutput)
	}

	if err := UpdateMarkdown(db, 99, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestParseChecklist(t *testing.T) {
	items := ParseChecklist(`[{"text":"a","checked":true},{"text":"b","checked":false}]`)
	if len(items) != 2 || !items[0].Checked || items[1].Checked {
		t.Errorf("items = %+v", items)
	}
	if got := ParseChecklist(""); got != nil {
		t.Errorf("empty input = %+v, want nil", got)
	}
	if got := ParseChecklist("not json"); got != nil {
		t.Errorf("bad input = %+v, want nil", got)
	}
}

func TestStatus_Predicates(t *testing.T) {
	tests := []struct {
		status  Status
		valid   bool
		canPost bool
	}{
		{StatusDraft, true, true},
		{StatusPosted, true, false},
		{StatusPostFailed, true, true},
		{Status("posted_with_errors"), false, false},
		{Status(""), false, false},
	}
	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.valid {
			t.Errorf("%q.Valid() = %v, want %v", tt.status, got, tt.valid)
		}
		if got := tt.status.CanPost(); got != tt.canPost {
			t.Errorf("%q.CanPost() = %v, want %v", tt.status, got, tt.canPost)
		}
	}
}
