package escalation

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/handoff/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the escalation does not exist.
	ErrNotFound = errors.New("escalation not found")
	// ErrConflict is returned when a status update lost an optimistic race:
	// the record changed underneath the caller since it was loaded.
	ErrConflict = errors.New("escalation changed since load")
)

// Input holds the editable fields of an escalation.
type Input struct {
	TicketRef      string
	TemplateID     *int64
	ProblemSummary string
	Checklist      []models.ChecklistItem
	CurrentStatus  string
	NextSteps      string
	LLMSummary     *string
	LLMConfidence  *string
}

// Summary is the listing projection of an escalation.
type Summary struct {
	ID             int64
	TicketRef      string
	ProblemSummary string
	Status         Status
	CreatedAt      time.Time
}

// Create persists a new escalation in draft status and records a "created"
// audit row.
func Create(db *gorm.DB, in Input) (*models.Escalation, error) {
	if in.TicketRef == "" {
		return nil, fmt.Errorf("escalation: ticket ref is required")
	}

	checklist, err := json.Marshal(in.Checklist)
	if err != nil {
		return nil, fmt.Errorf("escalation: marshal checklist: %w", err)
	}

	esc := models.Escalation{
		TicketRef:      in.TicketRef,
		TemplateID:     in.TemplateID,
		ProblemSummary: in.ProblemSummary,
		Checklist:      string(checklist),
		CurrentStatus:  in.CurrentStatus,
		NextSteps:      in.NextSteps,
		LLMSummary:     in.LLMSummary,
		LLMConfidence:  in.LLMConfidence,
		Status:         string(StatusDraft),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&esc).Error; err != nil {
			return fmt.Errorf("create: %w", err)
		}
		details, _ := json.Marshal(map[string]interface{}{
			"ticket_ref":  in.TicketRef,
			"template_id": in.TemplateID,
		})
		return appendAudit(tx, esc.ID, ActionCreated, string(details))
	})
	if err != nil {
		return nil, fmt.Errorf("escalation: %w", err)
	}
	return &esc, nil
}

// Get retrieves an escalation by id.
func Get(db *gorm.DB, id int64) (*models.Escalation, error) {
	var esc models.Escalation
	if err := db.First(&esc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("escalation: %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("escalation: get %d: %w", id, err)
	}
	return &esc, nil
}

// List returns escalation summaries, newest first.
func List(db *gorm.DB) ([]Summary, error) {
	var escs []models.Escalation
	if err := db.Order("created_at DESC, id DESC").Find(&escs).Error; err != nil {
		return nil, fmt.Errorf("escalation: list: %w", err)
	}
	out := make([]Summary, len(escs))
	for i, e := range escs {
		out[i] = Summary{
			ID:             e.ID,
			TicketRef:      e.TicketRef,
			ProblemSummary: e.ProblemSummary,
			Status:         Status(e.Status),
			CreatedAt:      e.CreatedAt,
		}
	}
	return out, nil
}

// Update replaces the editable fields of an escalation. Status is never
// touched here; only the posting pipeline writes status. Posted escalations
// are frozen.
func Update(db *gorm.DB, id int64, in Input) error {
	esc, err := Get(db, id)
	if err != nil {
		return err
	}
	if !Status(esc.Status).Editable() {
		return fmt.Errorf("escalation: %d is %s and cannot be edited", id, esc.Status)
	}
	if in.TicketRef == "" {
		return fmt.Errorf("escalation: ticket ref is required")
	}

	checklist, err := json.Marshal(in.Checklist)
	if err != nil {
		return fmt.Errorf("escalation: marshal checklist: %w", err)
	}

	updates := map[string]interface{}{
		"ticket_ref":      in.TicketRef,
		"template_id":     in.TemplateID,
		"problem_summary": in.ProblemSummary,
		"checklist":       string(checklist),
		"current_status":  in.CurrentStatus,
		"next_steps":      in.NextSteps,
		"llm_summary":     in.LLMSummary,
		"llm_confidence":  in.LLMConfidence,
		"updated_at":      time.Now(),
	}
	if err := db.Model(&models.Escalation{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("escalation: update %d: %w", id, err)
	}
	return nil
}

// Delete removes an escalation and all of its audit rows.
func Delete(db *gorm.DB, id int64) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		// Explicit audit delete first, so the behavior holds even on a
		// connection without foreign keys enabled.
		if err := tx.Where("escalation_id = ?", id).Delete(&models.AuditLogEntry{}).Error; err != nil {
			return fmt.Errorf("delete audit rows: %w", err)
		}
		result := tx.Delete(&models.Escalation{}, id)
		if result.Error != nil {
			return fmt.Errorf("delete: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%d: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("escalation: %w", err)
	}
	return nil
}

// UpdateStatus transitions an escalation's status with an optimistic check:
// loadedAt must match the record's current updated_at or ErrConflict is
// returned, so a stale pipeline run cannot overwrite a newer edit.
//
// postedAt must be set exactly when newStatus is StatusPosted; the
// posted_at column is cleared on any other status.
func UpdateStatus(db *gorm.DB, id int64, newStatus Status, postedAt *time.Time, loadedAt time.Time) error {
	if !newStatus.Valid() {
		return fmt.Errorf("escalation: invalid status %q", newStatus)
	}
	if (newStatus == StatusPosted) != (postedAt != nil) {
		return fmt.Errorf("escalation: posted_at must be set exactly when status is %s", StatusPosted)
	}

	updates := map[string]interface{}{
		"status":     string(newStatus),
		"posted_at":  postedAt,
		"updated_at": time.Now(),
	}
	result := db.Model(&models.Escalation{}).
		Where("id = ? AND updated_at = ?", id, loadedAt).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("escalation: update status %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.Escalation{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("escalation: update status %d: %w", id, err)
		}
		if count == 0 {
			return fmt.Errorf("escalation: %d: %w", id, ErrNotFound)
		}
		return fmt.Errorf("escalation: %d: %w", id, ErrConflict)
	}
	return nil
}

// UpdateMarkdown caches the rendered markdown actually sent to the remote
// system, for audit and debugging.
func UpdateMarkdown(db *gorm.DB, id int64, markdown string) error {
	result := db.Model(&models.Escalation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"markdown_output": markdown,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("escalation: update markdown %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("escalation: %d: %w", id, ErrNotFound)
	}
	return nil
}

// ParseChecklist decodes the JSON checklist column.
func ParseChecklist(raw string) []models.ChecklistItem {
	var items []models.ChecklistItem
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}
