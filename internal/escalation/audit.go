package escalation

import (
	"fmt"

	"github.com/zulandar/handoff/internal/models"
	"gorm.io/gorm"
)

// Audit action labels. The posting pipeline writes only the six labels
// from ActionPostAttempted through ActionStatusChanged; ActionCreated is
// written once by Create.
const (
	ActionCreated             = "created"
	ActionPostAttempted       = "post_attempted"
	ActionPostSucceeded       = "post_succeeded"
	ActionPostFailed          = "post_failed"
	ActionAttachmentAttempted = "attachment_attempted"
	ActionAttachmentSucceeded = "attachment_succeeded"
	ActionAttachmentFailed    = "attachment_failed"
	ActionStatusChanged       = "status_changed"
)

// AppendAudit appends one immutable audit row for an escalation. An empty
// details string is stored as NULL. Rows are never updated or deleted
// individually; they go away only with their parent escalation.
func AppendAudit(db *gorm.DB, escalationID int64, action, details string) error {
	if err := appendAudit(db, escalationID, action, details); err != nil {
		return fmt.Errorf("escalation: %w", err)
	}
	return nil
}

func appendAudit(db *gorm.DB, escalationID int64, action, details string) error {
	entry := models.AuditLogEntry{
		EscalationID: escalationID,
		Action:       action,
	}
	if details != "" {
		entry.Details = &details
	}
	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("append audit %s for %d: %w", action, escalationID, err)
	}
	return nil
}

// AuditHistory returns all audit rows for an escalation in append order.
func AuditHistory(db *gorm.DB, escalationID int64) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	if err := db.Where("escalation_id = ?", escalationID).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("escalation: audit history for %d: %w", escalationID, err)
	}
	return entries, nil
}

// HasAudit reports whether any audit row with the given action exists for
// the escalation.
func HasAudit(db *gorm.DB, escalationID int64, action string) (bool, error) {
	var count int64
	err := db.Model(&models.AuditLogEntry{}).
		Where("escalation_id = ? AND action = ?", escalationID, action).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("escalation: audit lookup %s for %d: %w", action, escalationID, err)
	}
	return count > 0, nil
}

// HasAuditDetail reports whether an audit row with the given action and
// exact details value exists. Used by retry to skip attachments that
// already have a recorded success.
func HasAuditDetail(db *gorm.DB, escalationID int64, action, details string) (bool, error) {
	var count int64
	err := db.Model(&models.AuditLogEntry{}).
		Where("escalation_id = ? AND action = ? AND details = ?", escalationID, action, details).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("escalation: audit lookup %s for %d: %w", action, escalationID, err)
	}
	return count > 0, nil
}
