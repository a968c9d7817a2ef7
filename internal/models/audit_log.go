package models

import "time"

// AuditLogEntry is one immutable fact about an action taken against an
// escalation. Rows are append-only: they are never updated or deleted
// individually, and exist only while the parent escalation exists.
type AuditLogEntry struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	EscalationID int64   `gorm:"not null;index"`
	Action       string  `gorm:"size:32;not null"`
	Details      *string `gorm:"type:text"`
	CreatedAt    time.Time
}

// TableName keeps the original table name rather than GORM's pluralization.
func (AuditLogEntry) TableName() string { return "audit_log" }
