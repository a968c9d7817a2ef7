package models

import "time"

// Escalation is the core handoff record: a structured summary of a support
// issue destined to be published as a ticket comment plus attachments.
type Escalation struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	TicketRef      string `gorm:"size:64;not null;index"`
	TemplateID     *int64
	ProblemSummary string  `gorm:"type:text"`
	Checklist      string  `gorm:"type:json"` // JSON array of {text, checked}
	CurrentStatus  string  `gorm:"type:text"`
	NextSteps      string  `gorm:"type:text"`
	LLMSummary     *string `gorm:"type:text"`
	LLMConfidence  *string `gorm:"size:16"`
	MarkdownOutput *string `gorm:"type:text"`
	Status         string  `gorm:"size:16;default:draft;index"`
	PostedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	AuditLog []AuditLogEntry `gorm:"foreignKey:EscalationID;constraint:OnDelete:CASCADE"`
}

// ChecklistItem is one entry in an escalation's checklist, stored as JSON.
type ChecklistItem struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}
