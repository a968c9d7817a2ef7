package models

// Template is a reusable escalation skeleton: a named checklist plus the
// L2 team it usually routes to. Seeded from embedded JSON on db init.
type Template struct {
	ID             int64   `gorm:"primaryKey;autoIncrement"`
	Name           string  `gorm:"size:128;uniqueIndex;not null"`
	Description    string  `gorm:"type:text"`
	Category       string  `gorm:"size:64"`
	ChecklistItems string  `gorm:"type:json"` // JSON array of {text, checked}
	L2Team         *string `gorm:"size:128"`
}
