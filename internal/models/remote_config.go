package models

import "time"

// RemoteConfig stores the single row of remote-system settings. The API
// token itself is never stored here; it lives in the OS keyring keyed by
// AccountEmail and is fetched at the moment a publisher call needs it.
type RemoteConfig struct {
	ID           uint   `gorm:"primaryKey"`
	Backend      string `gorm:"size:16;default:jira"`
	BaseURL      string `gorm:"size:256;not null"`
	AccountEmail string `gorm:"size:128;not null"`
	LLMEndpoint  string `gorm:"size:256"`
	LLMModel     string `gorm:"size:64"`
	UpdatedAt    time.Time
}

// TableName keeps the original table name rather than GORM's pluralization.
func (RemoteConfig) TableName() string { return "remote_config" }
