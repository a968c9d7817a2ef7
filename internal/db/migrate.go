package db

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/zulandar/handoff/internal/models"
	"gorm.io/gorm"
)

//go:embed templates/*.json
var templatesFS embed.FS

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Escalation{},
		&models.AuditLogEntry{},
		&models.Template{},
		&models.RemoteConfig{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// seedTemplate mirrors the embedded JSON template files.
type seedTemplate struct {
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	Category       string                 `json:"category"`
	ChecklistItems []models.ChecklistItem `json:"checklist_items"`
	L2Team         *string                `json:"l2_team"`
}

// SeedTemplates inserts the embedded starter templates when the templates
// table is empty. A non-empty table is left untouched.
func SeedTemplates(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Template{}).Count(&count).Error; err != nil {
		return fmt.Errorf("db: count templates: %w", err)
	}
	if count > 0 {
		return nil
	}

	entries, err := templatesFS.ReadDir("templates")
	if err != nil {
		return fmt.Errorf("db: read embedded templates: %w", err)
	}

	for _, entry := range entries {
		data, err := templatesFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return fmt.Errorf("db: read template %s: %w", entry.Name(), err)
		}

		var st seedTemplate
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("db: parse template %s: %w", entry.Name(), err)
		}

		checklist, err := json.Marshal(st.ChecklistItems)
		if err != nil {
			return fmt.Errorf("db: marshal checklist for %q: %w", st.Name, err)
		}

		tmpl := models.Template{
			Name:           st.Name,
			Description:    st.Description,
			Category:       st.Category,
			ChecklistItems: string(checklist),
			L2Team:         st.L2Team,
		}
		if err := db.Create(&tmpl).Error; err != nil {
			return fmt.Errorf("db: seed template %q: %w", st.Name, err)
		}
	}
	return nil
}
