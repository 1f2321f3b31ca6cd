package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LogEntry is the current view of a billable work log; it always mirrors its highest LogVersion
type LogEntry struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID    string    `gorm:"type:uuid;not null;index" json:"case_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Description string `gorm:"type:text;not null" json:"description"`
	TimeSpent   int    `gorm:"not null" json:"time_spent"` // minutes
	Version     int    `gorm:"not null" json:"version"`
	IsEdited    bool   `gorm:"not null;default:false" json:"is_edited"`
	CreatedByID string `gorm:"type:uuid;not null" json:"created_by_id"`

	// AnchorStatus of the current version, filled on read
	AnchorStatus AnchorStatus `gorm:"-" json:"anchor_status,omitempty"`
}

// BeforeCreate hook to generate UUID
func (e *LogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for LogEntry model
func (LogEntry) TableName() string {
	return "log_entries"
}
