package models

import (
	"time"

	"gorm.io/gorm"
)

// LogVersion is an immutable snapshot of a log entry's content
type LogVersion struct {
	LogID       string    `gorm:"type:uuid;primaryKey" json:"log_id"`
	Version     int       `gorm:"primaryKey;autoIncrement:false" json:"version"`
	CaseID      string    `gorm:"type:uuid;not null;index" json:"case_id"`
	Description string    `gorm:"type:text;not null" json:"description"`
	TimeSpent   int       `gorm:"not null" json:"time_spent"`
	EditedByID  string    `gorm:"type:uuid;not null" json:"edited_by"`
	EditedAt    time.Time `gorm:"not null" json:"edited_at"`
	ContentHash string    `gorm:"size:66;not null" json:"content_hash"`
}

// BeforeUpdate prevents modification of versions
func (v *LogVersion) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// BeforeDelete prevents deletion of versions
func (v *LogVersion) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// TableName specifies the table name for LogVersion model
func (LogVersion) TableName() string {
	return "log_versions"
}

// IsOriginal reports whether this is the first version of the log
func (v *LogVersion) IsOriginal() bool {
	return v.Version == 1
}
