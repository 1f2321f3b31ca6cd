package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CaseStatusChange is an append-only record of one state machine transition
type CaseStatusChange struct {
	ID        string     `gorm:"type:uuid;primarykey" json:"id"`
	CaseID    string     `gorm:"type:uuid;not null;index:idx_status_change_case" json:"case_id"`
	OldStatus CaseStatus `gorm:"not null" json:"old_status"`
	NewStatus CaseStatus `gorm:"not null" json:"new_status"`
	// CustomStatus is the label when NewStatus is "other"
	CustomStatus *string   `json:"custom_status,omitempty"`
	Reason       string    `gorm:"type:text;not null" json:"reason"`
	ActorID      string    `gorm:"not null" json:"actor"` // user id, or "system" for automatic transitions
	ChangedAt    time.Time `gorm:"not null;index:idx_status_change_case" json:"changed_at"`
}

// BeforeCreate hook to generate UUID
func (c *CaseStatusChange) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ChangedAt.IsZero() {
		c.ChangedAt = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate prevents modification of history
func (c *CaseStatusChange) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// BeforeDelete prevents deletion of history
func (c *CaseStatusChange) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// TableName specifies the table name
func (CaseStatusChange) TableName() string {
	return "case_status_changes"
}
