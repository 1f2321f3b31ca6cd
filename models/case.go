package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CaseStatus is a state of the case lifecycle
type CaseStatus string

// Case status constants
const (
	CaseStatusPending        CaseStatus = "pending"
	CaseStatusActive         CaseStatus = "active"
	CaseStatusInProgress     CaseStatus = "in_progress"
	CaseStatusOnHold         CaseStatus = "on_hold"
	CaseStatusAwaitingClient CaseStatus = "awaiting_client"
	CaseStatusDisputed       CaseStatus = "disputed"
	CaseStatusOther          CaseStatus = "other" // carries CustomStatus
	CaseStatusCompleted      CaseStatus = "completed"
	CaseStatusArchived       CaseStatus = "archived"
	CaseStatusCancelled      CaseStatus = "cancelled"
)

// IsValid checks if the status is a known lifecycle state
func (s CaseStatus) IsValid() bool {
	switch s {
	case CaseStatusPending, CaseStatusActive, CaseStatusInProgress, CaseStatusOnHold,
		CaseStatusAwaitingClient, CaseStatusDisputed, CaseStatusOther,
		CaseStatusCompleted, CaseStatusArchived, CaseStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are accepted
func (s CaseStatus) IsTerminal() bool {
	return s == CaseStatusCompleted || s == CaseStatusArchived || s == CaseStatusCancelled
}

// AllowsLogging reports whether work may be logged against a case in this status
func (s CaseStatus) AllowsLogging() bool {
	return s.IsValid() && s != CaseStatusPending && !s.IsTerminal()
}

// Case represents a legal case
type Case struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title string `gorm:"not null" json:"title"`

	LawyerID string `gorm:"type:uuid;not null;index" json:"lawyer_id"`
	Lawyer   *User  `gorm:"foreignKey:LawyerID" json:"lawyer,omitempty"`
	ClientID string `gorm:"type:uuid;not null;index" json:"client_id"`
	Client   *User  `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	// Status is only written through the status state machine
	Status       CaseStatus `gorm:"not null;default:pending;index" json:"status"`
	CustomStatus *string    `json:"custom_status,omitempty"`

	Contract *ContractDocument `gorm:"foreignKey:CaseID" json:"contract,omitempty"`
}

// BeforeCreate hook to generate UUID and default the status
func (c *Case) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = CaseStatusPending
	}
	return nil
}

// TableName specifies the table name for Case model
func (Case) TableName() string {
	return "cases"
}

// IsParticipant checks if the user is the lawyer or the client of the case
func (c *Case) IsParticipant(userID string) bool {
	return c.LawyerID == userID || c.ClientID == userID
}

// DisplayStatus returns the custom label for "other", the status otherwise
func (c *Case) DisplayStatus() string {
	if c.Status == CaseStatusOther && c.CustomStatus != nil && *c.CustomStatus != "" {
		return *c.CustomStatus
	}
	return string(c.Status)
}
