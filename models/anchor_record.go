package models

import (
	"time"

	"gorm.io/gorm"
)

// AnchorStatus tracks the ledger submission of one log version
type AnchorStatus string

const (
	AnchorStatusPending   AnchorStatus = "pending"
	AnchorStatusConfirmed AnchorStatus = "confirmed"
	AnchorStatusFailed    AnchorStatus = "failed"
)

// AnchorRecord maps (log_id, version) to its ledger commitment.
// Once confirmed the row is never written again.
type AnchorRecord struct {
	LogID     string    `gorm:"type:uuid;primaryKey" json:"log_id"`
	Version   int       `gorm:"primaryKey;autoIncrement:false" json:"version"`
	CaseID    string    `gorm:"type:uuid;not null;index" json:"case_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContentHash     string       `gorm:"size:66;not null" json:"content_hash"` // hash submitted
	OnChainHash     string       `gorm:"size:66" json:"on_chain_hash,omitempty"`
	LedgerReference string       `json:"ledger_reference,omitempty"`
	Status          AnchorStatus `gorm:"not null;default:pending;index" json:"status"`
	Attempts        int          `gorm:"not null;default:0" json:"attempts"`
	LastError       string       `gorm:"type:text" json:"last_error,omitempty"`
	ConfirmedAt     *time.Time   `json:"confirmed_at,omitempty"`
}

// BeforeDelete prevents deletion of anchor records
func (a *AnchorRecord) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// TableName specifies the table name for AnchorRecord model
func (AnchorRecord) TableName() string {
	return "anchor_records"
}
