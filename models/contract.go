package models

import (
	"time"
)

// ContractDocument is the engagement contract both parties sign before work can be logged
type ContractDocument struct {
	CaseID    string    `gorm:"type:uuid;primarykey" json:"case_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Content         string     `gorm:"type:text;not null" json:"content"`
	LawyerSignature *string    `gorm:"type:text" json:"lawyer_signature,omitempty"`
	LawyerSignedAt  *time.Time `json:"lawyer_signed_at,omitempty"`
	ClientSignature *string    `gorm:"type:text" json:"client_signature,omitempty"`
	ClientSignedAt  *time.Time `json:"client_signed_at,omitempty"`
}

// TableName specifies the table name for ContractDocument model
func (ContractDocument) TableName() string {
	return "contract_documents"
}

// IsFullySigned checks if both parties have signed
func (c *ContractDocument) IsFullySigned() bool {
	return c.LawyerSignature != nil && *c.LawyerSignature != "" &&
		c.ClientSignature != nil && *c.ClientSignature != ""
}
