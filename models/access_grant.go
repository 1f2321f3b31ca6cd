package models

import "time"

// AccessGrant delegates time-bound read access on a case to an auditor
type AccessGrant struct {
	CaseID       string    `gorm:"type:uuid;primaryKey" json:"case_id"`
	AuditorEmail string    `gorm:"primaryKey" json:"auditor_email"`
	GrantedByID  string    `gorm:"type:uuid;not null" json:"granted_by"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (AccessGrant) TableName() string {
	return "access_grants"
}

// IsValidAt reports whether the grant authorizes reads at the given instant
func (g *AccessGrant) IsValidAt(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}
