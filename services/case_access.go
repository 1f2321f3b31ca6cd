package services

import (
	"errors"
	"time"

	"law_ledger_app_go/models"

	"gorm.io/gorm"
)

// Principal is the authenticated caller, derived from the bearer credential of each request
type Principal struct {
	UserID string
	Email  string
	Role   models.Role
}

// IsLawyer checks the role claim
func (p Principal) IsLawyer() bool { return p.Role == models.RoleLawyer }

// IsClient checks the role claim
func (p Principal) IsClient() bool { return p.Role == models.RoleClient }

// IsAuditor checks the role claim
func (p Principal) IsAuditor() bool { return p.Role == models.RoleAuditor }

// LoadCase fetches a case by id
func LoadCase(db *gorm.DB, caseID string) (*models.Case, error) {
	var c models.Case
	err := db.First(&c, "id = ?", caseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("case %s", caseID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// requireCaseLawyer allows only the lawyer who owns the case
func requireCaseLawyer(c *models.Case, p Principal) error {
	if !p.IsLawyer() || c.LawyerID != p.UserID {
		return unauthorized("only the case lawyer may perform this action")
	}
	return nil
}

// AuthorizeCaseRead loads the case and checks that the caller is a participant
// or an auditor holding an unexpired grant
func AuthorizeCaseRead(db *gorm.DB, p Principal, caseID string, now time.Time) (*models.Case, error) {
	c, err := LoadCase(db, caseID)
	if err != nil {
		return nil, err
	}

	switch p.Role {
	case models.RoleLawyer:
		if c.LawyerID == p.UserID {
			return c, nil
		}
	case models.RoleClient:
		if c.ClientID == p.UserID {
			return c, nil
		}
	case models.RoleAuditor:
		ok, err := AuthorizeAuditor(db, caseID, p.Email, now)
		if err != nil {
			return nil, err
		}
		if ok {
			return c, nil
		}
		return nil, unauthorized("no valid audit grant for this case")
	}
	return nil, unauthorized("not a participant of this case")
}
