package services

import (
	"errors"
	"time"

	"law_ledger_app_go/logger"
	"law_ledger_app_go/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MinGrantHours is the shortest grant that can be issued
const MinGrantHours = 1

// GrantAuditAccess creates or extends an auditor's read grant on a case.
// Re-granting overwrites the expiry with now + expiryHours.
func GrantAuditAccess(db *gorm.DB, p Principal, caseID, auditorEmail string, expiryHours int, now time.Time) (*models.AccessGrant, error) {
	email, err := NormalizeEmail(auditorEmail)
	if err != nil {
		return nil, err
	}

	c, err := LoadCase(db, caseID)
	if err != nil {
		return nil, err
	}
	if err := requireCaseLawyer(c, p); err != nil {
		return nil, err
	}

	if expiryHours < MinGrantHours {
		expiryHours = MinGrantHours
	}

	grant := &models.AccessGrant{
		CaseID:       caseID,
		AuditorEmail: email,
		GrantedByID:  p.UserID,
		ExpiresAt:    now.UTC().Add(time.Duration(expiryHours) * time.Hour),
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "case_id"}, {Name: "auditor_email"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at", "granted_by_id", "updated_at"}),
	}).Create(grant).Error
	if err != nil {
		return nil, err
	}

	logger.WithComponent("access").WithFields(logrus.Fields{
		"case_id":    caseID,
		"auditor":    email,
		"expires_at": grant.ExpiresAt,
	}).Info("Audit access granted")

	return grant, nil
}

// AuthorizeAuditor reports whether a grant exists and now < expires_at
func AuthorizeAuditor(db *gorm.DB, caseID, auditorEmail string, now time.Time) (bool, error) {
	email, err := NormalizeEmail(auditorEmail)
	if err != nil {
		return false, nil
	}

	var grant models.AccessGrant
	err = db.First(&grant, "case_id = ? AND auditor_email = ?", caseID, email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return grant.IsValidAt(now), nil
}

// RevokeAuditAccess ends a grant immediately by moving its expiry to now
func RevokeAuditAccess(db *gorm.DB, p Principal, caseID, auditorEmail string, now time.Time) error {
	email, err := NormalizeEmail(auditorEmail)
	if err != nil {
		return err
	}

	c, err := LoadCase(db, caseID)
	if err != nil {
		return err
	}
	if err := requireCaseLawyer(c, p); err != nil {
		return err
	}

	res := db.Model(&models.AccessGrant{}).
		Where("case_id = ? AND auditor_email = ?", caseID, email).
		Update("expires_at", now.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("grant for %s on case %s", email, caseID)
	}
	return nil
}

// GrantedCaseIDs lists the cases an auditor can currently read
func GrantedCaseIDs(db *gorm.DB, auditorEmail string, now time.Time) ([]string, error) {
	email, err := NormalizeEmail(auditorEmail)
	if err != nil {
		return nil, nil
	}

	var grants []models.AccessGrant
	if err := db.Where("auditor_email = ?", email).Find(&grants).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(grants))
	for _, g := range grants {
		if g.IsValidAt(now) {
			ids = append(ids, g.CaseID)
		}
	}
	return ids, nil
}
