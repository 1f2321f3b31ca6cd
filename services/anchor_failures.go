package services

import (
	"context"

	"law_ledger_app_go/models"

	"gorm.io/gorm"
)

// FailedAnchorsFor lists the failed anchor records on the lawyer's cases, newest first
func FailedAnchorsFor(db *gorm.DB, p Principal) ([]models.AnchorRecord, error) {
	if !p.IsLawyer() {
		return nil, unauthorized("only lawyers can list failed anchors")
	}

	records := []models.AnchorRecord{}
	err := db.Model(&models.AnchorRecord{}).
		Joins("JOIN cases ON cases.id = anchor_records.case_id").
		Where("cases.lawyer_id = ? AND anchor_records.status = ?", p.UserID, models.AnchorStatusFailed).
		Order("anchor_records.updated_at DESC").
		Find(&records).Error
	return records, err
}

// RetryFailedAnchor lets the case lawyer send a failed record back to the ledger
func RetryFailedAnchor(ctx context.Context, db *gorm.DB, anchor *HashAnchor, p Principal, logID string, version int) (*models.AnchorRecord, error) {
	rec, err := anchor.Record(ctx, logID, version)
	if err != nil {
		return nil, err
	}
	c, err := LoadCase(db.WithContext(ctx), rec.CaseID)
	if err != nil {
		return nil, err
	}
	if err := requireCaseLawyer(c, p); err != nil {
		return nil, err
	}
	return anchor.Retry(ctx, logID, version)
}
