package services

import (
	"context"
	"errors"
	"time"

	"law_ledger_app_go/logger"
	"law_ledger_app_go/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxContractLength = 100000

// CreateCaseInput is the lawyer's request to open a case
type CreateCaseInput struct {
	Title           string
	ClientID        string
	ContractContent string
	LawyerSignature string
}

// CreateCase opens a pending case together with its unsigned contract
func CreateCase(ctx context.Context, db *gorm.DB, p Principal, in CreateCaseInput) (*models.Case, *models.ContractDocument, error) {
	if !p.IsLawyer() {
		return nil, nil, unauthorized("only lawyers can create cases")
	}

	title, err := cleanTitle(in.Title)
	if err != nil {
		return nil, nil, err
	}
	content, err := requiredText("contract_content", in.ContractContent, maxContractLength)
	if err != nil {
		return nil, nil, err
	}
	lawyerSig, err := CleanText("signature", in.LawyerSignature, maxSignatureLength)
	if err != nil {
		return nil, nil, err
	}

	var client models.User
	if err := db.WithContext(ctx).First(&client, "id = ?", in.ClientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, notFound("client %s", in.ClientID)
		}
		return nil, nil, err
	}
	if client.Role != models.RoleClient {
		return nil, nil, validationError("user %s is not a client", in.ClientID)
	}

	caseRecord := &models.Case{
		Title:    title,
		LawyerID: p.UserID,
		ClientID: client.ID,
		Status:   models.CaseStatusPending,
	}
	contract := &models.ContractDocument{Content: content}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(caseRecord).Error; err != nil {
			return err
		}
		contract.CaseID = caseRecord.ID
		if lawyerSig != "" {
			now := time.Now().UTC()
			contract.LawyerSignature = &lawyerSig
			contract.LawyerSignedAt = &now
		}
		return tx.Create(contract).Error
	})
	if err != nil {
		return nil, nil, err
	}

	logger.WithComponent("case").WithFields(logrus.Fields{
		"case_id":   caseRecord.ID,
		"lawyer_id": p.UserID,
		"client_id": client.ID,
	}).Info("Case created")

	return caseRecord, contract, nil
}

// ListCasesFor returns the cases visible to the caller by role
func ListCasesFor(db *gorm.DB, p Principal, now time.Time) ([]models.Case, error) {
	query := db.Model(&models.Case{}).Order("created_at DESC")

	switch p.Role {
	case models.RoleLawyer:
		query = query.Where("lawyer_id = ?", p.UserID)
	case models.RoleClient:
		query = query.Where("client_id = ?", p.UserID)
	case models.RoleAuditor:
		ids, err := GrantedCaseIDs(db, p.Email, now)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []models.Case{}, nil
		}
		query = query.Where("id IN ?", ids)
	default:
		return nil, unauthorized("unknown role")
	}

	var cases []models.Case
	err := query.Find(&cases).Error
	return cases, err
}

// AnchorCounts tallies anchor records of a case by status
type AnchorCounts struct {
	Pending   int64 `json:"pending"`
	Confirmed int64 `json:"confirmed"`
	Failed    int64 `json:"failed"`
}

// CaseSummary is the aggregate view of a case
type CaseSummary struct {
	CaseID         string            `json:"case_id"`
	Title          string            `json:"title"`
	Status         models.CaseStatus `json:"status"`
	CustomStatus   *string           `json:"custom_status,omitempty"`
	TotalLogs      int64             `json:"total_logs"`
	TotalTimeSpent int64             `json:"total_time_spent"`
	LawyerEmail    string            `json:"lawyer_email"`
	ClientEmail    string            `json:"client_email"`
	CreatedAt      time.Time         `json:"created_at"`
	Anchors        AnchorCounts      `json:"anchors"`
}

// SummarizeCase aggregates log totals and anchoring health for a readable case
func SummarizeCase(db *gorm.DB, p Principal, caseID string, now time.Time) (*CaseSummary, error) {
	c, err := AuthorizeCaseRead(db, p, caseID, now)
	if err != nil {
		return nil, err
	}

	summary := &CaseSummary{
		CaseID:       c.ID,
		Title:        c.Title,
		Status:       c.Status,
		CustomStatus: c.CustomStatus,
		CreatedAt:    c.CreatedAt,
	}

	var totals struct {
		Count int64
		Total int64
	}
	if err := db.Model(&models.LogEntry{}).
		Select("COUNT(*) AS count, COALESCE(SUM(time_spent), 0) AS total").
		Where("case_id = ?", caseID).
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	summary.TotalLogs, summary.TotalTimeSpent = totals.Count, totals.Total

	var users []models.User
	if err := db.Where("id IN ?", []string{c.LawyerID, c.ClientID}).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		switch u.ID {
		case c.LawyerID:
			summary.LawyerEmail = u.Email
		case c.ClientID:
			summary.ClientEmail = u.Email
		}
	}

	var rows []struct {
		Status models.AnchorStatus
		Count  int64
	}
	if err := db.Model(&models.AnchorRecord{}).
		Select("status, COUNT(*) AS count").
		Where("case_id = ?", caseID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		switch r.Status {
		case models.AnchorStatusPending:
			summary.Anchors.Pending = r.Count
		case models.AnchorStatusConfirmed:
			summary.Anchors.Confirmed = r.Count
		case models.AnchorStatusFailed:
			summary.Anchors.Failed = r.Count
		}
	}

	return summary, nil
}
