package services

import (
	"context"
	"errors"

	"law_ledger_app_go/logger"
	"law_ledger_app_go/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxSignatureLength = 500

// SignContract records the caller's signature. Signatures are final; once both are
// present the case is activated in the same transaction.
func (m *StatusMachine) SignContract(ctx context.Context, p Principal, caseID, signature string) (*models.ContractDocument, error) {
	sig, err := requiredText("signature", signature, maxSignatureLength)
	if err != nil {
		return nil, err
	}
	if p.IsAuditor() {
		return nil, unauthorized("auditors cannot sign contracts")
	}

	unlock := m.lockCase(caseID)
	defer unlock()

	var (
		contract  models.ContractDocument
		activated bool
	)
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := LoadCase(tx, caseID)
		if err != nil {
			return err
		}
		if !c.IsParticipant(p.UserID) {
			return unauthorized("not a participant of this case")
		}

		if err := tx.First(&contract, "case_id = ?", caseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("contract for case %s", caseID)
			}
			return err
		}

		now := m.now().UTC()
		updates := map[string]interface{}{"updated_at": now}
		switch {
		case p.IsLawyer() && c.LawyerID == p.UserID:
			if contract.LawyerSignature != nil && *contract.LawyerSignature != "" {
				return invalidTransition("lawyer has already signed this contract")
			}
			contract.LawyerSignature, contract.LawyerSignedAt = &sig, &now
			updates["lawyer_signature"], updates["lawyer_signed_at"] = sig, now
		case p.IsClient() && c.ClientID == p.UserID:
			if contract.ClientSignature != nil && *contract.ClientSignature != "" {
				return invalidTransition("client has already signed this contract")
			}
			contract.ClientSignature, contract.ClientSignedAt = &sig, &now
			updates["client_signature"], updates["client_signed_at"] = sig, now
		default:
			return unauthorized("role %s cannot sign for this case", p.Role)
		}

		if err := tx.Model(&models.ContractDocument{}).Where("case_id = ?", caseID).Updates(updates).Error; err != nil {
			return err
		}

		if contract.IsFullySigned() && c.Status == models.CaseStatusPending {
			if _, err := m.activateOnSignature(tx, c); err != nil {
				return err
			}
			activated = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := logger.WithComponent("contract").WithFields(logrus.Fields{"case_id": caseID, "role": p.Role})
	entry.Info("Contract signed")
	if activated {
		entry.Info("Case activated after both signatures")
	}
	return &contract, nil
}

// GetContract returns the contract of a case the caller participates in
func GetContract(db *gorm.DB, p Principal, caseID string) (*models.ContractDocument, error) {
	c, err := LoadCase(db, caseID)
	if err != nil {
		return nil, err
	}
	if p.IsAuditor() || !c.IsParticipant(p.UserID) {
		return nil, unauthorized("not a participant of this case")
	}

	var contract models.ContractDocument
	if err := db.First(&contract, "case_id = ?", caseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("contract for case %s", caseID)
		}
		return nil, err
	}
	return &contract, nil
}
