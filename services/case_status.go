package services

import (
	"context"
	"strings"
	"time"

	"law_ledger_app_go/logger"
	"law_ledger_app_go/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// DefaultStatusReason is recorded when a transition is requested without a reason
	DefaultStatusReason = "Status updated"
	// ContractActivationReason is recorded for the automatic pending -> active transition
	ContractActivationReason = "Contract signed by both parties"
	// SystemActor marks transitions not requested by a user
	SystemActor = "system"
)

// StatusUpdate is a lawyer's transition request
type StatusUpdate struct {
	Status       models.CaseStatus
	CustomStatus string
	Reason       string
}

// StatusMachine owns every write to a case's status. Transitions on one case are serialized.
type StatusMachine struct {
	db    *gorm.DB
	locks *keyedMutex
	now   func() time.Time
}

func NewStatusMachine(db *gorm.DB) *StatusMachine {
	return &StatusMachine{
		db:    db,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// lockCase enters the per-case exclusive section
func (m *StatusMachine) lockCase(caseID string) func() {
	return m.locks.Lock(caseID)
}

// UpdateStatus applies a lawyer-requested transition and appends it to the history
func (m *StatusMachine) UpdateStatus(ctx context.Context, p Principal, caseID string, req StatusUpdate) (*models.CaseStatusChange, error) {
	target := models.CaseStatus(strings.TrimSpace(string(req.Status)))
	if !target.IsValid() {
		return nil, validationError("unknown status %q", req.Status)
	}

	var custom *string
	if target == models.CaseStatusOther {
		label, err := CleanText("custom_status", req.CustomStatus, maxTitleLength)
		if err != nil {
			return nil, err
		}
		if label == "" {
			return nil, validationError("custom_status is required when status is other")
		}
		custom = &label
	}

	reason, err := CleanText("reason", req.Reason, maxReasonLength)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = DefaultStatusReason
	}

	unlock := m.lockCase(caseID)
	defer unlock()

	var change *models.CaseStatusChange
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := LoadCase(tx, caseID)
		if err != nil {
			return err
		}
		if err := requireCaseLawyer(c, p); err != nil {
			return err
		}
		if err := checkRequestedTransition(c, target, custom); err != nil {
			return err
		}

		change, err = m.transition(tx, c, target, custom, reason, p.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.WithComponent("status").WithFields(logrus.Fields{
		"case_id": caseID,
		"from":    change.OldStatus,
		"to":      change.NewStatus,
	}).Info("Case status updated")

	return change, nil
}

// checkRequestedTransition enforces the lifecycle for user requests
func checkRequestedTransition(c *models.Case, target models.CaseStatus, custom *string) error {
	switch {
	case c.Status.IsTerminal():
		return invalidTransition("case is %s and accepts no further transitions", c.Status)
	case c.Status == models.CaseStatusPending:
		return invalidTransition("case is pending; the contract must be signed by both parties first")
	case target == models.CaseStatusPending:
		return invalidTransition("a case cannot return to pending")
	case target == c.Status && target != models.CaseStatusOther:
		return invalidTransition("case is already %s", target)
	case target == models.CaseStatusOther && c.Status == models.CaseStatusOther &&
		c.CustomStatus != nil && custom != nil && *c.CustomStatus == *custom:
		return invalidTransition("case is already %s", *custom)
	}
	return nil
}

// activateOnSignature drives pending -> active once the contract carries both signatures.
// Must run inside the caller's transaction while the case lock is held.
func (m *StatusMachine) activateOnSignature(tx *gorm.DB, c *models.Case) (*models.CaseStatusChange, error) {
	if c.Status != models.CaseStatusPending {
		return nil, invalidTransition("case is %s, only pending cases are activated by signature", c.Status)
	}
	return m.transition(tx, c, models.CaseStatusActive, nil, ContractActivationReason, SystemActor)
}

func (m *StatusMachine) transition(tx *gorm.DB, c *models.Case, target models.CaseStatus, custom *string, reason, actor string) (*models.CaseStatusChange, error) {
	now := m.now().UTC()
	change := &models.CaseStatusChange{
		CaseID:       c.ID,
		OldStatus:    c.Status,
		NewStatus:    target,
		CustomStatus: custom,
		Reason:       reason,
		ActorID:      actor,
		ChangedAt:    now,
	}

	res := tx.Model(&models.Case{}).
		Where("id = ? AND status = ?", c.ID, c.Status).
		Updates(map[string]interface{}{
			"status":        target,
			"custom_status": custom,
			"updated_at":    now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, invalidTransition("case status changed concurrently")
	}

	if err := tx.Create(change).Error; err != nil {
		return nil, err
	}

	c.Status = target
	c.CustomStatus = custom
	return change, nil
}

// StatusHistory returns the case's transitions, oldest first
func StatusHistory(db *gorm.DB, caseID string) ([]models.CaseStatusChange, error) {
	var changes []models.CaseStatusChange
	err := db.Where("case_id = ?", caseID).
		Order("changed_at ASC, id ASC").
		Find(&changes).Error
	return changes, err
}
