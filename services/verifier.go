package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"law_ledger_app_go/logger"
	"law_ledger_app_go/models"
	"law_ledger_app_go/services/ledger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// VerificationStatus is the outcome of comparing a recomputed hash with its anchor.
// Mismatch and pending are results, not errors.
type VerificationStatus string

const (
	VerificationVerified    VerificationStatus = "verified"
	VerificationMismatch    VerificationStatus = "mismatch"
	VerificationPending     VerificationStatus = "pending"
	VerificationUnavailable VerificationStatus = "unavailable"
)

// KindOriginal labels version 1 in verification output
const KindOriginal = "original"

// VerificationResult describes one verified log version
type VerificationResult struct {
	LogID          string             `json:"log_id"`
	Version        int                `json:"version"`
	Kind           string             `json:"kind"`
	OnChainHash    string             `json:"on_chain_hash"`
	RecomputedHash string             `json:"recomputed_hash"`
	Verified       bool               `json:"verified"`
	Status         VerificationStatus `json:"status"`
	Reference      string             `json:"ledger_reference,omitempty"`
	Detail         string             `json:"detail,omitempty"`
}

// LogVerification groups the results of one log
type LogVerification struct {
	Original *VerificationResult  `json:"original"`
	Edits    []VerificationResult `json:"edits"`
}

// CaseVerification maps log id to its grouped results
type CaseVerification struct {
	CaseID string                      `json:"case_id"`
	Logs   map[string]*LogVerification `json:"logs"`
}

// Rows flattens the grouped results sorted by (log_id, version)
func (cv *CaseVerification) Rows() []VerificationResult {
	rows := []VerificationResult{}
	for _, lv := range cv.Logs {
		if lv.Original != nil {
			rows = append(rows, *lv.Original)
		}
		rows = append(rows, lv.Edits...)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LogID != rows[j].LogID {
			return rows[i].LogID < rows[j].LogID
		}
		return rows[i].Version < rows[j].Version
	})
	return rows
}

func versionKind(version int) string {
	if version == 1 {
		return KindOriginal
	}
	return fmt.Sprintf("edit v%d", version)
}

// AuditVerifier recomputes stored content hashes and compares them with the ledger
type AuditVerifier struct {
	db     *gorm.DB
	ledger ledger.Ledger
	now    func() time.Time
	log    *logrus.Entry
}

func NewAuditVerifier(db *gorm.DB, l ledger.Ledger) *AuditVerifier {
	return &AuditVerifier{
		db:     db,
		ledger: l,
		now:    time.Now,
		log:    logger.WithComponent("verifier"),
	}
}

// authorize admits auditors holding an unexpired grant on the case
func (v *AuditVerifier) authorize(db *gorm.DB, p Principal, caseID string) error {
	if !p.IsAuditor() {
		return unauthorized("verification is restricted to auditors")
	}
	_, err := AuthorizeCaseRead(db, p, caseID, v.now())
	return err
}

// snapshot is a version and its anchor as read in one transaction
type snapshot struct {
	entry   models.LogEntry
	version models.LogVersion
	record  *models.AnchorRecord
}

// VerifyLog checks one version of a log; version 0 means the current one
func (v *AuditVerifier) VerifyLog(ctx context.Context, p Principal, caseID, logID string, version int) (*VerificationResult, error) {
	db := v.db.WithContext(ctx)
	if err := v.authorize(db, p, caseID); err != nil {
		return nil, err
	}

	var snap snapshot
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&snap.entry, "id = ? AND case_id = ?", logID, caseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("log %s in case %s", logID, caseID)
			}
			return err
		}
		target := version
		if target == 0 {
			target = snap.entry.Version
		}
		if err := tx.First(&snap.version, "log_id = ? AND version = ?", logID, target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("version %d of log %s", target, logID)
			}
			return err
		}
		var rec models.AnchorRecord
		err := tx.First(&rec, "log_id = ? AND version = ?", logID, target).Error
		if err == nil {
			snap.record = &rec
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := v.check(ctx, &snap)
	v.log.WithFields(logrus.Fields{
		"case_id": caseID,
		"log_id":  logID,
		"version": result.Version,
		"status":  result.Status,
	}).Info("Log verified")
	return result, nil
}

// VerifyCase checks every version of every log in the case independently
func (v *AuditVerifier) VerifyCase(ctx context.Context, p Principal, caseID string) (*CaseVerification, error) {
	db := v.db.WithContext(ctx)
	if err := v.authorize(db, p, caseID); err != nil {
		return nil, err
	}

	var (
		entries  []models.LogEntry
		versions []models.LogVersion
		records  []models.AnchorRecord
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("case_id = ?", caseID).Find(&entries).Error; err != nil {
			return err
		}
		if err := tx.Where("case_id = ?", caseID).Order("log_id ASC, version ASC").Find(&versions).Error; err != nil {
			return err
		}
		return tx.Where("case_id = ?", caseID).Find(&records).Error
	})
	if err != nil {
		return nil, err
	}

	byEntry := make(map[string]models.LogEntry, len(entries))
	for _, e := range entries {
		byEntry[e.ID] = e
	}
	byKey := make(map[ledger.Key]*models.AnchorRecord, len(records))
	for i := range records {
		byKey[anchorKey(&records[i])] = &records[i]
	}

	cv := &CaseVerification{CaseID: caseID, Logs: make(map[string]*LogVerification, len(entries))}
	summary := map[VerificationStatus]int{}
	for _, ver := range versions {
		entry, ok := byEntry[ver.LogID]
		if !ok {
			continue
		}
		snap := snapshot{
			entry:   entry,
			version: ver,
			record:  byKey[ledger.Key{LogID: ver.LogID, Version: ver.Version}],
		}
		result := v.check(ctx, &snap)
		summary[result.Status]++

		lv, ok := cv.Logs[ver.LogID]
		if !ok {
			lv = &LogVerification{Edits: []VerificationResult{}}
			cv.Logs[ver.LogID] = lv
		}
		if ver.IsOriginal() {
			lv.Original = result
		} else {
			lv.Edits = append(lv.Edits, *result)
		}
	}

	v.log.WithFields(logrus.Fields{
		"case_id":     caseID,
		"verified":    summary[VerificationVerified],
		"mismatch":    summary[VerificationMismatch],
		"pending":     summary[VerificationPending],
		"unavailable": summary[VerificationUnavailable],
	}).Info("Case verified")
	return cv, nil
}

// check compares the recomputed hash of a snapshot with what the ledger holds
func (v *AuditVerifier) check(ctx context.Context, snap *snapshot) *VerificationResult {
	ver := &snap.version
	result := &VerificationResult{
		LogID:          ver.LogID,
		Version:        ver.Version,
		Kind:           versionKind(ver.Version),
		RecomputedHash: HashContent(ContentOf(ver)),
	}

	// The current view must still equal its latest version
	diverged := ver.Version == snap.entry.Version &&
		(snap.entry.Description != ver.Description || snap.entry.TimeSpent != ver.TimeSpent)

	rec := snap.record
	switch {
	case rec == nil:
		result.Status = VerificationUnavailable
		result.Detail = "no anchor record for this version"
		return result
	case rec.Status == models.AnchorStatusPending:
		result.Status = VerificationPending
		result.Detail = "anchor not yet confirmed by the ledger"
		return result
	case rec.Status == models.AnchorStatusFailed:
		result.Status = VerificationUnavailable
		result.Detail = rec.LastError
		return result
	}

	result.Reference = rec.LedgerReference
	receipt, err := v.ledger.Fetch(ctx, anchorKey(rec))
	if errors.Is(err, ledger.ErrNotFound) {
		result.Status = VerificationMismatch
		result.Detail = "confirmed anchor is missing from the ledger"
		return result
	}
	if err != nil {
		v.log.WithError(err).WithField("key", anchorKey(rec).String()).Warn("Failed to read anchor from ledger")
		result.OnChainHash = rec.OnChainHash
		result.Status = VerificationUnavailable
		result.Detail = "ledger unreachable: " + err.Error()
		return result
	}
	result.OnChainHash = receipt.Hash

	switch {
	case receipt.Hash != rec.OnChainHash:
		result.Status = VerificationMismatch
		result.Detail = "anchor record disagrees with the ledger"
	case result.RecomputedHash != receipt.Hash:
		result.Status = VerificationMismatch
		result.Detail = "stored content does not match the anchored hash"
	case diverged:
		result.Status = VerificationMismatch
		result.Detail = "current entry differs from its latest version"
	default:
		result.Status = VerificationVerified
		result.Verified = true
	}
	return result
}
