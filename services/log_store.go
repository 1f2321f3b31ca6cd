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

// LogStore is the only writer of log entries and their versions.
// Every new version is hashed and handed to the anchor in the same transaction.
type LogStore struct {
	db      *gorm.DB
	anchor  *HashAnchor
	machine *StatusMachine
	logs    *keyedMutex
	now     func() time.Time
	log     *logrus.Entry
}

// NewLogStore shares the status machine's case locks so logging never races a transition
func NewLogStore(db *gorm.DB, anchor *HashAnchor, machine *StatusMachine) *LogStore {
	return &LogStore{
		db:      db,
		anchor:  anchor,
		machine: machine,
		logs:    newKeyedMutex(),
		now:     time.Now,
		log:     logger.WithComponent("logs"),
	}
}

// Create records a new billable entry as version 1
func (s *LogStore) Create(ctx context.Context, p Principal, caseID, description string, timeSpent int) (*models.LogEntry, error) {
	desc, err := cleanDescription(description)
	if err != nil {
		return nil, err
	}
	if err := validateTimeSpent(timeSpent); err != nil {
		return nil, err
	}
	if !p.IsLawyer() {
		return nil, unauthorized("only lawyers can log work")
	}

	unlock := s.machine.lockCase(caseID)
	defer unlock()

	var (
		entry  *models.LogEntry
		record *models.AnchorRecord
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := LoadCase(tx, caseID)
		if err != nil {
			return err
		}
		if err := requireCaseLawyer(c, p); err != nil {
			return err
		}
		if !c.Status.AllowsLogging() {
			return invalidTransition("case status %s does not permit logging", c.DisplayStatus())
		}

		entry = &models.LogEntry{
			CaseID:      caseID,
			Description: desc,
			TimeSpent:   timeSpent,
			Version:     1,
			CreatedByID: p.UserID,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		record, err = s.appendVersion(tx, entry, p.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.anchor.enqueue(anchorKey(record))
	entry.AnchorStatus = record.Status

	s.log.WithFields(logrus.Fields{"case_id": caseID, "log_id": entry.ID}).Info("Log created")
	return entry, nil
}

// Edit appends version N+1 and moves the entry's current view to it
func (s *LogStore) Edit(ctx context.Context, p Principal, logID, description string, timeSpent int) (*models.LogEntry, error) {
	desc, err := cleanDescription(description)
	if err != nil {
		return nil, err
	}
	if err := validateTimeSpent(timeSpent); err != nil {
		return nil, err
	}

	// case_id never changes, so it is safe to read before locking
	current, err := s.loadEntry(s.db.WithContext(ctx), logID)
	if err != nil {
		return nil, err
	}

	unlockCase := s.machine.lockCase(current.CaseID)
	defer unlockCase()
	unlockLog := s.logs.Lock(logID)
	defer unlockLog()

	var (
		entry  *models.LogEntry
		record *models.AnchorRecord
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.loadEntry(tx, logID)
		if err != nil {
			return err
		}
		c, err := LoadCase(tx, entry.CaseID)
		if err != nil {
			return err
		}
		if err := requireCaseLawyer(c, p); err != nil {
			return err
		}
		if !c.Status.AllowsLogging() {
			return invalidTransition("case status %s does not permit editing logs", c.DisplayStatus())
		}

		prev := entry.Version
		now := s.now().UTC()
		res := tx.Model(&models.LogEntry{}).
			Where("id = ? AND version = ?", logID, prev).
			Updates(map[string]interface{}{
				"description": desc,
				"time_spent":  timeSpent,
				"version":     prev + 1,
				"is_edited":   true,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return invalidTransition("log %s was modified concurrently", logID)
		}

		entry.Description, entry.TimeSpent = desc, timeSpent
		entry.Version, entry.IsEdited, entry.UpdatedAt = prev+1, true, now

		record, err = s.appendVersion(tx, entry, p.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.anchor.enqueue(anchorKey(record))
	entry.AnchorStatus = record.Status

	s.log.WithFields(logrus.Fields{"log_id": logID, "version": entry.Version}).Info("Log edited")
	return entry, nil
}

// appendVersion snapshots the entry's current content, hashes it and schedules anchoring
func (s *LogStore) appendVersion(tx *gorm.DB, entry *models.LogEntry, editorID string) (*models.AnchorRecord, error) {
	version := &models.LogVersion{
		LogID:       entry.ID,
		Version:     entry.Version,
		CaseID:      entry.CaseID,
		Description: entry.Description,
		TimeSpent:   entry.TimeSpent,
		EditedByID:  editorID,
		EditedAt:    canonicalTime(s.now()),
	}
	version.ContentHash = HashContent(ContentOf(version))

	if err := tx.Create(version).Error; err != nil {
		return nil, err
	}
	rec, _, err := s.anchor.ensureRecord(tx, entry.CaseID, entry.ID, entry.Version, version.ContentHash)
	return rec, err
}

func (s *LogStore) loadEntry(db *gorm.DB, logID string) (*models.LogEntry, error) {
	var entry models.LogEntry
	err := db.First(&entry, "id = ?", logID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("log %s", logID)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// History returns the prior versions of a log, oldest first, excluding the current one
func (s *LogStore) History(ctx context.Context, p Principal, logID string) ([]models.LogVersion, error) {
	db := s.db.WithContext(ctx)
	entry, err := s.loadEntry(db, logID)
	if err != nil {
		return nil, err
	}
	if _, err := AuthorizeCaseRead(db, p, entry.CaseID, s.now()); err != nil {
		return nil, err
	}

	versions := []models.LogVersion{}
	err = db.Where("log_id = ? AND version < ?", logID, entry.Version).
		Order("version ASC").
		Find(&versions).Error
	return versions, err
}

// CaseLogs lists the current view of every log in a case with its anchor status
func (s *LogStore) CaseLogs(ctx context.Context, p Principal, caseID string) ([]models.LogEntry, error) {
	db := s.db.WithContext(ctx)
	if _, err := AuthorizeCaseRead(db, p, caseID, s.now()); err != nil {
		return nil, err
	}

	entries := []models.LogEntry{}
	if err := db.Where("case_id = ?", caseID).Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}

	var records []models.AnchorRecord
	if err := db.Select("log_id", "version", "status").Where("case_id = ?", caseID).Find(&records).Error; err != nil {
		return nil, err
	}
	status := make(map[string]models.AnchorStatus, len(records))
	for _, r := range records {
		status[anchorKey(&r).String()] = r.Status
	}
	for i := range entries {
		key := anchorKey(&models.AnchorRecord{LogID: entries[i].ID, Version: entries[i].Version})
		entries[i].AnchorStatus = status[key.String()]
	}
	return entries, nil
}
