package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"law_ledger_app_go/config"
	"law_ledger_app_go/logger"
	"law_ledger_app_go/models"
	"law_ledger_app_go/services/ledger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnchorConfig bounds the retry behaviour of ledger submissions
type AnchorConfig struct {
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
	QueueSize      int
}

// AnchorConfigFrom extracts the anchoring settings from the app configuration
func AnchorConfigFrom(cfg *config.Config) AnchorConfig {
	return AnchorConfig{
		MaxAttempts:    cfg.AnchorMaxAttempts,
		BaseBackoff:    cfg.AnchorBaseBackoff,
		MaxBackoff:     cfg.AnchorMaxBackoff,
		AttemptTimeout: cfg.AnchorAttemptTimeout,
		QueueSize:      cfg.AnchorQueueSize,
	}
}

func (c AnchorConfig) withDefaults() AnchorConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 10 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	return c
}

// backoff returns the wait before the given retry (1-based), doubling up to MaxBackoff
func (c AnchorConfig) backoff(attempt int) time.Duration {
	d := c.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return d
}

// AnchorFailureNotifier is told when a record exhausts its retry budget
type AnchorFailureNotifier interface {
	AnchorFailed(ctx context.Context, record *models.AnchorRecord)
}

// HashAnchor commits log version hashes to the external ledger.
// A single worker drains the queue, so at most one submission is in flight at a time.
type HashAnchor struct {
	db       *gorm.DB
	ledger   ledger.Ledger
	cfg      AnchorConfig
	notifier AnchorFailureNotifier
	log      *logrus.Entry
	now      func() time.Time

	queue chan ledger.Key

	mu       sync.Mutex
	idle     *sync.Cond
	queued   map[ledger.Key]struct{} // waiting in the channel, not yet taken
	inflight int

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHashAnchor(db *gorm.DB, l ledger.Ledger, cfg AnchorConfig, notifier AnchorFailureNotifier) *HashAnchor {
	cfg = cfg.withDefaults()
	a := &HashAnchor{
		db:       db,
		ledger:   l,
		cfg:      cfg,
		notifier: notifier,
		log:      logger.WithComponent("anchor"),
		now:      time.Now,
		queue:    make(chan ledger.Key, cfg.QueueSize),
		queued:   make(map[ledger.Key]struct{}),
	}
	a.idle = sync.NewCond(&a.mu)
	return a
}

// Start launches the single writer. It stops when ctx is cancelled or Stop is called.
func (a *HashAnchor) Start(ctx context.Context) {
	a.mu.Lock()
	if a.done != nil {
		a.mu.Unlock()
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	a.mu.Unlock()

	go a.run(ctx)
}

// Stop halts the writer and waits for the in-flight submission to return
func (a *HashAnchor) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Anchor schedules hash for (logID, version). It is idempotent on the key: when a
// record already exists the call is a no-op returning it, so retries and
// re-submissions after a crash never produce a second ledger write.
func (a *HashAnchor) Anchor(ctx context.Context, caseID, logID string, version int, hash string) (*models.AnchorRecord, error) {
	var (
		rec     *models.AnchorRecord
		created bool
	)
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rec, created, err = a.ensureRecord(tx, caseID, logID, version, hash)
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		a.enqueue(anchorKey(rec))
	}
	return rec, nil
}

// ensureRecord inserts a pending record inside the caller's transaction unless one exists.
// Only the caller that created the record enqueues it.
func (a *HashAnchor) ensureRecord(tx *gorm.DB, caseID, logID string, version int, hash string) (*models.AnchorRecord, bool, error) {
	rec := &models.AnchorRecord{
		LogID:       logID,
		Version:     version,
		CaseID:      caseID,
		ContentHash: hash,
		Status:      models.AnchorStatusPending,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to create anchor record: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return rec, true, nil
	}

	existing := &models.AnchorRecord{}
	if err := tx.First(existing, "log_id = ? AND version = ?", logID, version).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load anchor record: %w", err)
	}
	if existing.ContentHash != hash {
		a.log.WithFields(logrus.Fields{"log_id": logID, "version": version}).
			Warn("Anchor requested with a different hash for an existing key; keeping the original")
	}
	return existing, false, nil
}

func anchorKey(rec *models.AnchorRecord) ledger.Key {
	return ledger.Key{LogID: rec.LogID, Version: rec.Version}
}

// Retry moves a failed record back to pending and queues it again
func (a *HashAnchor) Retry(ctx context.Context, logID string, version int) (*models.AnchorRecord, error) {
	res := a.db.WithContext(ctx).Model(&models.AnchorRecord{}).
		Where("log_id = ? AND version = ? AND status = ?", logID, version, models.AnchorStatusFailed).
		Updates(map[string]interface{}{
			"status":     models.AnchorStatusPending,
			"attempts":   0,
			"last_error": "",
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to reset anchor record: %w", res.Error)
	}

	rec, err := a.Record(ctx, logID, version)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && rec.Status != models.AnchorStatusPending {
		return nil, invalidTransition("anchor %s is %s, only failed anchors can be retried", anchorKey(rec), rec.Status)
	}
	a.enqueue(anchorKey(rec))
	return rec, nil
}

// Requeue queues a pending record that is not already waiting. Used for crash recovery.
func (a *HashAnchor) Requeue(key ledger.Key) bool {
	return a.enqueue(key)
}

// Record loads the anchor record for a key
func (a *HashAnchor) Record(ctx context.Context, logID string, version int) (*models.AnchorRecord, error) {
	rec := &models.AnchorRecord{}
	err := a.db.WithContext(ctx).First(rec, "log_id = ? AND version = ?", logID, version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("anchor record for %s v%d", logID, version)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// WaitIdle blocks until every queued submission has been processed
func (a *HashAnchor) WaitIdle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		a.mu.Lock()
		a.idle.Broadcast()
		a.mu.Unlock()
	})
	defer stop()

	a.mu.Lock()
	defer a.mu.Unlock()
	for a.inflight > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.idle.Wait()
	}
	return nil
}

func (a *HashAnchor) enqueue(key ledger.Key) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.queued[key]; ok {
		return false
	}
	select {
	case a.queue <- key:
		a.queued[key] = struct{}{}
		a.inflight++
		return true
	default:
		// Record stays pending; the reconciler picks it up
		a.log.WithField("key", key.String()).Warn("Anchor queue full, deferring to reconciler")
		return false
	}
}

// take marks a key as picked up by the worker. From here on a Retry or Requeue
// queues it again instead of being absorbed by the submission in progress.
func (a *HashAnchor) take(key ledger.Key) {
	a.mu.Lock()
	delete(a.queued, key)
	a.mu.Unlock()
}

func (a *HashAnchor) finish() {
	a.mu.Lock()
	a.inflight--
	if a.inflight == 0 {
		a.idle.Broadcast()
	}
	a.mu.Unlock()
}

func (a *HashAnchor) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case key := <-a.queue:
			a.take(key)
			a.process(ctx, key)
			a.finish()
		}
	}
}

// process drives one pending record to confirmed or failed
func (a *HashAnchor) process(ctx context.Context, key ledger.Key) {
	entry := a.log.WithFields(logrus.Fields{"log_id": key.LogID, "version": key.Version})

	rec := &models.AnchorRecord{}
	if err := a.db.First(rec, "log_id = ? AND version = ?", key.LogID, key.Version).Error; err != nil {
		entry.WithError(err).Error("Failed to load anchor record")
		return
	}
	if rec.Status != models.AnchorStatusPending {
		return
	}

	var lastErr error
	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		receipt, err := a.submit(ctx, key, rec.ContentHash)
		if err == nil {
			a.confirm(key, receipt, attempt)
			entry.WithFields(logrus.Fields{"reference": receipt.Reference, "attempt": attempt}).Info("Log version anchored")
			return
		}
		if ctx.Err() != nil {
			// Shutting down; the record stays pending for the reconciler
			return
		}

		lastErr = err
		a.recordAttempt(key, attempt, err)
		if !ledger.IsTransient(err) {
			entry.WithError(err).Warn("Ledger rejected anchor")
			break
		}
		if attempt == a.cfg.MaxAttempts {
			break
		}

		wait := a.cfg.backoff(attempt)
		entry.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "retry_in": wait}).Warn("Anchor attempt failed")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	a.fail(ctx, key, lastErr)
}

// submit performs one bounded attempt. A write that already landed (for instance
// before a crash or a timed-out attempt) is recovered by reading it back.
func (a *HashAnchor) submit(ctx context.Context, key ledger.Key, hash string) (*ledger.Receipt, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, a.cfg.AttemptTimeout)
	defer cancel()

	ref, err := a.ledger.Submit(attemptCtx, key, hash)
	if err == nil {
		return &ledger.Receipt{Hash: hash, Reference: ref}, nil
	}
	if errors.Is(err, ledger.ErrAlreadyAnchored) {
		receipt, fetchErr := a.ledger.Fetch(attemptCtx, key)
		if fetchErr != nil {
			return nil, fetchErr
		}
		if receipt.Hash != hash {
			a.log.WithField("key", key.String()).Warn("Ledger holds a different hash for this key")
		}
		return receipt, nil
	}
	return nil, err
}

func (a *HashAnchor) confirm(key ledger.Key, receipt *ledger.Receipt, attempts int) {
	now := a.now().UTC()
	err := a.db.Model(&models.AnchorRecord{}).
		Where("log_id = ? AND version = ? AND status = ?", key.LogID, key.Version, models.AnchorStatusPending).
		Updates(map[string]interface{}{
			"status":           models.AnchorStatusConfirmed,
			"on_chain_hash":    receipt.Hash,
			"ledger_reference": receipt.Reference,
			"attempts":         attempts,
			"last_error":       "",
			"confirmed_at":     now,
		}).Error
	if err != nil {
		a.log.WithError(err).WithField("key", key.String()).Error("Failed to confirm anchor record")
	}
}

func (a *HashAnchor) recordAttempt(key ledger.Key, attempt int, cause error) {
	a.db.Model(&models.AnchorRecord{}).
		Where("log_id = ? AND version = ? AND status = ?", key.LogID, key.Version, models.AnchorStatusPending).
		Updates(map[string]interface{}{
			"attempts":   attempt,
			"last_error": cause.Error(),
		})
}

func (a *HashAnchor) fail(ctx context.Context, key ledger.Key, cause error) {
	msg := fmt.Errorf("%w: %v", ErrLedgerUnavailable, cause).Error()
	res := a.db.Model(&models.AnchorRecord{}).
		Where("log_id = ? AND version = ? AND status = ?", key.LogID, key.Version, models.AnchorStatusPending).
		Updates(map[string]interface{}{
			"status":     models.AnchorStatusFailed,
			"last_error": msg,
		})
	if res.Error != nil {
		a.log.WithError(res.Error).WithField("key", key.String()).Error("Failed to mark anchor record failed")
		return
	}

	a.log.WithFields(logrus.Fields{"log_id": key.LogID, "version": key.Version}).
		Error("Anchoring failed after exhausting retries")

	if a.notifier != nil && res.RowsAffected == 1 {
		rec := &models.AnchorRecord{}
		if err := a.db.First(rec, "log_id = ? AND version = ?", key.LogID, key.Version).Error; err == nil {
			a.notifier.AnchorFailed(ctx, rec)
		}
	}
}
