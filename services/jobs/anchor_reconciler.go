package jobs

import (
	"time"

	"law_ledger_app_go/logger"
	"law_ledger_app_go/models"
	"law_ledger_app_go/services/ledger"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// DefaultReconcileSpec runs the reconciler once a minute
const DefaultReconcileSpec = "@every 1m"

// Requeuer accepts pending anchor keys back into the submission queue
type Requeuer interface {
	Requeue(key ledger.Key) bool
}

// StartAnchorReconciler schedules ReconcilePendingAnchors on spec and returns the running scheduler.
// Records pending for longer than staleAfter are assumed orphaned by a crash or a full queue.
func StartAnchorReconciler(database *gorm.DB, anchor Requeuer, spec string, staleAfter time.Duration) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultReconcileSpec
	}
	log := logger.WithComponent("cron")

	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		ReconcilePendingAnchors(database, anchor, time.Now().Add(-staleAfter))
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	log.WithField("spec", spec).Info("Anchor reconciler scheduled")
	return c, nil
}

// ReconcilePendingAnchors requeues every pending record last touched before cutoff.
// It returns the number of keys newly queued.
func ReconcilePendingAnchors(database *gorm.DB, anchor Requeuer, cutoff time.Time) int {
	log := logger.WithComponent("cron")

	var records []models.AnchorRecord
	err := database.Select("log_id", "version").
		Where("status = ? AND updated_at < ?", models.AnchorStatusPending, cutoff).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		log.WithError(err).Error("Failed to load pending anchors")
		return 0
	}
	if len(records) == 0 {
		return 0
	}

	queued := 0
	for _, r := range records {
		if anchor.Requeue(ledger.Key{LogID: r.LogID, Version: r.Version}) {
			queued++
		}
	}

	log.WithField("stale", len(records)).WithField("queued", queued).Info("Reconciled pending anchors")
	return queued
}
