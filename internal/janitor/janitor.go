// Package janitor removes download-manager registrations left behind by
// deliveries that failed before they could clean up.
package janitor

import (
	"context"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/NikitaDmitryuk/libria-media-server/internal/database"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/NikitaDmitryuk/libria-media-server/internal/metrics"
	"github.com/NikitaDmitryuk/libria-media-server/internal/timeutil"
	"github.com/sirupsen/logrus"
)

// Journal is the subset of the delivery journal the janitor needs.
type Journal interface {
	OrphanedDeliveries(ctx context.Context, cutoff time.Time) ([]database.Delivery, error)
	MarkRemoved(ctx context.Context, id string) error
}

type Janitor struct {
	journal Journal
	manager domain.DownloadManager
	clock   timeutil.Clock
	minAge  time.Duration
}

func New(journal Journal, manager domain.DownloadManager, clock timeutil.Clock, minAge time.Duration) *Janitor {
	if clock == nil {
		clock = timeutil.NewSystemClock()
	}
	return &Janitor{journal: journal, manager: manager, clock: clock, minAge: minAge}
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Found   int
	Removed int
	Failed  int
}

// Sweep removes every orphan older than the minimum age once.
func (j *Janitor) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	orphans, err := j.journal.OrphanedDeliveries(ctx, j.clock.Now().Add(-j.minAge))
	if err != nil {
		return res, err
	}
	res.Found = len(orphans)

	for i := range orphans {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		d := &orphans[i]
		log := logutils.Log.WithFields(logrus.Fields{
			"delivery_id": d.ID,
			"hash":        d.ContentHash,
		})
		if err := j.manager.Remove(ctx, domain.DownloadHandle{ContentHash: d.ContentHash, SourceLocator: d.Locator}); err != nil {
			res.Failed++
			metrics.RecordJanitorRemoval(false)
			log.WithError(err).Warn("Failed to remove orphaned download")
			continue
		}
		res.Removed++
		metrics.RecordJanitorRemoval(true)
		if err := j.journal.MarkRemoved(ctx, d.ID); err != nil {
			log.WithError(err).Warn("Failed to mark orphan as removed")
		}
		log.Info("Removed orphaned download")
	}
	return res, nil
}

// Start sweeps every interval until ctx is done. A non-positive interval disables it.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logutils.Log.WithFields(logrus.Fields{
		"interval": interval,
		"min_age":  j.minAge,
	}).Info("Starting orphan janitor")

	for {
		select {
		case <-ctx.Done():
			logutils.Log.Info("Stopping orphan janitor")
			return
		case <-ticker.C:
			res, err := j.Sweep(ctx)
			if err != nil && ctx.Err() == nil {
				logutils.Log.WithError(err).Warn("Orphan sweep failed")
				continue
			}
			if res.Found > 0 {
				logutils.Log.WithFields(logrus.Fields{
					"found":   res.Found,
					"removed": res.Removed,
					"failed":  res.Failed,
				}).Info("Orphan sweep finished")
			}
		}
	}
}
