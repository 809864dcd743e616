package database

import (
	"context"
	"fmt"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/NikitaDmitryuk/libria-media-server/internal/utils"
)

// DeliveryReader is the read-only subset used by the ops API and the janitor.
type DeliveryReader interface {
	GetDelivery(ctx context.Context, id string) (Delivery, error)
	RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error)
	// OrphanedDeliveries lists failed runs whose registration may still be on
	// the download manager, last updated before cutoff.
	OrphanedDeliveries(ctx context.Context, cutoff time.Time) ([]Delivery, error)
}

// DeliveryWriter records the progress of pipeline runs.
type DeliveryWriter interface {
	BeginDelivery(ctx context.Context, d *Delivery) error
	MarkSubmitted(ctx context.Context, id, contentHash string) error
	MarkSeeded(ctx context.Context, id string) error
	RecordFile(ctx context.Context, id string, result domain.DeliveryResult) error
	FinishDelivery(ctx context.Context, id string, status DeliveryStatus, summary domain.DeliverySummary, detail string) error
	MarkRemoved(ctx context.Context, id string) error
}

// Database is the full journal interface.
type Database interface {
	DeliveryReader
	DeliveryWriter
	Close() error
}

func NewDatabase(path string) (Database, error) {
	database := NewSQLiteDatabase()
	if err := database.Init(path); err != nil {
		logutils.Log.WithError(err).Error("Failed to initialize the database")
		return nil, fmt.Errorf("%w: %w", utils.ErrDatabaseError, err)
	}
	return database, nil
}
