package delivery

import (
	"context"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/NikitaDmitryuk/libria-media-server/internal/database"
	"github.com/google/uuid"
)

// noopJournal is used when no journal is configured.
type noopJournal struct{}

func (noopJournal) BeginDelivery(_ context.Context, d *database.Delivery) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

func (noopJournal) MarkSubmitted(context.Context, string, string) error { return nil }

func (noopJournal) MarkSeeded(context.Context, string) error { return nil }

func (noopJournal) RecordFile(context.Context, string, domain.DeliveryResult) error { return nil }

func (noopJournal) FinishDelivery(context.Context, string, database.DeliveryStatus, domain.DeliverySummary, string) error {
	return nil
}

func (noopJournal) MarkRemoved(context.Context, string) error { return nil }
