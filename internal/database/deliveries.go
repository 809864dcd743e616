package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDeliveryNotFound is returned when no delivery has the requested ID.
var ErrDeliveryNotFound = errors.New("delivery not found")

const maxRecent = 500

func (s *SQLiteDatabase) BeginDelivery(ctx context.Context, d *Delivery) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = DeliveryRunning
	if result := s.db.WithContext(ctx).Create(d); result.Error != nil {
		return fmt.Errorf("failed to add delivery: %w", result.Error)
	}
	return nil
}

func (s *SQLiteDatabase) update(ctx context.Context, id string, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&Delivery{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update delivery %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrDeliveryNotFound, id)
	}
	return nil
}

func (s *SQLiteDatabase) MarkSubmitted(ctx context.Context, id, contentHash string) error {
	return s.update(ctx, id, map[string]any{"submitted": true, "content_hash": contentHash})
}

func (s *SQLiteDatabase) MarkSeeded(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]any{"seeded": true})
}

func (s *SQLiteDatabase) RecordFile(ctx context.Context, id string, result domain.DeliveryResult) error {
	file := DeliveredFile{
		DeliveryID:   id,
		RelativeName: result.File.RelativeName,
		Variant:      string(result.Variant),
		SizeBytes:    result.File.SizeBytes,
	}
	if res := s.db.WithContext(ctx).Create(&file); res.Error != nil {
		return fmt.Errorf("failed to add delivered file %s: %w", result.File.RelativeName, res.Error)
	}
	return nil
}

func (s *SQLiteDatabase) FinishDelivery(
	ctx context.Context,
	id string,
	status DeliveryStatus,
	summary domain.DeliverySummary,
	detail string,
) error {
	if !status.IsValid() || status == DeliveryRunning {
		return fmt.Errorf("invalid final status %q", status)
	}
	return s.update(ctx, id, map[string]any{
		"status":     status,
		"detail":     detail,
		"transcoded": summary.Transcoded,
		"original":   summary.Original,
		"failed":     summary.Failed,
	})
}

func (s *SQLiteDatabase) MarkRemoved(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]any{"removed": true})
}

func (s *SQLiteDatabase) GetDelivery(ctx context.Context, id string) (Delivery, error) {
	var d Delivery
	result := s.db.WithContext(ctx).Preload("Files", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&d, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return Delivery{}, fmt.Errorf("%w: %s", ErrDeliveryNotFound, id)
	}
	if result.Error != nil {
		return Delivery{}, result.Error
	}
	return d, nil
}

// RecentDeliveries returns up to limit runs, newest first.
func (s *SQLiteDatabase) RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}
	var list []Delivery
	result := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&list)
	if result.Error != nil {
		return nil, result.Error
	}
	return list, nil
}

func (s *SQLiteDatabase) OrphanedDeliveries(ctx context.Context, cutoff time.Time) ([]Delivery, error) {
	running := s.db.Model(&Delivery{}).Select("content_hash").Where("status = ?", DeliveryRunning)
	var list []Delivery
	result := s.db.WithContext(ctx).
		Where("status = ? AND submitted = ? AND removed = ? AND content_hash <> '' AND updated_at < ?",
			DeliveryFailed, true, false, cutoff).
		Where("content_hash NOT IN (?)", running).
		Order("updated_at ASC").
		Find(&list)
	if result.Error != nil {
		return nil, result.Error
	}
	return list, nil
}
