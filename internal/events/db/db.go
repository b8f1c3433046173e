package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-checkin/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateEvent(ctx context.Context, event models.Event) error {
	_, err := d.Bun.NewInsert().Model(&event).Exec(ctx)
	return err
}

func (d *DB) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) ListEventsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Event, int, error) {
	var events []models.Event
	total, err := d.Bun.NewSelect().
		Model(&events).
		Where("owner_user_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (d *DB) UpdateScannerKey(ctx context.Context, eventID, scannerKey string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("scanner_key = ?", scannerKey).
		Where("id = ?", eventID).
		Exec(ctx)
	return err
}

func (d *DB) ScannerKeyExists(ctx context.Context, scannerKey string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Where("scanner_key = ?", scannerKey).
		Exists(ctx)
}

func (d *DB) CountAttendees(ctx context.Context, eventID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Attendee)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
}

func (d *DB) CountCheckedIn(ctx context.Context, eventID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Attendee)(nil)).
		Where("event_id = ?", eventID).
		Where("checked_in_at IS NOT NULL").
		Count(ctx)
}
