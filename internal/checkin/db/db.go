package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-checkin/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetAttendeeByCredential(ctx context.Context, credential string) (*models.Attendee, error) {
	var attendee models.Attendee
	err := d.Bun.NewSelect().
		Model(&attendee).
		Where("checkin_credential = ?", credential).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &attendee, nil
}

func (d *DB) GetAttendee(ctx context.Context, attendeeID string) (*models.Attendee, error) {
	var attendee models.Attendee
	err := d.Bun.NewSelect().
		Model(&attendee).
		Where("id = ?", attendeeID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &attendee, nil
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

// SetCheckedInIfPending performs the guarded one-way transition as a single
// conditional UPDATE. Of any number of concurrent callers exactly one gets
// a modified row; the rest see zero rows because the NULL predicate no
// longer holds when their own update is evaluated.
func (d *DB) SetCheckedInIfPending(ctx context.Context, attendeeID string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Attendee)(nil)).
		Set("checked_in_at = ?", now).
		Where("id = ?", attendeeID).
		Where("checked_in_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
