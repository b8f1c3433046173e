package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-checkin/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateAttendee(ctx context.Context, attendee models.Attendee) error {
	_, err := d.Bun.NewInsert().Model(&attendee).Exec(ctx)
	return err
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

func (d *DB) ListAttendees(ctx context.Context, eventID, search string, limit, offset int) ([]models.Attendee, int, error) {
	var attendees []models.Attendee
	query := d.Bun.NewSelect().
		Model(&attendees).
		Where("event_id = ?", eventID)

	if search != "" {
		// lower() instead of ILIKE so the same query works on the SQLite
		// test backend.
		like := "%" + search + "%"
		query = query.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("lower(full_name) LIKE lower(?)", like).
				WhereOr("lower(email) LIKE lower(?)", like)
		})
	}

	total, err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return attendees, total, nil
}

func (d *DB) CredentialExists(ctx context.Context, credential string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Attendee)(nil)).
		Where("checkin_credential = ?", credential).
		Exists(ctx)
}
