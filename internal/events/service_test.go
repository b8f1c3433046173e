package events_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-checkin/internal/checkin"
	checkindb "ms-checkin/internal/checkin/db"
	"ms-checkin/internal/config"
	"ms-checkin/internal/credentials"
	"ms-checkin/internal/events"
	eventsdb "ms-checkin/internal/events/db"
	"ms-checkin/internal/models"
)

func testTokenConfig() config.TokenConfig {
	return config.TokenConfig{
		AttendeeCredentialBytes: credentials.AttendeeCredentialBytes,
		ScannerKeyBytes:         credentials.ScannerKeyBytes,
		MaxAttempts:             credentials.DefaultMaxAttempts,
	}
}

func setupService(t *testing.T) (*events.Service, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	require.NoError(t, bunDB.ResetModel(ctx, (*models.User)(nil)))
	require.NoError(t, bunDB.ResetModel(ctx, (*models.Event)(nil)))
	require.NoError(t, bunDB.ResetModel(ctx, (*models.Attendee)(nil)))

	t.Cleanup(func() { bunDB.Close() })

	return events.NewService(&eventsdb.DB{Bun: bunDB}, testTokenConfig(), nil), bunDB
}

func addAttendee(t *testing.T, bunDB *bun.DB, eventID, name, credential string) *models.Attendee {
	t.Helper()
	attendee := &models.Attendee{
		ID:                "att-" + credential,
		EventID:           eventID,
		FullName:          name,
		CheckinCredential: credential,
		CreatedAt:         time.Now().UTC(),
	}
	_, err := bunDB.NewInsert().Model(attendee).Exec(context.Background())
	require.NoError(t, err)
	return attendee
}

func TestCreateEventIssuesScannerKey(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, "owner-1", events.CreateEventInput{Name: "DevFest", Venue: "BMICH"})
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "owner-1", event.OwnerUserID)
	// 24 bytes of entropy encode to 32 unpadded URL-safe characters.
	assert.Len(t, event.ScannerKey, 32)

	stored, err := svc.GetOwnedEvent(ctx, event.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, event.ScannerKey, stored.ScannerKey)
}

func TestGetOwnedEventChecksOwnership(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, "owner-1", events.CreateEventInput{Name: "DevFest"})
	require.NoError(t, err)

	_, err = svc.GetOwnedEvent(ctx, event.ID, "owner-2")
	assert.ErrorIs(t, err, events.ErrNotOwner)

	_, err = svc.GetOwnedEvent(ctx, "no-such-event", "owner-1")
	assert.ErrorIs(t, err, events.ErrNotFound)
}

func TestListEventsPaginates(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateEvent(ctx, "owner-1", events.CreateEventInput{Name: "Event"})
		require.NoError(t, err)
	}
	_, err := svc.CreateEvent(ctx, "owner-2", events.CreateEventInput{Name: "Someone else's"})
	require.NoError(t, err)

	page, err := svc.ListEvents(ctx, "owner-1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)

	page, err = svc.ListEvents(ctx, "owner-3", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestRotateScannerKeyInvalidatesOldKey(t *testing.T) {
	svc, bunDB := setupService(t)
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, "owner-1", events.CreateEventInput{Name: "DevFest"})
	require.NoError(t, err)
	oldKey := event.ScannerKey

	addAttendee(t, bunDB, event.ID, "Amara Silva", "tok-A1")

	newKey, err := svc.RotateScannerKey(ctx, event.ID, "owner-1")
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, newKey)

	// The old key stops working the moment rotation commits.
	checkinSvc := checkin.NewService(&checkindb.DB{Bun: bunDB}, nil, nil)

	_, err = checkinSvc.Checkin(ctx, "tok-A1", checkin.AsScanner(oldKey))
	assert.ErrorIs(t, err, checkin.ErrScannerKey)

	result, err := checkinSvc.Checkin(ctx, "tok-A1", checkin.AsScanner(newKey))
	require.NoError(t, err)
	assert.False(t, result.AlreadyCheckedIn)
}

func TestRotateScannerKeyOwnerOnly(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, "owner-1", events.CreateEventInput{Name: "DevFest"})
	require.NoError(t, err)

	_, err = svc.RotateScannerKey(ctx, event.ID, "owner-2")
	assert.ErrorIs(t, err, events.ErrNotOwner)

	// Unchanged after the denied attempt.
	key, err := svc.ScannerKey(ctx, event.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, event.ScannerKey, key)
}

func TestStatsIdentity(t *testing.T) {
	svc, bunDB := setupService(t)
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, "owner-1", events.CreateEventInput{Name: "DevFest"})
	require.NoError(t, err)

	addAttendee(t, bunDB, event.ID, "Amara Silva", "tok-A1")
	addAttendee(t, bunDB, event.ID, "Nimal Perera", "tok-A2")

	stats, err := svc.Stats(ctx, event.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, events.EventStats{Total: 2, CheckedIn: 0, NotCheckedIn: 2}, *stats)

	checkinSvc := checkin.NewService(&checkindb.DB{Bun: bunDB}, nil, nil)
	_, err = checkinSvc.Checkin(ctx, "tok-A1", checkin.AsScanner(event.ScannerKey))
	require.NoError(t, err)

	stats, err = svc.Stats(ctx, event.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, events.EventStats{Total: 2, CheckedIn: 1, NotCheckedIn: 1}, *stats)
	assert.Equal(t, stats.Total, stats.CheckedIn+stats.NotCheckedIn)

	// Repeat check-in does not inflate the counts.
	_, err = checkinSvc.Checkin(ctx, "tok-A1", checkin.AsScanner(event.ScannerKey))
	require.NoError(t, err)

	stats, err = svc.Stats(ctx, event.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CheckedIn)
}

func TestStatsOwnerOnly(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, "owner-1", events.CreateEventInput{Name: "DevFest"})
	require.NoError(t, err)

	_, err = svc.Stats(ctx, event.ID, "owner-2")
	assert.ErrorIs(t, err, events.ErrNotOwner)
}

func TestStatsEmptyEvent(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, "owner-1", events.CreateEventInput{Name: "DevFest"})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, event.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, events.EventStats{}, *stats)
}
