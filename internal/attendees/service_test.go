package attendees_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-checkin/internal/attendees"
	attendeesdb "ms-checkin/internal/attendees/db"
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

func setupService(t *testing.T) (*attendees.Service, *events.Service) {
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

	eventSvc := events.NewService(&eventsdb.DB{Bun: bunDB}, testTokenConfig(), nil)
	attendeeSvc := attendees.NewService(&attendeesdb.DB{Bun: bunDB}, eventSvc, testTokenConfig(), nil)
	return attendeeSvc, eventSvc
}

func createEvent(t *testing.T, eventSvc *events.Service, ownerID string) *models.Event {
	t.Helper()
	event, err := eventSvc.CreateEvent(context.Background(), ownerID, events.CreateEventInput{Name: "DevFest"})
	require.NoError(t, err)
	return event
}

func TestCreateAttendeeIssuesCredential(t *testing.T) {
	svc, eventSvc := setupService(t)
	ctx := context.Background()
	event := createEvent(t, eventSvc, "owner-1")

	attendee, err := svc.CreateAttendee(ctx, "owner-1", event.ID, attendees.CreateAttendeeInput{
		FullName: "Amara Silva",
		Email:    "amara@example.com",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, attendee.ID)
	assert.Equal(t, event.ID, attendee.EventID)
	// 32 bytes of entropy encode to 43 unpadded URL-safe characters.
	assert.Len(t, attendee.CheckinCredential, 43)
	assert.Nil(t, attendee.CheckedInAt)
}

func TestCreateAttendeeOwnerOnly(t *testing.T) {
	svc, eventSvc := setupService(t)
	event := createEvent(t, eventSvc, "owner-1")

	_, err := svc.CreateAttendee(context.Background(), "owner-2", event.ID, attendees.CreateAttendeeInput{FullName: "X"})
	assert.ErrorIs(t, err, events.ErrNotOwner)
}

func TestBulkCreateAttendees(t *testing.T) {
	svc, eventSvc := setupService(t)
	ctx := context.Background()
	event := createEvent(t, eventSvc, "owner-1")

	inputs := []attendees.CreateAttendeeInput{
		{FullName: "Amara Silva"},
		{FullName: "Nimal Perera"},
		{FullName: "Kamala Fernando"},
	}
	created, err := svc.BulkCreateAttendees(ctx, "owner-1", event.ID, inputs)
	require.NoError(t, err)
	require.Len(t, created, 3)

	seen := make(map[string]bool)
	for _, a := range created {
		assert.False(t, seen[a.CheckinCredential], "credentials must be unique within the batch")
		seen[a.CheckinCredential] = true
	}

	_, err = svc.BulkCreateAttendees(ctx, "owner-1", event.ID, nil)
	assert.ErrorIs(t, err, attendees.ErrEmptyBatch)

	tooMany := make([]attendees.CreateAttendeeInput, attendees.MaxBulkCreate+1)
	_, err = svc.BulkCreateAttendees(ctx, "owner-1", event.ID, tooMany)
	assert.ErrorIs(t, err, attendees.ErrBatchTooLarge)
}

func TestListAttendeesSearch(t *testing.T) {
	svc, eventSvc := setupService(t)
	ctx := context.Background()
	event := createEvent(t, eventSvc, "owner-1")

	_, err := svc.BulkCreateAttendees(ctx, "owner-1", event.ID, []attendees.CreateAttendeeInput{
		{FullName: "Amara Silva", Email: "amara@example.com"},
		{FullName: "Nimal Perera", Email: "nimal@example.com"},
		{FullName: "Kamala Fernando"},
	})
	require.NoError(t, err)

	page, err := svc.ListAttendees(ctx, "owner-1", event.ID, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 3)

	page, err = svc.ListAttendees(ctx, "owner-1", event.ID, "amara", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Amara Silva", page.Items[0].FullName)

	// Search matches email too.
	page, err = svc.ListAttendees(ctx, "owner-1", event.ID, "nimal@", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestGetAttendeeScopedToEvent(t *testing.T) {
	svc, eventSvc := setupService(t)
	ctx := context.Background()
	event := createEvent(t, eventSvc, "owner-1")
	other := createEvent(t, eventSvc, "owner-1")

	attendee, err := svc.CreateAttendee(ctx, "owner-1", event.ID, attendees.CreateAttendeeInput{FullName: "Amara Silva"})
	require.NoError(t, err)

	found, err := svc.GetAttendee(ctx, "owner-1", event.ID, attendee.ID)
	require.NoError(t, err)
	assert.Equal(t, attendee.ID, found.ID)

	// The same attendee read through a different event is not found.
	_, err = svc.GetAttendee(ctx, "owner-1", other.ID, attendee.ID)
	assert.ErrorIs(t, err, attendees.ErrNotFound)
}

func TestQRPayloadIsTheCredential(t *testing.T) {
	svc, eventSvc := setupService(t)
	ctx := context.Background()
	event := createEvent(t, eventSvc, "owner-1")

	attendee, err := svc.CreateAttendee(ctx, "owner-1", event.ID, attendees.CreateAttendeeInput{FullName: "Amara Silva"})
	require.NoError(t, err)

	payload, err := svc.QRPayload(ctx, "owner-1", event.ID, attendee.ID)
	require.NoError(t, err)
	assert.Equal(t, attendee.CheckinCredential, payload)
}

// collidingDB simulates losing the check-to-insert window: the first insert
// attempts fail with a unique violation even though the pre-check passed.
type collidingDB struct {
	attendees.DBLayer
	failures int
	inserts  int
}

func (c *collidingDB) CreateAttendee(ctx context.Context, attendee models.Attendee) error {
	c.inserts++
	if c.inserts <= c.failures {
		return errors.New(`pq: duplicate key value violates unique constraint "attendees_checkin_credential_key"`)
	}
	return c.DBLayer.CreateAttendee(ctx, attendee)
}

func TestCreateAttendeeRetriesOnInsertCollision(t *testing.T) {
	svc, eventSvc := setupService(t)
	ctx := context.Background()
	event := createEvent(t, eventSvc, "owner-1")

	colliding := &collidingDB{DBLayer: svc.DB, failures: 2}
	svc = attendees.NewService(colliding, eventSvc, testTokenConfig(), nil)

	attendee, err := svc.CreateAttendee(ctx, "owner-1", event.ID, attendees.CreateAttendeeInput{FullName: "Amara Silva"})
	require.NoError(t, err)
	assert.NotEmpty(t, attendee.CheckinCredential)
	assert.Equal(t, 3, colliding.inserts)
}

func TestCreateAttendeeGivesUpAfterRepeatedCollisions(t *testing.T) {
	svc, eventSvc := setupService(t)
	ctx := context.Background()
	event := createEvent(t, eventSvc, "owner-1")

	colliding := &collidingDB{DBLayer: svc.DB, failures: 1000}
	svc = attendees.NewService(colliding, eventSvc, testTokenConfig(), nil)

	_, err := svc.CreateAttendee(ctx, "owner-1", event.ID, attendees.CreateAttendeeInput{FullName: "Amara Silva"})
	assert.ErrorIs(t, err, credentials.ErrExhaustedRetries)
	assert.Equal(t, credentials.DefaultMaxAttempts, colliding.inserts)
}
