package attendees

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-checkin/internal/config"
	"ms-checkin/internal/credentials"
	"ms-checkin/internal/database"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

var (
	ErrNotFound = errors.New("attendee not found")
	// ErrEmptyBatch rejects bulk requests with nothing to create.
	ErrEmptyBatch = errors.New("no attendees to create")
	// ErrBatchTooLarge caps a single bulk request.
	ErrBatchTooLarge = errors.New("too many attendees in one request")
)

// MaxBulkCreate is the upper bound on one bulk-create request.
const MaxBulkCreate = 500

type DBLayer interface {
	CreateAttendee(ctx context.Context, attendee models.Attendee) error
	GetAttendee(ctx context.Context, attendeeID string) (*models.Attendee, error)
	ListAttendees(ctx context.Context, eventID, search string, limit, offset int) ([]models.Attendee, int, error)
	CredentialExists(ctx context.Context, credential string) (bool, error)
}

// EventGuard verifies that the caller owns the event being acted on.
type EventGuard interface {
	GetOwnedEvent(ctx context.Context, eventID, ownerID string) (*models.Event, error)
}

type CreateAttendeeInput struct {
	FullName string
	Email    string
}

type AttendeePage struct {
	Items  []models.Attendee `json:"items"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
	Total  int               `json:"total"`
}

type Service struct {
	DB     DBLayer
	Events EventGuard
	Tokens config.TokenConfig
	Logger *logger.Logger
}

func NewService(db DBLayer, events EventGuard, tokens config.TokenConfig, log *logger.Logger) *Service {
	return &Service{DB: db, Events: events, Tokens: tokens, Logger: log}
}

// CreateAttendee registers one attendee with a freshly issued check-in
// credential. An insert losing the check-to-insert window on the
// credential's unique constraint is retried with a fresh token, bounded by
// MaxAttempts.
func (s *Service) CreateAttendee(ctx context.Context, ownerID, eventID string, in CreateAttendeeInput) (*models.Attendee, error) {
	if _, err := s.Events.GetOwnedEvent(ctx, eventID, ownerID); err != nil {
		return nil, err
	}
	return s.createOne(ctx, eventID, in)
}

// BulkCreateAttendees registers a batch under one ownership check. Creation
// stops at the first failure; rows created before it remain.
func (s *Service) BulkCreateAttendees(ctx context.Context, ownerID, eventID string, inputs []CreateAttendeeInput) ([]models.Attendee, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(inputs) > MaxBulkCreate {
		return nil, ErrBatchTooLarge
	}
	if _, err := s.Events.GetOwnedEvent(ctx, eventID, ownerID); err != nil {
		return nil, err
	}

	created := make([]models.Attendee, 0, len(inputs))
	for _, in := range inputs {
		attendee, err := s.createOne(ctx, eventID, in)
		if err != nil {
			return nil, fmt.Errorf("attendees: bulk create stopped after %d of %d: %w", len(created), len(inputs), err)
		}
		created = append(created, *attendee)
	}
	return created, nil
}

func (s *Service) createOne(ctx context.Context, eventID string, in CreateAttendeeInput) (*models.Attendee, error) {
	for attempt := 0; attempt < s.Tokens.MaxAttempts; attempt++ {
		token, err := credentials.IssueUnique(ctx, s.DB.CredentialExists, s.Tokens.AttendeeCredentialBytes, s.Tokens.MaxAttempts)
		if err != nil {
			return nil, err
		}

		attendee := models.Attendee{
			ID:                uuid.New().String(),
			EventID:           eventID,
			FullName:          in.FullName,
			Email:             in.Email,
			CheckinCredential: token,
			CreatedAt:         time.Now().UTC(),
		}

		err = s.DB.CreateAttendee(ctx, attendee)
		if err == nil {
			return &attendee, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("attendees: create: %w", err)
		}
		// Another writer claimed the token between check and insert; next
		// attempt gets a fresh one.
	}
	return nil, credentials.ErrExhaustedRetries
}

func (s *Service) ListAttendees(ctx context.Context, ownerID, eventID, search string, limit, offset int) (*AttendeePage, error) {
	if _, err := s.Events.GetOwnedEvent(ctx, eventID, ownerID); err != nil {
		return nil, err
	}

	items, total, err := s.DB.ListAttendees(ctx, eventID, strings.TrimSpace(search), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("attendees: list for event %s: %w", eventID, err)
	}
	if items == nil {
		items = []models.Attendee{}
	}
	return &AttendeePage{Items: items, Limit: limit, Offset: offset, Total: total}, nil
}

// GetAttendee returns one attendee of the owner's event. An attendee
// belonging to a different event reads as not found.
func (s *Service) GetAttendee(ctx context.Context, ownerID, eventID, attendeeID string) (*models.Attendee, error) {
	if _, err := s.Events.GetOwnedEvent(ctx, eventID, ownerID); err != nil {
		return nil, err
	}

	attendee, err := s.DB.GetAttendee(ctx, attendeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("attendees: load %s: %w", attendeeID, err)
	}
	if attendee.EventID != eventID {
		return nil, ErrNotFound
	}
	return attendee, nil
}

// QRPayload returns the opaque string the caller encodes into a QR image.
// Rendering the image itself is out of scope; the payload is just the
// check-in credential.
func (s *Service) QRPayload(ctx context.Context, ownerID, eventID, attendeeID string) (string, error) {
	attendee, err := s.GetAttendee(ctx, ownerID, eventID, attendeeID)
	if err != nil {
		return "", err
	}
	return attendee.CheckinCredential, nil
}
