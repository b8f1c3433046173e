package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-checkin/internal/config"
	"ms-checkin/internal/credentials"
	"ms-checkin/internal/database"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

var (
	ErrNotFound = errors.New("event not found")
	ErrNotOwner = errors.New("not the event owner")
)

type DBLayer interface {
	CreateEvent(ctx context.Context, event models.Event) error
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	ListEventsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Event, int, error)
	UpdateScannerKey(ctx context.Context, eventID, scannerKey string) error
	ScannerKeyExists(ctx context.Context, scannerKey string) (bool, error)
	CountAttendees(ctx context.Context, eventID string) (int, error)
	CountCheckedIn(ctx context.Context, eventID string) (int, error)
}

// EventStats holds attendance counts for one event. NotCheckedIn is always
// derived from the other two, so the identity Total == CheckedIn +
// NotCheckedIn holds structurally even while check-ins land concurrently.
type EventStats struct {
	Total        int `json:"total"`
	CheckedIn    int `json:"checked_in"`
	NotCheckedIn int `json:"not_checked_in"`
}

type CreateEventInput struct {
	Name      string
	Venue     string
	StartTime *time.Time
}

type EventPage struct {
	Items  []models.Event `json:"items"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Total  int            `json:"total"`
}

type Service struct {
	DB     DBLayer
	Tokens config.TokenConfig
	Logger *logger.Logger
}

func NewService(db DBLayer, tokens config.TokenConfig, log *logger.Logger) *Service {
	return &Service{DB: db, Tokens: tokens, Logger: log}
}

// CreateEvent creates an event owned by ownerID with a freshly issued
// scanner key. An insert that loses the check-to-insert window on the key's
// unique constraint is retried with a fresh key, bounded by MaxAttempts.
func (s *Service) CreateEvent(ctx context.Context, ownerID string, in CreateEventInput) (*models.Event, error) {
	for attempt := 0; attempt < s.Tokens.MaxAttempts; attempt++ {
		key, err := credentials.IssueUnique(ctx, s.DB.ScannerKeyExists, s.Tokens.ScannerKeyBytes, s.Tokens.MaxAttempts)
		if err != nil {
			return nil, err
		}

		event := models.Event{
			ID:          uuid.New().String(),
			OwnerUserID: ownerID,
			Name:        in.Name,
			Venue:       in.Venue,
			StartTime:   in.StartTime,
			ScannerKey:  key,
			CreatedAt:   time.Now().UTC(),
		}

		err = s.DB.CreateEvent(ctx, event)
		if err == nil {
			if s.Logger != nil {
				s.Logger.LogDatabase("INSERT", "events", fmt.Sprintf("event %s created by %s", event.ID, ownerID))
			}
			return &event, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("events: create event: %w", err)
		}
	}
	return nil, credentials.ErrExhaustedRetries
}

// GetOwnedEvent loads an event and verifies ownership.
func (s *Service) GetOwnedEvent(ctx context.Context, eventID, ownerID string) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("events: load event %s: %w", eventID, err)
	}
	if event.OwnerUserID != ownerID {
		return nil, ErrNotOwner
	}
	return event, nil
}

func (s *Service) ListEvents(ctx context.Context, ownerID string, limit, offset int) (*EventPage, error) {
	items, total, err := s.DB.ListEventsByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("events: list for owner %s: %w", ownerID, err)
	}
	if items == nil {
		items = []models.Event{}
	}
	return &EventPage{Items: items, Limit: limit, Offset: offset, Total: total}, nil
}

// ScannerKey returns the event's current scanner key to its owner.
func (s *Service) ScannerKey(ctx context.Context, eventID, ownerID string) (string, error) {
	event, err := s.GetOwnedEvent(ctx, eventID, ownerID)
	if err != nil {
		return "", err
	}
	return event.ScannerKey, nil
}

// RotateScannerKey replaces the event's scanner key. The previous value is
// invalid the instant the update commits; there is no grace period.
func (s *Service) RotateScannerKey(ctx context.Context, eventID, ownerID string) (string, error) {
	event, err := s.GetOwnedEvent(ctx, eventID, ownerID)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < s.Tokens.MaxAttempts; attempt++ {
		key, err := credentials.IssueUnique(ctx, s.DB.ScannerKeyExists, s.Tokens.ScannerKeyBytes, s.Tokens.MaxAttempts)
		if err != nil {
			return "", err
		}

		err = s.DB.UpdateScannerKey(ctx, event.ID, key)
		if err == nil {
			if s.Logger != nil {
				s.Logger.LogSecurity("SCANNER_KEY_ROTATED", fmt.Sprintf("event %s", event.ID))
			}
			return key, nil
		}
		if !database.IsUniqueViolation(err) {
			return "", fmt.Errorf("events: rotate scanner key for %s: %w", event.ID, err)
		}
	}
	return "", credentials.ErrExhaustedRetries
}

// Stats returns attendance counts for the owner.
func (s *Service) Stats(ctx context.Context, eventID, ownerID string) (*EventStats, error) {
	if _, err := s.GetOwnedEvent(ctx, eventID, ownerID); err != nil {
		return nil, err
	}
	return s.CountsForEvent(ctx, eventID)
}

// CountsForEvent computes the stats without an ownership check; used by
// Stats and by internal consumers such as the live-attendance notifier.
func (s *Service) CountsForEvent(ctx context.Context, eventID string) (*EventStats, error) {
	total, err := s.DB.CountAttendees(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("events: count attendees for %s: %w", eventID, err)
	}
	checkedIn, err := s.DB.CountCheckedIn(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("events: count checked-in for %s: %w", eventID, err)
	}

	return &EventStats{
		Total:        total,
		CheckedIn:    checkedIn,
		NotCheckedIn: total - checkedIn,
	}, nil
}
