package checkin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

var (
	// ErrInvalidCredential covers both malformed and never-issued tokens so
	// responses don't leak which tokens are close to valid.
	ErrInvalidCredential = errors.New("invalid check-in credential")
	// ErrEventMissing should not occur under referential integrity.
	ErrEventMissing = errors.New("event not found")
)

// DBLayer is the storage surface the check-in engine needs. All coordination
// between concurrent callers lives in SetCheckedInIfPending; the service
// itself holds no locks and no state. The backend must provide at least
// read-committed visibility so a loser's re-read sees the winner's write.
type DBLayer interface {
	GetAttendeeByCredential(ctx context.Context, credential string) (*models.Attendee, error)
	GetAttendee(ctx context.Context, attendeeID string) (*models.Attendee, error)
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	SetCheckedInIfPending(ctx context.Context, attendeeID string, now time.Time) (bool, error)
}

// Publisher is notified after every winning transition. Implementations must
// not fail the check-in; delivery is best effort.
type Publisher interface {
	CheckinRecorded(ctx context.Context, result Result)
}

// Result is the response returned to every caller, winner or loser.
type Result struct {
	AttendeeID       string    `json:"attendee_id"`
	EventID          string    `json:"event_id"`
	FullName         string    `json:"full_name"`
	CheckedInAt      time.Time `json:"checked_in_at"`
	AlreadyCheckedIn bool      `json:"already_checked_in"`
}

type Service struct {
	DB        DBLayer
	Publisher Publisher
	Logger    *logger.Logger
}

func NewService(db DBLayer, publisher Publisher, log *logger.Logger) *Service {
	return &Service{
		DB:        db,
		Publisher: publisher,
		Logger:    log,
	}
}

// Checkin transitions the attendee identified by credential to checked-in
// exactly once. Concurrent and repeated calls all receive the same
// checked_in_at; exactly one of them sees AlreadyCheckedIn == false.
// Contention is never surfaced as an error.
func (s *Service) Checkin(ctx context.Context, credential string, caller Caller) (*Result, error) {
	attendee, err := s.DB.GetAttendeeByCredential(ctx, credential)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("checkin: lookup by credential: %w", err)
	}

	event, err := s.DB.GetEvent(ctx, attendee.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventMissing
		}
		return nil, fmt.Errorf("checkin: load event %s: %w", attendee.EventID, err)
	}

	if err := authorize(event, caller); err != nil {
		if s.Logger != nil {
			s.Logger.LogSecurity("CHECKIN_DENIED", fmt.Sprintf("attendee %s: %v", attendee.ID, err))
		}
		return nil, err
	}

	// Idempotency fast path: already latched, no write needed. Correctness
	// does not depend on this read being fresh; the guarded update below is
	// the authority.
	if attendee.CheckedInAt != nil {
		return s.result(attendee, *attendee.CheckedInAt, true), nil
	}

	now := time.Now().UTC()
	modified, err := s.DB.SetCheckedInIfPending(ctx, attendee.ID, now)
	if err != nil {
		return nil, fmt.Errorf("checkin: conditional update for attendee %s: %w", attendee.ID, err)
	}

	if !modified {
		// Lost the race. The winner's timestamp is committed by now, so
		// re-read it and answer idempotently.
		current, err := s.DB.GetAttendee(ctx, attendee.ID)
		if err != nil {
			return nil, fmt.Errorf("checkin: re-read attendee %s: %w", attendee.ID, err)
		}
		if current.CheckedInAt == nil {
			return nil, fmt.Errorf("checkin: attendee %s still pending after lost conditional write", attendee.ID)
		}
		return s.result(attendee, *current.CheckedInAt, true), nil
	}

	result := s.result(attendee, now, false)

	if s.Logger != nil {
		s.Logger.LogCheckin("RECORDED", attendee.ID, fmt.Sprintf("event %s", attendee.EventID))
	}
	if s.Publisher != nil {
		s.Publisher.CheckinRecorded(ctx, *result)
	}

	return result, nil
}

func (s *Service) result(attendee *models.Attendee, checkedInAt time.Time, already bool) *Result {
	return &Result{
		AttendeeID:       attendee.ID,
		EventID:          attendee.EventID,
		FullName:         attendee.FullName,
		CheckedInAt:      checkedInAt,
		AlreadyCheckedIn: already,
	}
}
