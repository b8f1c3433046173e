package checkin

import (
	"crypto/subtle"
	"errors"

	"ms-checkin/internal/models"
)

var (
	// ErrNotOwner denies an authenticated caller who does not own the event.
	ErrNotOwner = errors.New("not the event owner")
	// ErrScannerKey denies an anonymous caller whose scanner key is missing
	// or does not match the event's current key.
	ErrScannerKey = errors.New("missing or invalid scanner key")
)

// authorize applies the dual-mode policy: an authenticated organizer must own
// the event and the scanner key is never consulted for them; an anonymous
// caller must present the event's current scanner key. Rotation takes effect
// immediately because the event row is always read fresh.
func authorize(event *models.Event, caller Caller) error {
	switch caller.kind {
	case callerOrganizer:
		if caller.organizerID != event.OwnerUserID {
			return ErrNotOwner
		}
		return nil
	default:
		if caller.scannerKey == "" {
			return ErrScannerKey
		}
		if subtle.ConstantTimeCompare([]byte(caller.scannerKey), []byte(event.ScannerKey)) != 1 {
			return ErrScannerKey
		}
		return nil
	}
}
