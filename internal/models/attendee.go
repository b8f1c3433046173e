package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Attendee struct {
	bun.BaseModel `bun:"table:attendees"`

	ID       string `bun:"id,pk" json:"id"`
	EventID  string `bun:"event_id,notnull" json:"event_id"`
	FullName string `bun:"full_name,notnull" json:"full_name"`
	Email    string `bun:"email,nullzero" json:"email,omitempty"`

	// Per-attendee door token, globally unique and immutable after creation.
	CheckinCredential string `bun:"checkin_credential,unique,notnull" json:"checkin_credential"`

	// One-way latch: nil until the first successful check-in, then fixed.
	CheckedInAt *time.Time `bun:"checked_in_at,nullzero" json:"checked_in_at"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id" json:"-"`
}
