package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string     `bun:"id,pk" json:"id"`
	OwnerUserID string     `bun:"owner_user_id,notnull" json:"owner_user_id"`
	Name        string     `bun:"name,notnull" json:"name"`
	Venue       string     `bun:"venue,nullzero" json:"venue,omitempty"`
	StartTime   *time.Time `bun:"start_time,nullzero" json:"start_time,omitempty"`

	// Shared secret presented by anonymous scanning devices. Rotatable;
	// never serialized except through the scanner-key endpoints.
	ScannerKey string `bun:"scanner_key,unique,notnull" json:"-"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`

	Owner *User `bun:"rel:belongs-to,join:owner_user_id=id" json:"-"`
}
