package checkin

type callerKind int

const (
	callerScanner callerKind = iota
	callerOrganizer
)

// Caller is the credential set presented with a check-in request: either an
// authenticated organizer identity, or an anonymous scanning device holding
// at most a scanner key. Keeping it a closed variant instead of two nullable
// fields makes the authorization decision table exhaustive.
type Caller struct {
	kind        callerKind
	organizerID string
	scannerKey  string
}

// AsOrganizer returns an authenticated caller.
func AsOrganizer(organizerID string) Caller {
	return Caller{kind: callerOrganizer, organizerID: organizerID}
}

// AsScanner returns an anonymous caller presenting a scanner key. The key
// may be empty.
func AsScanner(scannerKey string) Caller {
	return Caller{kind: callerScanner, scannerKey: scannerKey}
}

// Anonymous returns a caller with no credentials at all.
func Anonymous() Caller {
	return Caller{kind: callerScanner}
}

// Authenticated reports whether the caller carries an organizer identity.
func (c Caller) Authenticated() bool {
	return c.kind == callerOrganizer
}
