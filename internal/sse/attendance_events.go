package sse

import (
	"context"
	"sync"
	"time"
)

// AttendanceUpdate is pushed to live subscribers after every winning
// check-in. Counts satisfy Total == CheckedIn + NotCheckedIn.
type AttendanceUpdate struct {
	EventID      string    `json:"event_id"`
	AttendeeID   string    `json:"attendee_id"`
	FullName     string    `json:"full_name"`
	CheckedInAt  time.Time `json:"checked_in_at"`
	Total        int       `json:"total"`
	CheckedIn    int       `json:"checked_in"`
	NotCheckedIn int       `json:"not_checked_in"`
}

// AttendanceEmitter manages SSE connections and broadcasts attendance
// updates to clients watching an event.
type AttendanceEmitter struct {
	eventClients     map[string][]chan AttendanceUpdate
	eventClientMutex sync.RWMutex
}

func NewAttendanceEmitter() *AttendanceEmitter {
	return &AttendanceEmitter{
		eventClients: make(map[string][]chan AttendanceUpdate),
	}
}

// SubscribeToEvent adds a client to the event's attendance updates. The
// returned channel is closed when ctx is done.
func (e *AttendanceEmitter) SubscribeToEvent(ctx context.Context, eventID string) chan AttendanceUpdate {
	clientChan := make(chan AttendanceUpdate, 10)

	e.eventClientMutex.Lock()
	e.eventClients[eventID] = append(e.eventClients[eventID], clientChan)
	e.eventClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeEventClient(eventID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts an attendance update to all subscribed clients. The read
// lock is held through the sends so an unsubscribing client cannot close its
// channel mid-broadcast; the sends are non-blocking, so the lock is never
// held for long and a slow client never stalls the emitter.
func (e *AttendanceEmitter) Emit(update AttendanceUpdate) {
	e.eventClientMutex.RLock()
	defer e.eventClientMutex.RUnlock()

	for _, clientChan := range e.eventClients[update.EventID] {
		select {
		case clientChan <- update:
		default:
		}
	}
}

func (e *AttendanceEmitter) removeEventClient(eventID string, clientChan chan AttendanceUpdate) {
	e.eventClientMutex.Lock()
	defer e.eventClientMutex.Unlock()

	clients := e.eventClients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.eventClients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.eventClients[eventID]) == 0 {
		delete(e.eventClients, eventID)
	}
}

// EventClientCount returns the number of clients currently watching an event.
func (e *AttendanceEmitter) EventClientCount(eventID string) int {
	e.eventClientMutex.RLock()
	defer e.eventClientMutex.RUnlock()
	return len(e.eventClients[eventID])
}
