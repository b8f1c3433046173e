package event_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-checkin/internal/auth"
	"ms-checkin/internal/events"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/sse"
)

// LiveHandler streams attendance updates for an event over Server-Sent
// Events. Owner-only, like the stats endpoint it complements.
type LiveHandler struct {
	EventService *events.Service
	Emitter      *sse.AttendanceEmitter
	Logger       *logger.Logger
}

func NewLiveHandler(eventService *events.Service, emitter *sse.AttendanceEmitter, log *logger.Logger) *LiveHandler {
	return &LiveHandler{
		EventService: eventService,
		Emitter:      emitter,
		Logger:       log,
	}
}

// HandleEventAttendance streams an update for every winning check-in on the
// event until the client disconnects.
func (h *LiveHandler) HandleEventAttendance(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	if _, err := h.EventService.GetOwnedEvent(r.Context(), eventID, auth.UserID(r.Context())); err != nil {
		writeEventError(w, err, h.Logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	updateChan := h.Emitter.SubscribeToEvent(ctx, eventID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"event_id\":\"%s\"}\n\n", eventID)
	flusher.Flush()

	if h.Logger != nil {
		h.Logger.Info("SSE", fmt.Sprintf("Client connected to attendance stream for event %s", eventID))
	}

	for {
		select {
		case update, ok := <-updateChan:
			if !ok {
				return
			}

			jsonData, err := json.Marshal(update)
			if err != nil {
				if h.Logger != nil {
					h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize attendance update: %v", err))
				}
				continue
			}

			fmt.Fprintf(w, "event: attendance\ndata: %s\n\n", jsonData)
			flusher.Flush()

		case <-ctx.Done():
			if h.Logger != nil {
				h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from attendance stream for event %s", eventID))
			}
			return
		}
	}
}
