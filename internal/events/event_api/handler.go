package event_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-checkin/internal/auth"
	"ms-checkin/internal/credentials"
	"ms-checkin/internal/events"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/utils"
)

type Handler struct {
	EventService *events.Service
	Logger       *logger.Logger
}

type createEventRequest struct {
	Name      string     `json:"name"`
	Venue     string     `json:"venue"`
	StartTime *time.Time `json:"start_time"`
}

type scannerKeyResponse struct {
	ScannerKey string `json:"scanner_key"`
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || len(req.Name) > 200 {
		utils.Error(w, http.StatusBadRequest, "name must be 1-200 characters")
		return
	}

	event, err := h.EventService.CreateEvent(r.Context(), auth.UserID(r.Context()), events.CreateEventInput{
		Name:      req.Name,
		Venue:     req.Venue,
		StartTime: req.StartTime,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusCreated, event)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := utils.ParseLimitOffset(r, 20, 100)

	page, err := h.EventService.ListEvents(r.Context(), auth.UserID(r.Context()), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, page)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	event, err := h.EventService.GetOwnedEvent(r.Context(), eventID, auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, event)
}

func (h *Handler) GetScannerKey(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	key, err := h.EventService.ScannerKey(r.Context(), eventID, auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, scannerKeyResponse{ScannerKey: key})
}

func (h *Handler) RotateScannerKey(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	key, err := h.EventService.RotateScannerKey(r.Context(), eventID, auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, scannerKeyResponse{ScannerKey: key})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	stats, err := h.EventService.Stats(r.Context(), eventID, auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, stats)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	writeEventError(w, err, h.Logger)
}

func writeEventError(w http.ResponseWriter, err error, log *logger.Logger) {
	switch {
	case errors.Is(err, events.ErrNotFound):
		utils.Error(w, http.StatusNotFound, "event not found")
	case errors.Is(err, events.ErrNotOwner):
		utils.Error(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, credentials.ErrExhaustedRetries):
		utils.Error(w, http.StatusInternalServerError, "could not issue a unique scanner key")
	default:
		if log != nil {
			log.Error("EVENT_API", fmt.Sprintf("request failed: %v", err))
		}
		utils.Error(w, http.StatusInternalServerError, "internal error")
	}
}
