package attendee_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ms-checkin/internal/attendees"
	"ms-checkin/internal/auth"
	"ms-checkin/internal/credentials"
	"ms-checkin/internal/events"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/utils"
)

type Handler struct {
	AttendeeService *attendees.Service
	Logger          *logger.Logger
}

type createAttendeeRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type bulkCreateRequest struct {
	Attendees []createAttendeeRequest `json:"attendees"`
}

type qrPayloadResponse struct {
	CheckinCredential string `json:"checkin_credential"`
	Payload           string `json:"payload"`
}

func (r createAttendeeRequest) validate() error {
	if strings.TrimSpace(r.FullName) == "" || len(r.FullName) > 200 {
		return errors.New("full_name must be 1-200 characters")
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		return errors.New("email is invalid")
	}
	return nil
}

func (h *Handler) CreateAttendee(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req createAttendeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		utils.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	attendee, err := h.AttendeeService.CreateAttendee(r.Context(), auth.UserID(r.Context()), eventID, attendees.CreateAttendeeInput{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusCreated, attendee)
}

func (h *Handler) BulkCreateAttendees(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req bulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inputs := make([]attendees.CreateAttendeeInput, 0, len(req.Attendees))
	for i, a := range req.Attendees {
		if err := a.validate(); err != nil {
			utils.Error(w, http.StatusBadRequest, fmt.Sprintf("attendee %d: %s", i, err.Error()))
			return
		}
		inputs = append(inputs, attendees.CreateAttendeeInput{FullName: a.FullName, Email: a.Email})
	}

	created, err := h.AttendeeService.BulkCreateAttendees(r.Context(), auth.UserID(r.Context()), eventID, inputs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusCreated, created)
}

func (h *Handler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	limit, offset := utils.ParseLimitOffset(r, 50, 200)
	search := r.URL.Query().Get("q")

	page, err := h.AttendeeService.ListAttendees(r.Context(), auth.UserID(r.Context()), eventID, search, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, page)
}

func (h *Handler) GetAttendee(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	attendeeID := chi.URLParam(r, "attendeeID")

	attendee, err := h.AttendeeService.GetAttendee(r.Context(), auth.UserID(r.Context()), eventID, attendeeID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, attendee)
}

func (h *Handler) GetQRPayload(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	attendeeID := chi.URLParam(r, "attendeeID")

	payload, err := h.AttendeeService.QRPayload(r.Context(), auth.UserID(r.Context()), eventID, attendeeID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, qrPayloadResponse{
		CheckinCredential: payload,
		Payload:           payload,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, events.ErrNotFound):
		utils.Error(w, http.StatusNotFound, "event not found")
	case errors.Is(err, events.ErrNotOwner):
		utils.Error(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, attendees.ErrNotFound):
		utils.Error(w, http.StatusNotFound, "attendee not found")
	case errors.Is(err, attendees.ErrEmptyBatch), errors.Is(err, attendees.ErrBatchTooLarge):
		utils.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, credentials.ErrExhaustedRetries):
		utils.Error(w, http.StatusInternalServerError, "could not issue a unique check-in credential")
	default:
		if h.Logger != nil {
			h.Logger.Error("ATTENDEE_API", fmt.Sprintf("request failed: %v", err))
		}
		utils.Error(w, http.StatusInternalServerError, "internal error")
	}
}
