package checkin_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-checkin/internal/auth"
	"ms-checkin/internal/checkin"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/utils"
)

// ScannerKeyHeader carries the shared per-event secret for anonymous devices.
const ScannerKeyHeader = "X-Scanner-Key"

type CheckinService interface {
	Checkin(ctx context.Context, credential string, caller checkin.Caller) (*checkin.Result, error)
}

type Handler struct {
	CheckinService CheckinService
	Logger         *logger.Logger
}

type checkinRequest struct {
	Credential string `json:"credential"`
}

// Checkin handles POST /checkin. The caller is either the authenticated
// organizer (optional auth middleware) or an anonymous device presenting the
// X-Scanner-Key header.
func (h *Handler) Checkin(w http.ResponseWriter, r *http.Request) {
	var req checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Credential == "" {
		utils.Error(w, http.StatusBadRequest, "credential is required")
		return
	}

	caller := checkin.Anonymous()
	if userID := auth.UserID(r.Context()); userID != "" {
		caller = checkin.AsOrganizer(userID)
	} else {
		caller = checkin.AsScanner(r.Header.Get(ScannerKeyHeader))
	}

	result, err := h.CheckinService.Checkin(r.Context(), req.Credential, caller)
	if err != nil {
		h.writeCheckinError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, result)
}

func (h *Handler) writeCheckinError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkin.ErrInvalidCredential):
		utils.Error(w, http.StatusNotFound, "invalid check-in credential")
	case errors.Is(err, checkin.ErrEventMissing):
		utils.Error(w, http.StatusNotFound, "event not found")
	case errors.Is(err, checkin.ErrNotOwner):
		utils.Error(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, checkin.ErrScannerKey):
		utils.Error(w, http.StatusUnauthorized, "missing or invalid scanner key")
	default:
		if h.Logger != nil {
			h.Logger.Error("CHECKIN", fmt.Sprintf("check-in failed: %v", err))
		}
		utils.Error(w, http.StatusInternalServerError, "check-in failed")
	}
}
