package account_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-checkin/internal/accounts"
	"ms-checkin/internal/auth"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/utils"
)

type Handler struct {
	AccountService *accounts.Service
	Logger         *logger.Logger
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type profileResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.AccountService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusCreated, profileResponse{ID: user.ID, Email: user.Email})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.AccountService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.AccountService.Me(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, profileResponse{ID: user.ID, Email: user.Email})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accounts.ErrEmailTaken):
		utils.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, accounts.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		utils.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, accounts.ErrInvalidLogin):
		utils.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, accounts.ErrNotFound):
		utils.Error(w, http.StatusNotFound, err.Error())
	default:
		if h.Logger != nil {
			h.Logger.Error("ACCOUNT_API", fmt.Sprintf("request failed: %v", err))
		}
		utils.Error(w, http.StatusInternalServerError, "internal error")
	}
}
