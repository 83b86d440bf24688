package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tickethub/internal/auth"
	"tickethub/internal/logger"
	"tickethub/internal/users"
	userdb "tickethub/internal/users/db"
	"tickethub/internal/utils"
)

type Handler struct {
	Users  *users.Service
	Logger *logger.Logger
}

func NewHandler(service *users.Service, log *logger.Logger) *Handler {
	return &Handler{Users: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/store-user", h.Store)
	r.Get("/get-user-info", h.Get)
	r.Post("/stripe-connect", h.SetConnectID)
}

func (h *Handler) Store(w http.ResponseWriter, r *http.Request) {
	var req users.StoreUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	user, err := h.Users.Store(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Failed to store user", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("User stored", user))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, userdb.ErrNotFound) {
			status = http.StatusNotFound
		}
		utils.WriteJSON(w, status, utils.ErrorResponse("Failed to load user", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("User retrieved", user))
}

type connectRequest struct {
	StripeAccountID string `json:"stripe_account_id"`
}

func (h *Handler) SetConnectID(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if err := h.Users.SetConnectID(r.Context(), auth.UserID(r.Context()), req.StripeAccountID); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Failed to link Stripe account", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Stripe account linked", nil))
}
