package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tickethub/internal/logger"
	"tickethub/internal/models"
	"tickethub/internal/tickettypes"
	ttdb "tickethub/internal/tickettypes/db"
	"tickethub/internal/utils"
)

type Handler struct {
	Types  *tickettypes.Service
	Logger *logger.Logger
}

func NewHandler(service *tickettypes.Service, log *logger.Logger) *Handler {
	return &Handler{Types: service, Logger: log}
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/api/events/{eventId}/ticket-types", h.ListByEvent)
	r.Get("/api/ticket-types/{ticketTypeId}/availability", h.Availability)
}

func (h *Handler) RegisterSellerRoutes(r chi.Router) {
	r.Post("/events/{eventId}/ticket-types", h.Create)
	r.Put("/ticket-types/{ticketTypeId}", h.Update)
	r.Post("/ticket-types/{ticketTypeId}/enable", h.Enable)
	r.Post("/ticket-types/{ticketTypeId}/disable", h.Disable)
	r.Delete("/ticket-types/{ticketTypeId}", h.Delete)
}

func statusFor(err error) int {
	if errors.Is(err, ttdb.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var req models.TicketTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	tt, err := h.Types.Create(r.Context(), eventID, req)
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Failed to create ticket type", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Ticket type created", tt))
}

func (h *Handler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	list, err := h.Types.ListByEvent(r.Context(), eventID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list ticket types", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket types retrieved", list))
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ticketTypeId")
	availability, err := h.Types.Availability(r.Context(), id)
	if err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Failed to compute availability", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Availability computed", availability))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ticketTypeId")

	var req models.TicketTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	if err := h.Types.Update(r.Context(), id, req); err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Failed to update ticket type", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket type updated", nil))
}

func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := chi.URLParam(r, "ticketTypeId")
	if err := h.Types.SetEnabled(r.Context(), id, enabled); err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Failed to toggle ticket type", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket type updated", nil))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ticketTypeId")
	if err := h.Types.Delete(r.Context(), id); err != nil {
		utils.WriteJSON(w, statusFor(err), utils.ErrorResponse("Failed to delete ticket type", err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
