package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tickethub/internal/auth"
	"tickethub/internal/events"
	eventdb "tickethub/internal/events/db"
	"tickethub/internal/logger"
	"tickethub/internal/models"
	"tickethub/internal/utils"
)

type Handler struct {
	Events *events.Service
	Logger *logger.Logger
}

func NewHandler(service *events.Service, log *logger.Logger) *Handler {
	return &Handler{Events: service, Logger: log}
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/api/events", h.List)
	r.Get("/api/events/{eventId}", h.Get)
	r.Get("/api/events/{eventId}/availability", h.Availability)
}

func (h *Handler) RegisterSellerRoutes(r chi.Router) {
	r.Post("/events", h.Create)
	r.Put("/events/{eventId}", h.Update)
	r.Post("/events/{eventId}/cancel", h.Cancel)
	r.Post("/events/{eventId}/duplicate", h.Duplicate)
	r.Post("/events/{eventId}/multi-tier", h.EnableMultiTier)
	r.Get("/events/mine", h.SellerEvents)
}

func (h *Handler) statusFor(err error) int {
	if errors.Is(err, eventdb.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("search")
	list, err := h.Events.Search(r.Context(), term)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("List events failed: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list events", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Events retrieved", list))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	event, err := h.Events.Get(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Get event %s failed: %v", eventID, err))
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Event not found", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event retrieved", event))
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	availability, err := h.Events.Availability(r.Context(), eventID)
	if err != nil {
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to compute availability", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Availability computed", availability))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	event, err := h.Events.Create(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Create event failed: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Failed to create event", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Event created", event))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	if err := h.requireOwnership(r, eventID, w); err != nil {
		return
	}

	if err := h.Events.Update(r.Context(), eventID, req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Update event %s failed: %v", eventID, err))
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to update event", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event updated", nil))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	if err := h.requireOwnership(r, eventID, w); err != nil {
		return
	}

	if err := h.Events.Cancel(r.Context(), eventID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Cancel event %s failed: %v", eventID, err))
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to cancel event", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event cancelled", nil))
}

func (h *Handler) Duplicate(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	event, err := h.Events.Duplicate(r.Context(), eventID, auth.UserID(r.Context()))
	if err != nil {
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to duplicate event", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Event duplicated", event))
}

func (h *Handler) EnableMultiTier(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	if err := h.requireOwnership(r, eventID, w); err != nil {
		return
	}

	if err := h.Events.EnableMultiTier(r.Context(), eventID); err != nil {
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to enable multi-tier tickets", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Multi-tier tickets enabled", nil))
}

func (h *Handler) SellerEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.Events.SellerEvents(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list seller events", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Seller events retrieved", list))
}

// requireOwnership writes a response and returns an error when the caller
// does not own the event.
func (h *Handler) requireOwnership(r *http.Request, eventID string, w http.ResponseWriter) error {
	event, err := h.Events.Get(r.Context(), eventID)
	if err != nil {
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Event not found", err.Error()))
		return err
	}
	if event.UserID != auth.UserID(r.Context()) {
		err := errors.New("not the event organizer")
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("Forbidden", err.Error()))
		return err
	}
	return nil
}
