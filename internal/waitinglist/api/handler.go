package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tickethub/internal/auth"
	"tickethub/internal/logger"
	"tickethub/internal/utils"
	"tickethub/internal/waitinglist"
	wldb "tickethub/internal/waitinglist/db"
)

type Handler struct {
	WaitingList *waitinglist.Service
	Logger      *logger.Logger
}

func NewHandler(service *waitinglist.Service, log *logger.Logger) *Handler {
	return &Handler{WaitingList: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events/{eventId}/waiting-list/join", h.Join)
	r.Post("/waiting-list/{entryId}/release", h.Release)
	r.Get("/waiting-list/mine", h.UserEntries)
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	userID := auth.UserID(r.Context())

	result, err := h.WaitingList.Join(r.Context(), eventID, userID)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, waitinglist.ErrAlreadyJoined):
			status = http.StatusConflict
		case errors.Is(err, wldb.ErrNotFound):
			status = http.StatusNotFound
		}
		h.Logger.Error("API", fmt.Sprintf("Join waiting list for event %s failed: %v", eventID, err))
		utils.WriteJSON(w, status, utils.ErrorResponse("Failed to join waiting list", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(result.Message, result))
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryId")
	userID := auth.UserID(r.Context())

	if err := h.WaitingList.ReleaseOffer(r.Context(), entryID, userID); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, wldb.ErrNotFound) {
			status = http.StatusNotFound
		}
		utils.WriteJSON(w, status, utils.ErrorResponse("Failed to release offer", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Offer released", nil))
}

func (h *Handler) UserEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.WaitingList.UserEntries(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list waiting list entries", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Waiting list entries retrieved", entries))
}
