package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tickethub/internal/dashboard"
	eventdb "tickethub/internal/events/db"
	"tickethub/internal/logger"
	"tickethub/internal/models"
	"tickethub/internal/utils"
)

type Handler struct {
	Dashboard *dashboard.Service
	FontPath  string
	Logger    *logger.Logger
}

func NewHandler(service *dashboard.Service, fontPath string, log *logger.Logger) *Handler {
	return &Handler{Dashboard: service, FontPath: fontPath, Logger: log}
}

func (h *Handler) RegisterSellerRoutes(r chi.Router) {
	r.Get("/events/{eventId}/buyers", h.Buyers)
	r.Get("/events/{eventId}/buyers/export/csv", h.BuyersCSV)
	r.Get("/events/{eventId}/buyers/export/pdf", h.BuyersPDF)
	r.Get("/events/{eventId}/financial", h.Financial)
}

func filterFrom(r *http.Request) dashboard.BuyerFilter {
	return dashboard.BuyerFilter{
		Status:       models.TicketStatus(r.URL.Query().Get("status")),
		TicketTypeID: r.URL.Query().Get("ticket_type_id"),
		Search:       r.URL.Query().Get("search"),
	}
}

func (h *Handler) statusFor(err error) int {
	if errors.Is(err, eventdb.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *Handler) Buyers(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	rows, err := h.Dashboard.Buyers(r.Context(), eventID, filterFrom(r))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Buyers for event %s failed: %v", eventID, err))
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to list buyers", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Buyers retrieved", rows))
}

func (h *Handler) BuyersCSV(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	data, err := h.Dashboard.BuyersCSV(r.Context(), eventID, filterFrom(r))
	if err != nil {
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to export buyers", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=buyers-%s.csv", eventID))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) BuyersPDF(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	data, err := h.Dashboard.BuyersPDF(r.Context(), eventID, filterFrom(r), h.FontPath)
	if err != nil {
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to export buyers", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=buyers-%s.pdf", eventID))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) Financial(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	summary, err := h.Dashboard.Financial(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Financial summary for event %s failed: %v", eventID, err))
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to compute financial summary", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Financial summary computed", summary))
}
