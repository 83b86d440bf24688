package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tickethub/internal/auth"
	"tickethub/internal/logger"
	"tickethub/internal/tickets"
	ticketdb "tickethub/internal/tickets/db"
	"tickethub/internal/utils"
)

type Handler struct {
	Tickets *tickets.Service
	Logger  *logger.Logger
}

func NewHandler(service *tickets.Service, log *logger.Logger) *Handler {
	return &Handler{Tickets: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/tickets/mine", h.MyTickets)
	r.Get("/tickets/{ticketId}", h.Get)
	r.Get("/tickets/{ticketId}/qr", h.QR)
	r.Get("/tickets/{ticketId}/pdf", h.PDF)
}

func (h *Handler) RegisterSellerRoutes(r chi.Router) {
	r.Post("/events/{eventId}/refund-tickets", h.RefundEventTickets)
}

func (h *Handler) statusFor(err error) int {
	switch {
	case errors.Is(err, ticketdb.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tickets.ErrNotOwner):
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}

func (h *Handler) MyTickets(w http.ResponseWriter, r *http.Request) {
	list, err := h.Tickets.MyTickets(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list tickets", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Tickets retrieved", list))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	details, err := h.Tickets.TicketDetails(r.Context(), ticketID, auth.UserID(r.Context()))
	if err != nil {
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to load ticket", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket retrieved", details))
}

func (h *Handler) QR(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	png, err := h.Tickets.TicketQR(r.Context(), ticketID, auth.UserID(r.Context()))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("QR for ticket %s failed: %v", ticketID, err))
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to generate QR code", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	doc, err := h.Tickets.TicketPDF(r.Context(), ticketID, auth.UserID(r.Context()))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("PDF for ticket %s failed: %v", ticketID, err))
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to generate ticket PDF", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=ticket-%s.pdf", ticketID))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (h *Handler) RefundEventTickets(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	refunded, err := h.Tickets.RefundEventTickets(r.Context(), eventID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to refund tickets", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("Refunded %d tickets", refunded), map[string]int{"refunded": refunded}))
}
