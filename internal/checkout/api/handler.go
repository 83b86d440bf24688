package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tickethub/internal/auth"
	"tickethub/internal/checkout"
	"tickethub/internal/logger"
	"tickethub/internal/models"
	"tickethub/internal/utils"
)

type Handler struct {
	Checkout *checkout.Service
	Logger   *logger.Logger
}

func NewHandler(service *checkout.Service, log *logger.Logger) *Handler {
	return &Handler{Checkout: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout/waiting-list/{entryId}", h.WaitingList)
	r.Post("/checkout/ticket-type", h.TicketType)
	r.Post("/checkout/cart", h.Cart)
}

func (h *Handler) RegisterWebhookRoutes(r chi.Router) {
	r.Post("/api/webhooks/stripe", h.StripeWebhook)
}

func (h *Handler) WaitingList(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryId")
	resp, err := h.Checkout.CheckoutWaitingList(r.Context(), auth.UserID(r.Context()), entryID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Waiting list checkout for entry %s failed: %v", entryID, err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Failed to start checkout", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Checkout session created", resp))
}

type ticketTypeCheckoutRequest struct {
	TicketTypeID string            `json:"ticket_type_id"`
	Quantity     int               `json:"quantity"`
	BuyerInfo    *models.BuyerInfo `json:"buyer_info,omitempty"`
}

func (h *Handler) TicketType(w http.ResponseWriter, r *http.Request) {
	var req ticketTypeCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	resp, err := h.Checkout.CheckoutTicketType(r.Context(), auth.UserID(r.Context()), req.TicketTypeID, req.Quantity, req.BuyerInfo)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Ticket type checkout failed: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Failed to start checkout", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Checkout session created", resp))
}

func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	var req models.CartCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	resp, err := h.Checkout.CheckoutCart(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Cart checkout failed: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Failed to start checkout", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Checkout session created", resp))
}

// StripeWebhook responds with the status the processing error dictates;
// 2xx tells Stripe to stop retrying.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.Checkout.HandleStripeWebhook(r); err != nil {
		var whErr *checkout.WebhookError
		if errors.As(err, &whErr) {
			utils.WriteJSON(w, whErr.StatusCode, utils.ErrorResponse(whErr.PublicError, ""))
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Webhook processing error", ""))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Webhook processed", nil))
}
