package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tickethub/internal/auth"
	"tickethub/internal/discount"
	discountdb "tickethub/internal/discount/db"
	"tickethub/internal/logger"
	"tickethub/internal/models"
	"tickethub/internal/utils"
)

type Handler struct {
	Discounts *discount.Service
	Logger    *logger.Logger
}

func NewHandler(service *discount.Service, log *logger.Logger) *Handler {
	return &Handler{Discounts: service, Logger: log}
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/api/validate-discount", h.Validate)
}

func (h *Handler) RegisterSellerRoutes(r chi.Router) {
	r.Post("/events/{eventId}/discount-codes", h.Create)
	r.Get("/events/{eventId}/discount-codes", h.List)
	r.Put("/discount-codes/{codeId}", h.Update)
	r.Delete("/discount-codes/{codeId}", h.Delete)
	r.Post("/discount-codes/{codeId}/deactivate", h.Deactivate)
	r.Post("/discount-codes/{codeId}/activate", h.Activate)
	r.Get("/discount-codes/{codeId}/usage", h.Usage)
}

func (h *Handler) statusFor(err error) int {
	switch {
	case errors.Is(err, discountdb.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, discountdb.ErrDuplicateCode):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

type validateRequest struct {
	EventID string `json:"event_id"`
	Code    string `json:"code"`
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.EventID == "" || req.Code == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("event_id and code are required", ""))
		return
	}

	result, err := h.Discounts.Validate(r.Context(), req.EventID, req.Code, time.Now())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Validate discount failed: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to validate discount code", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Discount code checked", result))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var req models.DiscountCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	code, err := h.Discounts.Create(r.Context(), eventID, auth.UserID(r.Context()), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Create discount code for event %s failed: %v", eventID, err))
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to create discount code", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Discount code created", code))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	codes, err := h.Discounts.ListByEvent(r.Context(), eventID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list discount codes", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Discount codes retrieved", codes))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	codeID := chi.URLParam(r, "codeId")

	var req models.DiscountCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	code, err := h.Discounts.Update(r.Context(), codeID, req)
	if err != nil {
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to update discount code", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Discount code updated", code))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	codeID := chi.URLParam(r, "codeId")
	if err := h.Discounts.Delete(r.Context(), codeID); err != nil {
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to delete discount code", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Discount code deleted", nil))
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false, "Discount code deactivated")
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true, "Discount code activated")
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool, message string) {
	codeID := chi.URLParam(r, "codeId")
	if err := h.Discounts.SetActive(r.Context(), codeID, active); err != nil {
		utils.WriteJSON(w, h.statusFor(err), utils.ErrorResponse("Failed to update discount code", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(message, nil))
}

func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	codeID := chi.URLParam(r, "codeId")
	details, err := h.Discounts.UsageDetails(r.Context(), codeID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load usage details", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Usage details retrieved", details))
}
