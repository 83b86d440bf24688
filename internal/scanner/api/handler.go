package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tickethub/internal/logger"
	"tickethub/internal/scanner"
	"tickethub/internal/utils"
)

type Handler struct {
	Scanner *scanner.Service
	Logger  *logger.Logger
}

func NewHandler(service *scanner.Service, log *logger.Logger) *Handler {
	return &Handler{Scanner: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/validate-ticket", h.Validate)
}

type validateRequest struct {
	TicketID string `json:"ticket_id,omitempty"`
	QRData   string `json:"qr_data,omitempty"`
	EventID  string `json:"event_id,omitempty"`
}

// Validate admits a ticket either by id or by scanned QR payload. An
// unusable ticket is a 200 with success=false; only lookups and database
// failures are errors.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	var result interface{}
	var err error
	switch {
	case req.QRData != "":
		result, err = h.Scanner.ScanQR(r.Context(), req.QRData, req.EventID)
	case req.TicketID != "":
		result, err = h.Scanner.Scan(r.Context(), req.TicketID, req.EventID)
	default:
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("ticket_id or qr_data is required", ""))
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Ticket validation failed: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to validate ticket", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket checked", result))
}
