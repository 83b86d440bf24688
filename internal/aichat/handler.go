package aichat

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tickethub/internal/logger"
	"tickethub/internal/utils"
)

// Handler proxies chat completion requests to the configured upstream,
// attaching the API key server-side so it never reaches the browser.
type Handler struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
	Logger   *logger.Logger
}

func NewHandler(endpoint, apiKey string, log *logger.Logger) *Handler {
	return &Handler{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: 30 * time.Second},
		Logger:   log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/ai-chat", h.Chat)
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.Endpoint == "" || h.APIKey == "" {
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("AI chat is not configured", ""))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	upstream, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to build upstream request", err.Error()))
		return
	}
	upstream.Header.Set("Content-Type", "application/json")
	upstream.Header.Set("Authorization", "Bearer "+h.APIKey)

	resp, err := h.Client.Do(upstream)
	if err != nil {
		h.Logger.Error("AICHAT", fmt.Sprintf("Upstream request failed: %v", err))
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("AI service unavailable", ""))
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.Logger.Error("AICHAT", fmt.Sprintf("Failed to stream upstream response: %v", err))
	}
}
