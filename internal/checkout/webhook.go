package checkout

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"tickethub/internal/models"
	"tickethub/internal/monitoring"
)

// WebhookError carries an HTTP status and a client-safe message alongside
// the detailed internal one.
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// HandleStripeWebhook verifies and processes a Stripe webhook delivery.
// Fulfillment is idempotent on the payment intent, so Stripe retries of an
// already-processed event succeed without issuing more tickets.
func (s *Service) HandleStripeWebhook(r *http.Request) error {
	if s.Config.WebhookSecret == "" {
		s.Logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), s.Config.WebhookSecret, opts)
	if err != nil {
		s.Logger.Error("WEBHOOK", fmt.Sprintf("Webhook signature verification failed: %v", err))
		monitoring.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	s.Logger.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event: %s", event.Type))

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			monitoring.WebhookEvents.WithLabelValues(string(event.Type), "invalid").Inc()
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("Failed to unmarshal checkout session: %v", err),
				OriginalErr:   err,
			}
		}
		if err := s.fulfillSession(r, session); err != nil {
			monitoring.WebhookEvents.WithLabelValues(string(event.Type), "failed").Inc()
			return err
		}
		monitoring.WebhookEvents.WithLabelValues(string(event.Type), "processed").Inc()

	default:
		s.Logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
		monitoring.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
	}

	return nil
}

func (s *Service) fulfillSession(r *http.Request, session stripe.CheckoutSession) error {
	ctx := r.Context()

	pay := models.PaymentInfo{Amount: session.AmountTotal}
	if session.PaymentIntent != nil {
		pay.PaymentIntentID = session.PaymentIntent.ID
	}
	if pay.PaymentIntentID == "" {
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid session data",
			InternalError: fmt.Sprintf("Session %s has no payment intent", session.ID),
		}
	}

	meta := session.Metadata
	userID := meta["user_id"]
	buyer := buyerFromMetadata(meta)

	var err error
	switch meta["kind"] {
	case "waiting_list":
		err = s.Fulfill.PurchaseTicket(ctx, meta["entry_id"], pay)

	case "ticket_type":
		quantity, convErr := strconv.Atoi(meta["quantity"])
		if convErr != nil || quantity < 1 {
			quantity = 1
		}
		err = s.Fulfill.PurchaseTicketType(ctx, userID, meta["ticket_type_id"], quantity, pay, buyer)

	case "cart":
		var items []models.CartItem
		if jsonErr := json.Unmarshal([]byte(meta["cart"]), &items); jsonErr != nil {
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid session data",
				InternalError: fmt.Sprintf("Session %s has malformed cart metadata: %v", session.ID, jsonErr),
				OriginalErr:   jsonErr,
			}
		}
		err = s.Fulfill.PurchaseCartTickets(ctx, userID, models.CartCheckoutRequest{
			EventID:        meta["event_id"],
			Items:          items,
			DiscountCodeID: meta["discount_code_id"],
			BuyerInfo:      buyer,
		}, pay)

	default:
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid session data",
			InternalError: fmt.Sprintf("Session %s has unknown checkout kind %q", session.ID, meta["kind"]),
		}
	}

	if err != nil {
		s.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to fulfill session %s: %v", session.ID, err))
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Failed to process payment",
			InternalError: fmt.Sprintf("Failed to fulfill session %s: %v", session.ID, err),
			OriginalErr:   err,
		}
	}

	s.Logger.Info("WEBHOOK", fmt.Sprintf("Fulfilled session %s (payment %s)", session.ID, pay.PaymentIntentID))
	return nil
}

func buyerFromMetadata(meta map[string]string) *models.BuyerInfo {
	if meta["buyer_email"] == "" {
		return nil
	}
	return &models.BuyerInfo{
		FullName: meta["buyer_name"],
		Email:    meta["buyer_email"],
		Phone:    meta["buyer_phone"],
	}
}
