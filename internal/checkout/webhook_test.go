package checkout_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"tickethub/internal/checkout"
	"tickethub/internal/config"
	"tickethub/internal/logger"
	"tickethub/internal/models"
)

const testWebhookSecret = "whsec_test_secret"

type fulfillCall struct {
	kind    string
	entryID string
	userID  string
	typeID  string
	qty     int
	cart    models.CartCheckoutRequest
	pay     models.PaymentInfo
}

type recordingFulfiller struct {
	calls []fulfillCall
	err   error
}

func (f *recordingFulfiller) PurchaseTicket(ctx context.Context, entryID string, pay models.PaymentInfo) error {
	f.calls = append(f.calls, fulfillCall{kind: "waiting_list", entryID: entryID, pay: pay})
	return f.err
}

func (f *recordingFulfiller) PurchaseTicketType(ctx context.Context, userID, typeID string, quantity int, pay models.PaymentInfo, buyer *models.BuyerInfo) error {
	f.calls = append(f.calls, fulfillCall{kind: "ticket_type", userID: userID, typeID: typeID, qty: quantity, pay: pay})
	return f.err
}

func (f *recordingFulfiller) PurchaseCartTickets(ctx context.Context, userID string, req models.CartCheckoutRequest, pay models.PaymentInfo) error {
	f.calls = append(f.calls, fulfillCall{kind: "cart", userID: userID, cart: req, pay: pay})
	return f.err
}

func newWebhookService(fulfill *recordingFulfiller) *checkout.Service {
	return &checkout.Service{
		Fulfill: fulfill,
		Config:  config.StripeConfig{WebhookSecret: testWebhookSecret},
		Logger:  logger.NewLogger(),
	}
}

// signedRequest builds a webhook delivery the way Stripe signs one.
func signedRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testWebhookSecret)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig)))
	return req
}

func sessionEventPayload(t *testing.T, sessionObject map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(sessionObject)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":   "evt_test_1",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)
	return payload
}

func TestWebhookFulfillsWaitingListSession(t *testing.T) {
	fulfill := &recordingFulfiller{}
	svc := newWebhookService(fulfill)

	payload := sessionEventPayload(t, map[string]any{
		"id":             "cs_test_1",
		"amount_total":   5000,
		"payment_intent": map[string]any{"id": "pi_test_1"},
		"metadata": map[string]string{
			"kind":     "waiting_list",
			"entry_id": "entry-1",
			"user_id":  "user-1",
		},
	})

	err := svc.HandleStripeWebhook(signedRequest(t, payload))
	require.NoError(t, err)

	require.Len(t, fulfill.calls, 1)
	call := fulfill.calls[0]
	assert.Equal(t, "waiting_list", call.kind)
	assert.Equal(t, "entry-1", call.entryID)
	assert.Equal(t, "pi_test_1", call.pay.PaymentIntentID)
	assert.Equal(t, int64(5000), call.pay.Amount)
}

func TestWebhookFulfillsCartSession(t *testing.T) {
	fulfill := &recordingFulfiller{}
	svc := newWebhookService(fulfill)

	cart, err := json.Marshal([]models.CartItem{
		{TicketTypeID: "tt-1", Quantity: 2},
		{TicketTypeID: "tt-2", Quantity: 1},
	})
	require.NoError(t, err)

	payload := sessionEventPayload(t, map[string]any{
		"id":             "cs_test_2",
		"amount_total":   4050,
		"payment_intent": map[string]any{"id": "pi_test_2"},
		"metadata": map[string]string{
			"kind":             "cart",
			"event_id":         "event-1",
			"user_id":          "user-1",
			"cart":             string(cart),
			"discount_code_id": "dc-1",
			"buyer_name":       "Kari Nordmann",
			"buyer_email":      "kari@example.com",
		},
	})

	err = svc.HandleStripeWebhook(signedRequest(t, payload))
	require.NoError(t, err)

	require.Len(t, fulfill.calls, 1)
	call := fulfill.calls[0]
	assert.Equal(t, "cart", call.kind)
	assert.Equal(t, "user-1", call.userID)
	assert.Equal(t, "event-1", call.cart.EventID)
	assert.Equal(t, "dc-1", call.cart.DiscountCodeID)
	require.Len(t, call.cart.Items, 2)
	assert.Equal(t, 2, call.cart.Items[0].Quantity)
	require.NotNil(t, call.cart.BuyerInfo)
	assert.Equal(t, "kari@example.com", call.cart.BuyerInfo.Email)
}

func TestWebhookDefaultsTicketTypeQuantityToOne(t *testing.T) {
	fulfill := &recordingFulfiller{}
	svc := newWebhookService(fulfill)

	payload := sessionEventPayload(t, map[string]any{
		"id":             "cs_test_3",
		"amount_total":   1000,
		"payment_intent": map[string]any{"id": "pi_test_3"},
		"metadata": map[string]string{
			"kind":           "ticket_type",
			"ticket_type_id": "tt-1",
			"user_id":        "user-1",
			"quantity":       "not-a-number",
		},
	})

	require.NoError(t, svc.HandleStripeWebhook(signedRequest(t, payload)))
	require.Len(t, fulfill.calls, 1)
	assert.Equal(t, 1, fulfill.calls[0].qty)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	fulfill := &recordingFulfiller{}
	svc := newWebhookService(fulfill)

	payload := sessionEventPayload(t, map[string]any{
		"id":             "cs_test_4",
		"payment_intent": map[string]any{"id": "pi_test_4"},
		"metadata":       map[string]string{"kind": "waiting_list", "entry_id": "entry-1"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	err := svc.HandleStripeWebhook(req)
	require.Error(t, err)

	var whErr *checkout.WebhookError
	require.ErrorAs(t, err, &whErr)
	assert.Equal(t, http.StatusBadRequest, whErr.StatusCode)
	assert.Equal(t, "Invalid webhook signature", whErr.PublicError)
	assert.Empty(t, fulfill.calls)
}

func TestWebhookRejectsSessionWithoutPaymentIntent(t *testing.T) {
	fulfill := &recordingFulfiller{}
	svc := newWebhookService(fulfill)

	payload := sessionEventPayload(t, map[string]any{
		"id":           "cs_test_5",
		"amount_total": 1000,
		"metadata":     map[string]string{"kind": "waiting_list", "entry_id": "entry-1"},
	})

	err := svc.HandleStripeWebhook(signedRequest(t, payload))
	var whErr *checkout.WebhookError
	require.ErrorAs(t, err, &whErr)
	assert.Equal(t, http.StatusBadRequest, whErr.StatusCode)
	assert.Empty(t, fulfill.calls)
}

func TestWebhookRejectsUnknownCheckoutKind(t *testing.T) {
	fulfill := &recordingFulfiller{}
	svc := newWebhookService(fulfill)

	payload := sessionEventPayload(t, map[string]any{
		"id":             "cs_test_6",
		"payment_intent": map[string]any{"id": "pi_test_6"},
		"metadata":       map[string]string{"kind": "gift_card"},
	})

	err := svc.HandleStripeWebhook(signedRequest(t, payload))
	var whErr *checkout.WebhookError
	require.ErrorAs(t, err, &whErr)
	assert.Equal(t, http.StatusBadRequest, whErr.StatusCode)
	assert.Empty(t, fulfill.calls)
}

func TestWebhookIgnoresUnhandledEventTypes(t *testing.T) {
	fulfill := &recordingFulfiller{}
	svc := newWebhookService(fulfill)

	payload, err := json.Marshal(map[string]any{
		"id":   "evt_test_2",
		"type": "payment_intent.created",
		"data": map[string]any{"object": map[string]any{}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.HandleStripeWebhook(signedRequest(t, payload)))
	assert.Empty(t, fulfill.calls)
}
