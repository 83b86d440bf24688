package models

// CartItem is one client-held cart line. Quantity and ticket type id drive
// fulfillment; the price is a display hint only and is recomputed
// server-side from the ticket type record.
type CartItem struct {
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
	Price        int64  `json:"price"`
}

type CartCheckoutRequest struct {
	EventID        string     `json:"event_id"`
	Items          []CartItem `json:"items"`
	DiscountCodeID string     `json:"discount_code_id,omitempty"`
	BuyerInfo      *BuyerInfo `json:"buyer_info,omitempty"`
}

type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}
