package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "valid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusRefunded  TicketStatus = "refunded"
	TicketStatusCancelled TicketStatus = "cancelled"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID              string       `bun:"id,pk" json:"id"`
	EventID         string       `bun:"event_id,notnull" json:"event_id"`
	UserID          string       `bun:"user_id,notnull" json:"user_id"`
	TicketTypeID    string       `bun:"ticket_type_id,nullzero" json:"ticket_type_id,omitempty"`
	PurchasedAt     time.Time    `bun:"purchased_at,notnull" json:"purchased_at"`
	Status          TicketStatus `bun:"status,notnull" json:"status"`
	PaymentIntentID string       `bun:"payment_intent_id,notnull" json:"payment_intent_id"`
	Amount          int64        `bun:"amount,notnull" json:"amount"`
	OriginalAmount  int64        `bun:"original_amount,notnull" json:"original_amount"`
	DiscountAmount  int64        `bun:"discount_amount" json:"discount_amount"`
	DiscountCodeID  string       `bun:"discount_code_id,nullzero" json:"discount_code_id,omitempty"`
	UsedAt          time.Time    `bun:"used_at,nullzero" json:"used_at,omitempty"`
}

// TicketDetails is a ticket joined with its event and resolved type name,
// returned by the scanner and the buyer-facing ticket views.
type TicketDetails struct {
	Ticket
	EventName      string    `json:"event_name"`
	EventDate      time.Time `json:"event_date"`
	EventLocation  string    `json:"event_location"`
	TicketTypeName string    `json:"ticket_type_name"`
}

// ScanResult is the response body of the ticket validation endpoint.
type ScanResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Ticket  *TicketDetails `json:"ticket,omitempty"`
}

// PaymentInfo carries the Stripe identifiers a fulfillment call runs under.
type PaymentInfo struct {
	PaymentIntentID string `json:"payment_intent_id"`
	Amount          int64  `json:"amount"`
}
