package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID            string    `bun:"id,pk" json:"id"`
	Name          string    `bun:"name,notnull" json:"name"`
	Description   string    `bun:"description" json:"description"`
	Location      string    `bun:"location" json:"location"`
	EventDate     time.Time `bun:"event_date,notnull" json:"event_date"`
	Price         int64     `bun:"price,notnull" json:"price"`
	TotalTickets  int       `bun:"total_tickets,notnull" json:"total_tickets"`
	Currency      string    `bun:"currency,notnull" json:"currency"`
	UserID        string    `bun:"user_id,notnull" json:"user_id"`
	ImageURL      string    `bun:"image_url,nullzero" json:"image_url,omitempty"`
	IsCancelled   bool      `bun:"is_cancelled" json:"is_cancelled"`
	HasMultiTier  bool      `bun:"has_multi_tier" json:"has_multi_tier"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

type EventRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	EventDate    int64  `json:"event_date"` // epoch ms
	Price        int64  `json:"price"`      // minor units
	TotalTickets int    `json:"total_tickets"`
	Currency     string `json:"currency,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
}

// EventMetrics summarises ticket sales for a seller's event listing.
type EventMetrics struct {
	SoldTickets      int   `json:"sold_tickets"`
	RefundedTickets  int   `json:"refunded_tickets"`
	CancelledTickets int   `json:"cancelled_tickets"`
	Revenue          int64 `json:"revenue"`
}

type EventWithMetrics struct {
	Event
	Metrics EventMetrics `json:"metrics"`
}

// EventAvailability reports live capacity. Remaining counts both purchased
// tickets and unexpired offers against the event total.
type EventAvailability struct {
	EventID        string `json:"event_id"`
	IsSoldOut      bool   `json:"is_sold_out"`
	TotalTickets   int    `json:"total_tickets"`
	PurchasedCount int    `json:"purchased_count"`
	ActiveOffers   int    `json:"active_offers"`
	Remaining      int    `json:"remaining"`
}
