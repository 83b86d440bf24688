package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	ID            string    `bun:"id,pk" json:"id"`
	EventID       string    `bun:"event_id,notnull" json:"event_id"`
	Name          string    `bun:"name,notnull" json:"name"`
	Description   string    `bun:"description" json:"description"`
	Price         int64     `bun:"price,notnull" json:"price"`
	TotalQuantity int       `bun:"total_quantity,notnull" json:"total_quantity"`
	SoldQuantity  int       `bun:"sold_quantity,notnull" json:"sold_quantity"`
	IsEnabled     bool      `bun:"is_enabled,notnull" json:"is_enabled"`
	StartDate     time.Time `bun:"start_date,nullzero" json:"start_date,omitempty"`
	EndDate       time.Time `bun:"end_date,nullzero" json:"end_date,omitempty"`
	SortOrder     int       `bun:"sort_order" json:"sort_order"`
	Category      string    `bun:"category,nullzero" json:"category,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

type TicketTypeRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Price         int64  `json:"price"`
	TotalQuantity int    `json:"total_quantity"`
	Category      string `json:"category,omitempty"`
	StartDate     int64  `json:"start_date,omitempty"` // epoch ms
	EndDate       int64  `json:"end_date,omitempty"`
	SortOrder     int    `json:"sort_order"`
}

type SalesStatus string

const (
	SalesStatusAvailable SalesStatus = "available"
	SalesStatusSoldOut   SalesStatus = "sold_out"
	SalesStatusNotOnSale SalesStatus = "not_on_sale"
)

type TicketTypeAvailability struct {
	TicketTypeID string      `json:"ticket_type_id"`
	Available    bool        `json:"available"`
	Remaining    int         `json:"remaining"`
	Total        int         `json:"total"`
	Sold         int         `json:"sold"`
	IsEnabled    bool        `json:"is_enabled"`
	SalesStatus  SalesStatus `json:"sales_status"`
}

// OnSaleAt reports whether the type is enabled and inside its sales window.
// A zero start/end date means the bound is open.
func (t *TicketType) OnSaleAt(now time.Time) bool {
	if !t.IsEnabled {
		return false
	}
	if !t.StartDate.IsZero() && now.Before(t.StartDate) {
		return false
	}
	if !t.EndDate.IsZero() && !now.Before(t.EndDate) {
		return false
	}
	return true
}
