package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"tickethub/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// BuyerRow is one attendee line on the seller dashboard.
type BuyerRow struct {
	TicketID       string              `json:"ticket_id"`
	UserID         string              `json:"user_id"`
	Name           string              `json:"name"`
	Email          string              `json:"email"`
	TicketTypeName string              `json:"ticket_type_name"`
	Status         models.TicketStatus `json:"status"`
	Amount         int64               `json:"amount"`
	DiscountAmount int64               `json:"discount_amount"`
	PurchasedAt    time.Time           `json:"purchased_at"`
}

// TypeRevenue is revenue aggregated per ticket type.
type TypeRevenue struct {
	TicketTypeID   string `json:"ticket_type_id"`
	TicketTypeName string `json:"ticket_type_name"`
	TicketsSold    int    `json:"tickets_sold"`
	GrossRevenue   int64  `json:"gross_revenue"`
	DiscountsGiven int64  `json:"discounts_given"`
}

// Buyers lists an event's tickets joined with buyer records, optionally
// filtered by status, ticket type, and a name/email search term.
func (d *DB) Buyers(ctx context.Context, eventID string, status models.TicketStatus, ticketTypeID, search string) ([]BuyerRow, error) {
	q := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("ticket.id AS ticket_id").
		ColumnExpr("ticket.user_id AS user_id").
		ColumnExpr("COALESCE(u.name, '') AS name").
		ColumnExpr("COALESCE(u.email, '') AS email").
		ColumnExpr("COALESCE(tt.name, '') AS ticket_type_name").
		ColumnExpr("ticket.status AS status").
		ColumnExpr("ticket.amount AS amount").
		ColumnExpr("ticket.discount_amount AS discount_amount").
		ColumnExpr("ticket.purchased_at AS purchased_at").
		Join("LEFT JOIN users AS u ON u.id = ticket.user_id").
		Join("LEFT JOIN ticket_types AS tt ON tt.id = ticket.ticket_type_id").
		Where("ticket.event_id = ?", eventID).
		Order("ticket.purchased_at DESC")

	if status != "" {
		q = q.Where("ticket.status = ?", status)
	}
	if ticketTypeID != "" {
		q = q.Where("ticket.ticket_type_id = ?", ticketTypeID)
	}
	if search != "" {
		pattern := "%" + search + "%"
		q = q.Where("(u.name LIKE ? OR u.email LIKE ?)", pattern, pattern)
	}

	var rows []BuyerRow
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// RevenueByType aggregates sold-ticket revenue per ticket type. Refunded
// and cancelled tickets are excluded.
func (d *DB) RevenueByType(ctx context.Context, eventID string) ([]TypeRevenue, error) {
	var rows []TypeRevenue
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("COALESCE(ticket.ticket_type_id, '') AS ticket_type_id").
		ColumnExpr("COALESCE(tt.name, 'General admission') AS ticket_type_name").
		ColumnExpr("COUNT(*) AS tickets_sold").
		ColumnExpr("SUM(ticket.amount) AS gross_revenue").
		ColumnExpr("SUM(ticket.discount_amount) AS discounts_given").
		Join("LEFT JOIN ticket_types AS tt ON tt.id = ticket.ticket_type_id").
		Where("ticket.event_id = ?", eventID).
		Where("ticket.status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusValid, models.TicketStatusUsed})).
		GroupExpr("ticket.ticket_type_id, tt.name").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// RefundedTotal sums amounts returned to buyers for one event.
func (d *DB) RefundedTotal(ctx context.Context, eventID string) (int64, error) {
	var total int64
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("event_id = ?", eventID).
		Where("status = ?", models.TicketStatusRefunded).
		Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}
