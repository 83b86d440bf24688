package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"tickethub/internal/models"
)

var (
	ErrNotFound = errors.New("ticket not found")
	// ErrStatusConflict is returned when a guarded status transition finds
	// the ticket in another state.
	ErrStatusConflict = errors.New("ticket not in expected status")
)

type DB struct {
	Bun *bun.DB
}

// InsertTickets writes a batch of ticket rows. Runs on idb so fulfillment
// can insert inside its transaction.
func (d *DB) InsertTickets(ctx context.Context, idb bun.IDB, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := idb.NewInsert().Model(&tickets).Exec(ctx)
	return err
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetTicketWithDetails joins the ticket with its event and type name.
func (d *DB) GetTicketWithDetails(ctx context.Context, id string) (*models.TicketDetails, error) {
	var details models.TicketDetails
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("ticket.*").
		ColumnExpr("e.name AS event_name").
		ColumnExpr("e.event_date AS event_date").
		ColumnExpr("e.location AS event_location").
		ColumnExpr("COALESCE(tt.name, '') AS ticket_type_name").
		Join("JOIN events AS e ON e.id = ticket.event_id").
		Join("LEFT JOIN ticket_types AS tt ON tt.id = ticket.ticket_type_id").
		Where("ticket.id = ?", id).
		Limit(1).
		Scan(ctx, &details)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &details, nil
}

func (d *DB) GetTicketsByUser(ctx context.Context, userID string) ([]models.TicketDetails, error) {
	var details []models.TicketDetails
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("ticket.*").
		ColumnExpr("e.name AS event_name").
		ColumnExpr("e.event_date AS event_date").
		ColumnExpr("e.location AS event_location").
		ColumnExpr("COALESCE(tt.name, '') AS ticket_type_name").
		Join("JOIN events AS e ON e.id = ticket.event_id").
		Join("LEFT JOIN ticket_types AS tt ON tt.id = ticket.ticket_type_id").
		Where("ticket.user_id = ?", userID).
		Order("ticket.purchased_at DESC").
		Scan(ctx, &details)
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (d *DB) GetTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Order("purchased_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ActiveTicketsByEvent returns valid and used tickets; refunded and
// cancelled rows are excluded.
func (d *DB) ActiveTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusValid, models.TicketStatusUsed})).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// MarkUsedIfValid flips valid → used atomically. A zero-row update means
// the ticket was already scanned, refunded or cancelled.
func (d *DB) MarkUsedIfValid(ctx context.Context, id string, usedAt time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusUsed).
		Set("used_at = ?", usedAt).
		Where("id = ?", id).
		Where("status = ?", models.TicketStatusValid).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (d *DB) MarkRefunded(ctx context.Context, id string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusRefunded).
		Where("id = ?", id).
		Where("status = ?", models.TicketStatusValid).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ExistsByPaymentIntent reports whether any ticket was already written for
// the payment intent. Webhook redeliveries key their idempotency on this.
func (d *DB) ExistsByPaymentIntent(ctx context.Context, idb bun.IDB, paymentIntentID string) (bool, error) {
	return idb.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("payment_intent_id = ?", paymentIntentID).
		Exists(ctx)
}
