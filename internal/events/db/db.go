package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"tickethub/internal/models"
)

var ErrNotFound = errors.New("event not found")

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateEvent(ctx context.Context, event models.Event) error {
	_, err := d.Bun.NewInsert().Model(&event).Exec(ctx)
	return err
}

func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	return d.EventByID(ctx, d.Bun, id)
}

// EventByID runs on idb so fulfillment can read inside its transaction.
func (d *DB) EventByID(ctx context.Context, idb bun.IDB, id string) (*models.Event, error) {
	var event models.Event
	err := idb.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListEvents returns all non-cancelled events, newest first.
func (d *DB) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("is_cancelled = ?", false).
		Order("event_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// SearchEvents matches the term against name, description and location.
func (d *DB) SearchEvents(ctx context.Context, term string) ([]models.Event, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("is_cancelled = ?", false).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(name) LIKE ?", pattern).
				WhereOr("LOWER(description) LIKE ?", pattern).
				WhereOr("LOWER(location) LIKE ?", pattern)
		}).
		Order("event_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (d *DB) GetEventsBySeller(ctx context.Context, sellerID string) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("user_id = ?", sellerID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (d *DB) UpdateEvent(ctx context.Context, event models.Event) error {
	_, err := d.Bun.NewUpdate().
		Model(&event).
		Column("name", "description", "location", "event_date", "price", "total_tickets", "currency", "image_url").
		Where("id = ?", event.ID).
		Exec(ctx)
	return err
}

func (d *DB) MarkCancelled(ctx context.Context, id string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("is_cancelled = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) SetMultiTier(ctx context.Context, id string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("has_multi_tier = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// CountTicketsByStatus counts the event's tickets holding any of the given
// statuses.
func (d *DB) CountTicketsByStatus(ctx context.Context, eventID string, statuses ...models.TicketStatus) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("status IN (?)", bun.In(statuses)).
		Count(ctx)
}

// CountActiveOffers counts waiting-list offers that still reserve capacity.
func (d *DB) CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.WaitingListEntry)(nil)).
		Where("event_id = ?", eventID).
		Where("status = ?", models.WaitingListStatusOffered).
		Where("offer_expires_at > ?", now).
		Count(ctx)
}

// TicketsByEvent returns every ticket of the event, for seller metrics.
func (d *DB) TicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// TicketTypesByEvent returns the event's tiers ordered for display.
func (d *DB) CreateTicketTypes(ctx context.Context, types []models.TicketType) error {
	if len(types) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&types).Exec(ctx)
	return err
}

func (d *DB) TicketTypesByEvent(ctx context.Context, eventID string) ([]models.TicketType, error) {
	var types []models.TicketType
	err := d.Bun.NewSelect().
		Model(&types).
		Where("event_id = ?", eventID).
		Order("sort_order ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return types, nil
}
