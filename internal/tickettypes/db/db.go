package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"tickethub/internal/models"
)

var (
	ErrNotFound = errors.New("ticket type not found")
	// ErrCapacityExceeded is returned when a guarded sold-quantity update
	// would push sold past total.
	ErrCapacityExceeded = errors.New("not enough tickets available")
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateTicketType(ctx context.Context, tt models.TicketType) error {
	_, err := d.Bun.NewInsert().Model(&tt).Exec(ctx)
	return err
}

func (d *DB) GetTicketTypeByID(ctx context.Context, id string) (*models.TicketType, error) {
	return d.TicketTypeByID(ctx, d.Bun, id)
}

// TicketTypeByID runs on idb so fulfillment can read inside its transaction.
func (d *DB) TicketTypeByID(ctx context.Context, idb bun.IDB, id string) (*models.TicketType, error) {
	var tt models.TicketType
	err := idb.NewSelect().
		Model(&tt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

func (d *DB) GetTicketTypesByEvent(ctx context.Context, eventID string) ([]models.TicketType, error) {
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

func (d *DB) UpdateTicketType(ctx context.Context, tt models.TicketType) error {
	_, err := d.Bun.NewUpdate().
		Model(&tt).
		Column("name", "description", "price", "total_quantity", "is_enabled", "start_date", "end_date", "sort_order", "category").
		Where("id = ?", tt.ID).
		Exec(ctx)
	return err
}

func (d *DB) DeleteTicketType(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.TicketType)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// IncrementSold adds quantity to sold_quantity only while sold stays within
// total. The guard runs inside the UPDATE so concurrent purchases cannot
// oversell; callers must treat ErrCapacityExceeded as a sold-out condition.
func (d *DB) IncrementSold(ctx context.Context, idb bun.IDB, id string, quantity int) error {
	res, err := idb.NewUpdate().
		Model((*models.TicketType)(nil)).
		Set("sold_quantity = sold_quantity + ?", quantity).
		Where("id = ?", id).
		Where("sold_quantity + ? <= total_quantity", quantity).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCapacityExceeded
	}
	return nil
}
