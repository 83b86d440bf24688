package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun"

	"tickethub/internal/models"
)

var (
	ErrNotFound = errors.New("discount code not found")
	// ErrUsageExhausted is returned when a guarded usage increment would
	// push used_count past usage_limit.
	ErrUsageExhausted = errors.New("discount code usage limit reached")
	ErrDuplicateCode  = errors.New("discount code already exists for this event")
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateDiscountCode(ctx context.Context, code models.DiscountCode) error {
	exists, err := d.Bun.NewSelect().
		Model((*models.DiscountCode)(nil)).
		Where("event_id = ?", code.EventID).
		Where("code = ?", strings.ToUpper(code.Code)).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateCode
	}
	_, err = d.Bun.NewInsert().Model(&code).Exec(ctx)
	return err
}

func (d *DB) GetDiscountCodeByID(ctx context.Context, id string) (*models.DiscountCode, error) {
	return d.DiscountCodeByID(ctx, d.Bun, id)
}

// DiscountCodeByID runs on idb so fulfillment can read inside its transaction.
func (d *DB) DiscountCodeByID(ctx context.Context, idb bun.IDB, id string) (*models.DiscountCode, error) {
	var code models.DiscountCode
	err := idb.NewSelect().
		Model(&code).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// FindByEventAndCode looks a code up case-insensitively within one event.
func (d *DB) FindByEventAndCode(ctx context.Context, eventID, code string) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	err := d.Bun.NewSelect().
		Model(&dc).
		Where("event_id = ?", eventID).
		Where("code = ?", strings.ToUpper(code)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dc, nil
}

func (d *DB) GetDiscountCodesByEvent(ctx context.Context, eventID string) ([]models.DiscountCode, error) {
	var codes []models.DiscountCode
	err := d.Bun.NewSelect().
		Model(&codes).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (d *DB) UpdateDiscountCode(ctx context.Context, code models.DiscountCode) error {
	_, err := d.Bun.NewUpdate().
		Model(&code).
		Column("percentage", "usage_limit", "valid_from", "valid_to", "active").
		Where("id = ?", code.ID).
		Exec(ctx)
	return err
}

func (d *DB) SetActive(ctx context.Context, id string, active bool) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.DiscountCode)(nil)).
		Set("active = ?", active).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) DeleteDiscountCode(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.DiscountCode)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementUsage adds one use only while the limit allows it. usage_limit 0
// means unlimited. Runs on idb so fulfillment can call it inside its
// transaction.
func (d *DB) IncrementUsage(ctx context.Context, idb bun.IDB, id string) error {
	res, err := idb.NewUpdate().
		Model((*models.DiscountCode)(nil)).
		Set("used_count = used_count + 1").
		Where("id = ?", id).
		Where("usage_limit = 0 OR used_count < usage_limit").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUsageExhausted
	}
	return nil
}

// UsageDetails lists tickets that redeemed the code, joined with buyer info.
func (d *DB) UsageDetails(ctx context.Context, codeID string) ([]models.DiscountUsageDetail, error) {
	var details []models.DiscountUsageDetail
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("ticket.id AS ticket_id").
		ColumnExpr("ticket.user_id AS user_id").
		ColumnExpr("u.name AS user_name").
		ColumnExpr("u.email AS user_email").
		ColumnExpr("ticket.purchased_at AS purchased_at").
		ColumnExpr("ticket.original_amount AS original_amount").
		ColumnExpr("ticket.discount_amount AS discount_amount").
		ColumnExpr("ticket.amount AS final_amount").
		Join("LEFT JOIN users AS u ON u.id = ticket.user_id").
		Where("ticket.discount_code_id = ?", codeID).
		Order("ticket.purchased_at DESC").
		Scan(ctx, &details)
	if err != nil {
		return nil, err
	}
	return details, nil
}
