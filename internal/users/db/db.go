package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"tickethub/internal/models"
)

var ErrNotFound = errors.New("user not found")

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertUser inserts the user or refreshes name/email/phone on conflict.
// Runs on idb so fulfillment can upsert buyers inside its transaction.
func (d *DB) UpsertUser(ctx context.Context, idb bun.IDB, user models.User) error {
	_, err := idb.NewInsert().
		Model(&user).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("email = EXCLUDED.email").
		Set("phone = EXCLUDED.phone").
		Exec(ctx)
	return err
}

// UpsertDirect is UpsertUser outside any transaction.
func (d *DB) UpsertDirect(ctx context.Context, user models.User) error {
	return d.UpsertUser(ctx, d.Bun, user)
}

func (d *DB) SetStripeConnectID(ctx context.Context, userID, connectID string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("stripe_connect_id = ?", connectID).
		Where("id = ?", userID).
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
