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
	ErrNotFound = errors.New("waiting list entry not found")
	// ErrStatusConflict is returned when a guarded status transition finds
	// the entry in a different state than expected.
	ErrStatusConflict = errors.New("waiting list entry is not in the expected status")
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) InsertEntry(ctx context.Context, entry models.WaitingListEntry) error {
	_, err := d.Bun.NewInsert().Model(&entry).Exec(ctx)
	return err
}

func (d *DB) GetEntryByID(ctx context.Context, id string) (*models.WaitingListEntry, error) {
	var entry models.WaitingListEntry
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindActiveEntry returns the user's non-expired entry for the event, if
// any. Waiting, offered and purchased entries all block a rejoin.
func (d *DB) FindActiveEntry(ctx context.Context, eventID, userID string) (*models.WaitingListEntry, error) {
	var entry models.WaitingListEntry
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Where("status != ?", models.WaitingListStatusExpired).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ExpireIfOffered flips offered→expired. The status guard makes the expiry
// callback a no-op when the entry was purchased first.
func (d *DB) ExpireIfOffered(ctx context.Context, id string) error {
	return d.transition(ctx, d.Bun, id,
		models.WaitingListStatusOffered, models.WaitingListStatusExpired, time.Time{})
}

// PurchaseIfOffered flips offered→purchased inside the caller's transaction.
func (d *DB) PurchaseIfOffered(ctx context.Context, idb bun.IDB, id string) error {
	return d.transition(ctx, idb, id,
		models.WaitingListStatusOffered, models.WaitingListStatusPurchased, time.Time{})
}

// OfferIfWaiting flips waiting→offered with the given expiry instant.
func (d *DB) OfferIfWaiting(ctx context.Context, id string, expiresAt time.Time) error {
	return d.transition(ctx, d.Bun, id,
		models.WaitingListStatusWaiting, models.WaitingListStatusOffered, expiresAt)
}

func (d *DB) transition(ctx context.Context, idb bun.IDB, id string, from, to models.WaitingListStatus, expiresAt time.Time) error {
	q := idb.NewUpdate().
		Model((*models.WaitingListEntry)(nil)).
		Set("status = ?", to).
		Where("id = ?", id).
		Where("status = ?", from)
	if !expiresAt.IsZero() {
		q = q.Set("offer_expires_at = ?", expiresAt)
	}
	res, err := q.Exec(ctx)
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

// OldestWaiting returns the FIFO head of the event's queue, or nil.
func (d *DB) OldestWaiting(ctx context.Context, eventID string) (*models.WaitingListEntry, error) {
	var entry models.WaitingListEntry
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("event_id = ?", eventID).
		Where("status = ?", models.WaitingListStatusWaiting).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// StaleOffers lists offered entries whose expiry instant already passed,
// for the sweep fallback when a timer notification was lost.
func (d *DB) StaleOffers(ctx context.Context, now time.Time) ([]models.WaitingListEntry, error) {
	var entries []models.WaitingListEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("status = ?", models.WaitingListStatusOffered).
		Where("offer_expires_at <= ?", now).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteByEvent removes the event's entire queue, returning the ids of
// entries that held offers so their timers can be disarmed.
func (d *DB) DeleteByEvent(ctx context.Context, eventID string) ([]string, error) {
	var offeredIDs []string
	err := d.Bun.NewSelect().
		Model((*models.WaitingListEntry)(nil)).
		Column("id").
		Where("event_id = ?", eventID).
		Where("status = ?", models.WaitingListStatusOffered).
		Scan(ctx, &offeredIDs)
	if err != nil {
		return nil, err
	}

	_, err = d.Bun.NewDelete().
		Model((*models.WaitingListEntry)(nil)).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return offeredIDs, nil
}

func (d *DB) GetEntriesByUser(ctx context.Context, userID string) ([]models.WaitingListEntry, error) {
	var entries []models.WaitingListEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CountPurchased counts valid/used tickets for capacity computation.
func (d *DB) CountPurchased(ctx context.Context, eventID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusValid, models.TicketStatusUsed})).
		Count(ctx)
}

// CountActiveOffers counts unexpired offers for capacity computation.
func (d *DB) CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.WaitingListEntry)(nil)).
		Where("event_id = ?", eventID).
		Where("status = ?", models.WaitingListStatusOffered).
		Where("offer_expires_at > ?", now).
		Count(ctx)
}
