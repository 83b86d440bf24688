package models

import (
	"time"

	"github.com/uptrace/bun"
)

type WaitingListStatus string

const (
	WaitingListStatusWaiting   WaitingListStatus = "waiting"
	WaitingListStatusOffered   WaitingListStatus = "offered"
	WaitingListStatusPurchased WaitingListStatus = "purchased"
	WaitingListStatusExpired   WaitingListStatus = "expired"
)

type WaitingListEntry struct {
	bun.BaseModel `bun:"table:waiting_list"`

	ID             string            `bun:"id,pk" json:"id"`
	EventID        string            `bun:"event_id,notnull" json:"event_id"`
	UserID         string            `bun:"user_id,notnull" json:"user_id"`
	Status         WaitingListStatus `bun:"status,notnull" json:"status"`
	OfferExpiresAt time.Time         `bun:"offer_expires_at,nullzero" json:"offer_expires_at,omitempty"`
	CreatedAt      time.Time         `bun:"created_at,notnull" json:"created_at"`
}

// ActiveOfferAt reports whether the entry holds a ticket slot at the given
// instant. Only unexpired offers reserve capacity.
func (e *WaitingListEntry) ActiveOfferAt(now time.Time) bool {
	return e.Status == WaitingListStatusOffered && e.OfferExpiresAt.After(now)
}

// JoinResult is returned to a user joining the waiting list.
type JoinResult struct {
	Success bool              `json:"success"`
	EntryID string            `json:"entry_id"`
	Status  WaitingListStatus `json:"status"`
	Message string            `json:"message"`
}
