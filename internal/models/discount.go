package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DiscountCode struct {
	bun.BaseModel `bun:"table:discount_codes"`

	ID         string    `bun:"id,pk" json:"id"`
	EventID    string    `bun:"event_id,notnull" json:"event_id"`
	SellerID   string    `bun:"seller_id,notnull" json:"seller_id"`
	Code       string    `bun:"code,notnull" json:"code"` // stored upper-cased
	Percentage int       `bun:"percentage,notnull" json:"percentage"`
	UsageLimit int       `bun:"usage_limit" json:"usage_limit,omitempty"` // 0 = unlimited
	UsedCount  int       `bun:"used_count,notnull" json:"used_count"`
	ValidFrom  time.Time `bun:"valid_from,nullzero" json:"valid_from,omitempty"`
	ValidTo    time.Time `bun:"valid_to,nullzero" json:"valid_to,omitempty"`
	Active     bool      `bun:"active,notnull" json:"active"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

type DiscountCodeRequest struct {
	Code       string `json:"code"`
	Percentage int    `json:"percentage"`
	UsageLimit int    `json:"usage_limit,omitempty"`
	ValidFrom  int64  `json:"valid_from,omitempty"` // epoch ms
	ValidTo    int64  `json:"valid_to,omitempty"`
}

// DiscountValidation is a tagged result: either Valid with the code record,
// or invalid with a user-facing reason. Invalid codes are not errors.
type DiscountValidation struct {
	Valid    bool          `json:"valid"`
	Message  string        `json:"message,omitempty"`
	Discount *DiscountCode `json:"discount,omitempty"`
}

// DiscountUsageDetail is one row of the seller's usage breakdown.
type DiscountUsageDetail struct {
	TicketID       string    `json:"ticket_id"`
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
	UserEmail      string    `json:"user_email"`
	PurchasedAt    time.Time `json:"purchased_at"`
	OriginalAmount int64     `json:"original_amount"`
	DiscountAmount int64     `json:"discount_amount"`
	FinalAmount    int64     `json:"final_amount"`
}
