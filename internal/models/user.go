package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID              string    `bun:"id,pk" json:"id"` // auth provider subject
	Name            string    `bun:"name,notnull" json:"name"`
	Email           string    `bun:"email,notnull" json:"email"`
	Phone           string    `bun:"phone,nullzero" json:"phone,omitempty"`
	StripeConnectID string    `bun:"stripe_connect_id,nullzero" json:"stripe_connect_id,omitempty"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
}

// BuyerInfo is checkout-supplied contact data, upserted onto the user record.
type BuyerInfo struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}
