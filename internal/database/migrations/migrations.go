package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"tickethub/internal/models"
)

// tables in dependency order; drops run in reverse.
var tables = []interface{}{
	(*models.User)(nil),
	(*models.Event)(nil),
	(*models.TicketType)(nil),
	(*models.DiscountCode)(nil),
	(*models.Ticket)(nil),
	(*models.WaitingListEntry)(nil),
}

// CreateTables creates every table the service uses if it does not exist.
func CreateTables(ctx context.Context, db *bun.DB) error {
	for _, model := range tables {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// DropTables removes all tables, newest dependencies first. Test helper.
func DropTables(ctx context.Context, db *bun.DB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		_, err := db.NewDropTable().
			Model(tables[i]).
			IfExists().
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}
