package dashboard_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"tickethub/internal/dashboard"
	dashdb "tickethub/internal/dashboard/db"
	"tickethub/internal/database/migrations"
	eventdb "tickethub/internal/events/db"
	"tickethub/internal/logger"
	"tickethub/internal/models"
)

func setup(t *testing.T) (*dashboard.Service, *bun.DB) {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	require.NoError(t, migrations.DropTables(ctx, bunDB))
	require.NoError(t, migrations.CreateTables(ctx, bunDB))
	t.Cleanup(func() { bunDB.Close() })

	svc := dashboard.NewService(&dashdb.DB{Bun: bunDB}, &eventdb.DB{Bun: bunDB}, 2, logger.NewLogger())
	return svc, bunDB
}

func seed(t *testing.T, bunDB *bun.DB) {
	t.Helper()
	ctx := context.Background()

	event := models.Event{
		ID: "event-1", Name: "Test Concert", Price: 5000, TotalTickets: 100,
		Currency: "nok", UserID: "seller-1",
		EventDate: time.Now().Add(24 * time.Hour), CreatedAt: time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&event).Exec(ctx)
	require.NoError(t, err)

	tt := models.TicketType{
		ID: "tt-1", EventID: "event-1", Name: "Standard", Price: 1000,
		TotalQuantity: 50, IsEnabled: true, CreatedAt: time.Now(),
	}
	_, err = bunDB.NewInsert().Model(&tt).Exec(ctx)
	require.NoError(t, err)

	buyer := models.User{ID: "buyer-1", Name: "Kari Nordmann", Email: "kari@example.com", CreatedAt: time.Now()}
	_, err = bunDB.NewInsert().Model(&buyer).Exec(ctx)
	require.NoError(t, err)

	tickets := []models.Ticket{
		{ID: "t-1", EventID: "event-1", UserID: "buyer-1", TicketTypeID: "tt-1",
			Status: models.TicketStatusValid, PaymentIntentID: "pi_1",
			Amount: 900, OriginalAmount: 1000, DiscountAmount: 100, PurchasedAt: time.Now()},
		{ID: "t-2", EventID: "event-1", UserID: "buyer-1", TicketTypeID: "tt-1",
			Status: models.TicketStatusUsed, PaymentIntentID: "pi_1",
			Amount: 900, OriginalAmount: 1000, DiscountAmount: 100, PurchasedAt: time.Now()},
		{ID: "t-3", EventID: "event-1", UserID: "buyer-1",
			Status: models.TicketStatusRefunded, PaymentIntentID: "pi_2",
			Amount: 5000, OriginalAmount: 5000, PurchasedAt: time.Now()},
	}
	_, err = bunDB.NewInsert().Model(&tickets).Exec(ctx)
	require.NoError(t, err)
}

func TestFinancialSummaryWithholdsPlatformFee(t *testing.T) {
	svc, bunDB := setup(t)
	seed(t, bunDB)

	summary, err := svc.Financial(context.Background(), "event-1")
	require.NoError(t, err)

	// Refunded ticket is excluded from revenue, reported separately.
	assert.Equal(t, 2, summary.TicketsSold)
	assert.Equal(t, int64(1800), summary.GrossRevenue)
	assert.Equal(t, int64(200), summary.DiscountsGiven)
	assert.Equal(t, int64(36), summary.PlatformFee) // 2% of 1800
	assert.Equal(t, int64(1764), summary.NetRevenue)
	assert.Equal(t, int64(5000), summary.RefundedTotal)
	assert.Equal(t, "nok", summary.Currency)
}

func TestBuyersListingAndFilters(t *testing.T) {
	svc, bunDB := setup(t)
	seed(t, bunDB)
	ctx := context.Background()

	all, err := svc.Buyers(ctx, "event-1", dashboard.BuyerFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "kari@example.com", all[0].Email)

	used, err := svc.Buyers(ctx, "event-1", dashboard.BuyerFilter{Status: models.TicketStatusUsed})
	require.NoError(t, err)
	require.Len(t, used, 1)
	assert.Equal(t, "t-2", used[0].TicketID)

	byType, err := svc.Buyers(ctx, "event-1", dashboard.BuyerFilter{TicketTypeID: "tt-1"})
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	bySearch, err := svc.Buyers(ctx, "event-1", dashboard.BuyerFilter{Search: "kari@"})
	require.NoError(t, err)
	assert.Len(t, bySearch, 3)

	noMatch, err := svc.Buyers(ctx, "event-1", dashboard.BuyerFilter{Search: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, noMatch)
}

func TestBuyersCSVContainsHeaderAndRows(t *testing.T) {
	svc, bunDB := setup(t)
	seed(t, bunDB)

	data, err := svc.BuyersCSV(context.Background(), "event-1", dashboard.BuyerFilter{})
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "Ticket ID,Name,Email")
	assert.Contains(t, out, "kari@example.com")
	assert.Contains(t, out, "Standard")
}
