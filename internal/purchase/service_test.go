package purchase_test

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

	"tickethub/internal/database/migrations"
	discountdb "tickethub/internal/discount/db"
	eventdb "tickethub/internal/events/db"
	"tickethub/internal/logger"
	"tickethub/internal/models"
	"tickethub/internal/purchase"
	ticketdb "tickethub/internal/tickets/db"
	typedb "tickethub/internal/tickettypes/db"
	userdb "tickethub/internal/users/db"
	wldb "tickethub/internal/waitinglist/db"
)

type fakeTimers struct {
	disarmed []string
}

func (f *fakeTimers) Disarm(ctx context.Context, entryID string) error {
	f.disarmed = append(f.disarmed, entryID)
	return nil
}

type nopKafka struct{}

func (nopKafka) PublishJSON(topic, key string, payload interface{}) error { return nil }

type fixture struct {
	bun     *bun.DB
	svc     *purchase.Service
	timers  *fakeTimers
	tickets *ticketdb.DB
	types   *typedb.DB
}

func setup(t *testing.T) *fixture {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	require.NoError(t, migrations.DropTables(ctx, bunDB))
	require.NoError(t, migrations.CreateTables(ctx, bunDB))
	t.Cleanup(func() { bunDB.Close() })

	timers := &fakeTimers{}
	svc := &purchase.Service{
		Bun:         bunDB,
		Events:      &eventdb.DB{Bun: bunDB},
		Tickets:     &ticketdb.DB{Bun: bunDB},
		Types:       &typedb.DB{Bun: bunDB},
		WaitingList: &wldb.DB{Bun: bunDB},
		Discounts:   &discountdb.DB{Bun: bunDB},
		Users:       &userdb.DB{Bun: bunDB},
		Timers:      timers,
		Kafka:       nopKafka{},
		Logger:      logger.NewLogger(),
	}
	return &fixture{bun: bunDB, svc: svc, timers: timers, tickets: svc.Tickets, types: svc.Types}
}

func (f *fixture) seedEvent(t *testing.T, total int) {
	t.Helper()
	event := models.Event{
		ID:           "event-1",
		Name:         "Test Concert",
		Price:        5000,
		TotalTickets: total,
		Currency:     "nok",
		UserID:       "seller-1",
		EventDate:    time.Now().Add(24 * time.Hour),
		CreatedAt:    time.Now(),
	}
	_, err := f.bun.NewInsert().Model(&event).Exec(context.Background())
	require.NoError(t, err)
}

func (f *fixture) seedType(t *testing.T, id string, price int64, total int) {
	t.Helper()
	tt := models.TicketType{
		ID:            id,
		EventID:       "event-1",
		Name:          "Type " + id,
		Price:         price,
		TotalQuantity: total,
		IsEnabled:     true,
		CreatedAt:     time.Now(),
	}
	_, err := f.bun.NewInsert().Model(&tt).Exec(context.Background())
	require.NoError(t, err)
}

func (f *fixture) seedDiscount(t *testing.T, pct, limit int) {
	t.Helper()
	dc := models.DiscountCode{
		ID:         "disc-1",
		EventID:    "event-1",
		SellerID:   "seller-1",
		Code:       "SAVE",
		Percentage: pct,
		UsageLimit: limit,
		Active:     true,
		CreatedAt:  time.Now(),
	}
	_, err := f.bun.NewInsert().Model(&dc).Exec(context.Background())
	require.NoError(t, err)
}

func (f *fixture) ticketCount(t *testing.T) int {
	t.Helper()
	n, err := f.bun.NewSelect().Model((*models.Ticket)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestCartPurchaseAppliesDiscountPerLine(t *testing.T) {
	f := setup(t)
	f.seedEvent(t, 100)
	f.seedType(t, "tt-1", 1000, 10)
	f.seedType(t, "tt-2", 2500, 10)
	f.seedDiscount(t, 10, 5)
	ctx := context.Background()

	req := models.CartCheckoutRequest{
		EventID: "event-1",
		Items: []models.CartItem{
			{TicketTypeID: "tt-1", Quantity: 2},
			{TicketTypeID: "tt-2", Quantity: 1},
		},
		DiscountCodeID: "disc-1",
		BuyerInfo:      &models.BuyerInfo{FullName: "Kari Nordmann", Email: "kari@example.com"},
	}
	pay := models.PaymentInfo{PaymentIntentID: "pi_cart_1", Amount: 4050}

	require.NoError(t, f.svc.PurchaseCartTickets(ctx, "buyer-1", req, pay))

	var rows []models.Ticket
	require.NoError(t, f.bun.NewSelect().Model(&rows).Order("amount ASC").Scan(ctx))
	require.Len(t, rows, 3)

	// 10% off each line, rounded per unit.
	assert.Equal(t, int64(900), rows[0].Amount)
	assert.Equal(t, int64(100), rows[0].DiscountAmount)
	assert.Equal(t, int64(900), rows[1].Amount)
	assert.Equal(t, int64(2250), rows[2].Amount)
	assert.Equal(t, int64(250), rows[2].DiscountAmount)

	// One redemption for the whole cart.
	dc, err := f.svc.Discounts.GetDiscountCodeByID(ctx, "disc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, dc.UsedCount)

	// Sold counters moved once per line.
	tt1, err := f.types.GetTicketTypeByID(ctx, "tt-1")
	require.NoError(t, err)
	assert.Equal(t, 2, tt1.SoldQuantity)

	// Buyer contact info landed on the user record.
	user, err := f.svc.Users.GetUserByID(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, "kari@example.com", user.Email)
}

func TestCartPurchaseIsIdempotentOnPaymentIntent(t *testing.T) {
	f := setup(t)
	f.seedEvent(t, 100)
	f.seedType(t, "tt-1", 1000, 10)
	ctx := context.Background()

	req := models.CartCheckoutRequest{
		EventID: "event-1",
		Items:   []models.CartItem{{TicketTypeID: "tt-1", Quantity: 2}},
	}
	pay := models.PaymentInfo{PaymentIntentID: "pi_replay", Amount: 2000}

	require.NoError(t, f.svc.PurchaseCartTickets(ctx, "buyer-1", req, pay))
	require.Equal(t, 2, f.ticketCount(t))

	// Stripe redelivers the webhook.
	require.NoError(t, f.svc.PurchaseCartTickets(ctx, "buyer-1", req, pay))
	assert.Equal(t, 2, f.ticketCount(t))

	tt, err := f.types.GetTicketTypeByID(ctx, "tt-1")
	require.NoError(t, err)
	assert.Equal(t, 2, tt.SoldQuantity)
}

func TestCartPurchaseRejectsOversell(t *testing.T) {
	f := setup(t)
	f.seedEvent(t, 100)
	f.seedType(t, "tt-1", 1000, 3)
	ctx := context.Background()

	req := models.CartCheckoutRequest{
		EventID: "event-1",
		Items:   []models.CartItem{{TicketTypeID: "tt-1", Quantity: 4}},
	}
	err := f.svc.PurchaseCartTickets(ctx, "buyer-1", req, models.PaymentInfo{PaymentIntentID: "pi_over", Amount: 4000})
	assert.ErrorIs(t, err, purchase.ErrSoldOut)
	assert.Equal(t, 0, f.ticketCount(t))

	// The guarded increment rolled back with the transaction.
	tt, err := f.types.GetTicketTypeByID(ctx, "tt-1")
	require.NoError(t, err)
	assert.Equal(t, 0, tt.SoldQuantity)
}

func TestCartPurchaseRejectsDeactivatedDiscount(t *testing.T) {
	f := setup(t)
	f.seedEvent(t, 100)
	f.seedType(t, "tt-1", 1000, 10)
	ctx := context.Background()

	dc := models.DiscountCode{
		ID:         "disc-1",
		EventID:    "event-1",
		SellerID:   "seller-1",
		Code:       "SAVE",
		Percentage: 10,
		Active:     false,
		CreatedAt:  time.Now(),
	}
	_, err := f.bun.NewInsert().Model(&dc).Exec(ctx)
	require.NoError(t, err)

	req := models.CartCheckoutRequest{
		EventID:        "event-1",
		Items:          []models.CartItem{{TicketTypeID: "tt-1", Quantity: 2}},
		DiscountCodeID: "disc-1",
	}
	err = f.svc.PurchaseCartTickets(ctx, "buyer-1", req, models.PaymentInfo{PaymentIntentID: "pi_inactive", Amount: 1800})
	assert.ErrorIs(t, err, purchase.ErrDiscount)
	assert.Equal(t, 0, f.ticketCount(t))

	tt, err := f.types.GetTicketTypeByID(ctx, "tt-1")
	require.NoError(t, err)
	assert.Equal(t, 0, tt.SoldQuantity)
}

func TestCartPurchaseRejectsDiscountOutsideWindow(t *testing.T) {
	f := setup(t)
	f.seedEvent(t, 100)
	f.seedType(t, "tt-1", 1000, 10)
	ctx := context.Background()

	dc := models.DiscountCode{
		ID:         "disc-1",
		EventID:    "event-1",
		SellerID:   "seller-1",
		Code:       "SAVE",
		Percentage: 10,
		Active:     true,
		ValidTo:    time.Now().Add(-time.Hour),
		CreatedAt:  time.Now().Add(-48 * time.Hour),
	}
	_, err := f.bun.NewInsert().Model(&dc).Exec(ctx)
	require.NoError(t, err)

	req := models.CartCheckoutRequest{
		EventID:        "event-1",
		Items:          []models.CartItem{{TicketTypeID: "tt-1", Quantity: 1}},
		DiscountCodeID: "disc-1",
	}
	err = f.svc.PurchaseCartTickets(ctx, "buyer-1", req, models.PaymentInfo{PaymentIntentID: "pi_expired", Amount: 900})
	assert.ErrorIs(t, err, purchase.ErrDiscount)
	assert.Equal(t, 0, f.ticketCount(t))
}

func TestCartPurchaseRejectsDiscountFromOtherEvent(t *testing.T) {
	f := setup(t)
	f.seedEvent(t, 100)
	f.seedType(t, "tt-1", 1000, 10)
	ctx := context.Background()

	dc := models.DiscountCode{
		ID:         "disc-other",
		EventID:    "event-2",
		SellerID:   "seller-2",
		Code:       "SAVE",
		Percentage: 50,
		Active:     true,
		CreatedAt:  time.Now(),
	}
	_, err := f.bun.NewInsert().Model(&dc).Exec(ctx)
	require.NoError(t, err)

	req := models.CartCheckoutRequest{
		EventID:        "event-1",
		Items:          []models.CartItem{{TicketTypeID: "tt-1", Quantity: 1}},
		DiscountCodeID: "disc-other",
	}
	err = f.svc.PurchaseCartTickets(ctx, "buyer-1", req, models.PaymentInfo{PaymentIntentID: "pi_cross", Amount: 500})
	assert.ErrorIs(t, err, purchase.ErrDiscount)
	assert.Equal(t, 0, f.ticketCount(t))
}

func TestCartPurchaseRejectsCancelledEvent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	event := models.Event{
		ID:           "event-1",
		Name:         "Test Concert",
		Price:        5000,
		TotalTickets: 100,
		Currency:     "nok",
		UserID:       "seller-1",
		IsCancelled:  true,
		EventDate:    time.Now().Add(24 * time.Hour),
		CreatedAt:    time.Now(),
	}
	_, err := f.bun.NewInsert().Model(&event).Exec(ctx)
	require.NoError(t, err)
	f.seedType(t, "tt-1", 1000, 10)

	req := models.CartCheckoutRequest{
		EventID: "event-1",
		Items:   []models.CartItem{{TicketTypeID: "tt-1", Quantity: 1}},
	}
	err = f.svc.PurchaseCartTickets(ctx, "buyer-1", req, models.PaymentInfo{PaymentIntentID: "pi_cancelled", Amount: 1000})
	assert.ErrorIs(t, err, purchase.ErrEventCancelled)
	assert.Equal(t, 0, f.ticketCount(t))
}

func TestTicketTypePurchaseRejectsClosedSaleWindow(t *testing.T) {
	f := setup(t)
	f.seedEvent(t, 100)
	ctx := context.Background()

	tt := models.TicketType{
		ID:            "tt-1",
		EventID:       "event-1",
		Name:          "Early bird",
		Price:         1000,
		TotalQuantity: 10,
		IsEnabled:     true,
		EndDate:       time.Now().Add(-time.Hour),
		CreatedAt:     time.Now().Add(-48 * time.Hour),
	}
	_, err := f.bun.NewInsert().Model(&tt).Exec(ctx)
	require.NoError(t, err)

	err = f.svc.PurchaseTicketType(ctx, "buyer-1", "tt-1", 1, models.PaymentInfo{PaymentIntentID: "pi_window", Amount: 1000}, nil)
	assert.ErrorIs(t, err, purchase.ErrOffSale)
	assert.Equal(t, 0, f.ticketCount(t))

	stored, err := f.types.GetTicketTypeByID(ctx, "tt-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.SoldQuantity)
}

func TestWaitingListPurchaseConsumesOffer(t *testing.T) {
	f := setup(t)
	f.seedEvent(t, 10)
	ctx := context.Background()

	entry := models.WaitingListEntry{
		ID:             "entry-1",
		EventID:        "event-1",
		UserID:         "buyer-1",
		Status:         models.WaitingListStatusOffered,
		OfferExpiresAt: time.Now().Add(10 * time.Minute),
		CreatedAt:      time.Now(),
	}
	_, err := f.bun.NewInsert().Model(&entry).Exec(ctx)
	require.NoError(t, err)

	pay := models.PaymentInfo{PaymentIntentID: "pi_wl", Amount: 5000}
	require.NoError(t, f.svc.PurchaseTicket(ctx, "entry-1", pay))

	stored, err := f.svc.WaitingList.GetEntryByID(ctx, "entry-1")
	require.NoError(t, err)
	assert.Equal(t, models.WaitingListStatusPurchased, stored.Status)
	assert.Equal(t, 1, f.ticketCount(t))
	assert.Contains(t, f.timers.disarmed, "entry-1")

	// Replay does not issue a second ticket or flip state.
	require.NoError(t, f.svc.PurchaseTicket(ctx, "entry-1", pay))
	assert.Equal(t, 1, f.ticketCount(t))
}

func TestWaitingListPurchaseRejectsExpiredOffer(t *testing.T) {
	f := setup(t)
	f.seedEvent(t, 10)
	ctx := context.Background()

	entry := models.WaitingListEntry{
		ID:        "entry-1",
		EventID:   "event-1",
		UserID:    "buyer-1",
		Status:    models.WaitingListStatusExpired,
		CreatedAt: time.Now(),
	}
	_, err := f.bun.NewInsert().Model(&entry).Exec(ctx)
	require.NoError(t, err)

	err = f.svc.PurchaseTicket(ctx, "entry-1", models.PaymentInfo{PaymentIntentID: "pi_late", Amount: 5000})
	assert.ErrorIs(t, err, purchase.ErrNoOffer)
	assert.Equal(t, 0, f.ticketCount(t))
}
