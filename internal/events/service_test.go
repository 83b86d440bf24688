package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickethub/internal/events"
	eventdb "tickethub/internal/events/db"
	"tickethub/internal/logger"
	"tickethub/internal/models"
)

type mockDB struct {
	events     map[string]models.Event
	tickets    map[string][]models.Ticket
	types      map[string][]models.TicketType
	cancelled  []string
	offerCount int
}

func newMockDB() *mockDB {
	return &mockDB{
		events:  make(map[string]models.Event),
		tickets: make(map[string][]models.Ticket),
		types:   make(map[string][]models.TicketType),
	}
}

func (m *mockDB) CreateEvent(ctx context.Context, event models.Event) error {
	m.events[event.ID] = event
	return nil
}

func (m *mockDB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	event, ok := m.events[id]
	if !ok {
		return nil, eventdb.ErrNotFound
	}
	return &event, nil
}

func (m *mockDB) ListEvents(ctx context.Context) ([]models.Event, error)       { return nil, nil }
func (m *mockDB) SearchEvents(ctx context.Context, _ string) ([]models.Event, error) {
	return nil, nil
}

func (m *mockDB) GetEventsBySeller(ctx context.Context, sellerID string) ([]models.Event, error) {
	var out []models.Event
	for _, event := range m.events {
		if event.UserID == sellerID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (m *mockDB) UpdateEvent(ctx context.Context, event models.Event) error {
	m.events[event.ID] = event
	return nil
}

func (m *mockDB) MarkCancelled(ctx context.Context, id string) error {
	event, ok := m.events[id]
	if !ok {
		return eventdb.ErrNotFound
	}
	event.IsCancelled = true
	m.events[id] = event
	m.cancelled = append(m.cancelled, id)
	return nil
}

func (m *mockDB) SetMultiTier(ctx context.Context, id string) error { return nil }

func (m *mockDB) CountTicketsByStatus(ctx context.Context, eventID string, statuses ...models.TicketStatus) (int, error) {
	count := 0
	for _, t := range m.tickets[eventID] {
		for _, s := range statuses {
			if t.Status == s {
				count++
			}
		}
	}
	return count, nil
}

func (m *mockDB) CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error) {
	return m.offerCount, nil
}

func (m *mockDB) TicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	return m.tickets[eventID], nil
}

func (m *mockDB) TicketTypesByEvent(ctx context.Context, eventID string) ([]models.TicketType, error) {
	return m.types[eventID], nil
}

func (m *mockDB) CreateTicketTypes(ctx context.Context, types []models.TicketType) error {
	for _, tt := range types {
		m.types[tt.EventID] = append(m.types[tt.EventID], tt)
	}
	return nil
}

type mockPurger struct {
	purged []string
	err    error
}

func (m *mockPurger) PurgeEvent(ctx context.Context, eventID string) error {
	m.purged = append(m.purged, eventID)
	return m.err
}

type nopKafka struct{}

func (nopKafka) PublishJSON(topic, key string, payload interface{}) error { return nil }

func newService(db *mockDB, purger *mockPurger) *events.Service {
	return events.NewService(db, purger, nopKafka{}, logger.NewLogger())
}

func futureMillis() int64 {
	return time.Now().Add(48 * time.Hour).UnixMilli()
}

func TestCreateValidatesRequest(t *testing.T) {
	svc := newService(newMockDB(), &mockPurger{})
	ctx := context.Background()

	cases := []struct {
		name string
		req  models.EventRequest
	}{
		{"missing name", models.EventRequest{Price: 100, TotalTickets: 10, EventDate: futureMillis()}},
		{"negative price", models.EventRequest{Name: "x", Price: -1, TotalTickets: 10, EventDate: futureMillis()}},
		{"zero capacity", models.EventRequest{Name: "x", Price: 100, TotalTickets: 0, EventDate: futureMillis()}},
		{"past date", models.EventRequest{Name: "x", Price: 100, TotalTickets: 10, EventDate: time.Now().Add(-time.Hour).UnixMilli()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "seller-1", tc.req)
			assert.Error(t, err)
		})
	}
}

func TestCreateDefaultsCurrency(t *testing.T) {
	db := newMockDB()
	svc := newService(db, &mockPurger{})

	event, err := svc.Create(context.Background(), "seller-1", models.EventRequest{
		Name: "Concert", Price: 5000, TotalTickets: 100, EventDate: futureMillis(),
	})
	require.NoError(t, err)
	assert.Equal(t, "nok", event.Currency)
	assert.Equal(t, "seller-1", event.UserID)
	assert.Contains(t, db.events, event.ID)
}

func TestUpdateRejectsCapacityBelowSold(t *testing.T) {
	db := newMockDB()
	db.events["event-1"] = models.Event{ID: "event-1", Name: "Concert", TotalTickets: 10}
	db.tickets["event-1"] = []models.Ticket{
		{Status: models.TicketStatusValid},
		{Status: models.TicketStatusUsed},
		{Status: models.TicketStatusRefunded}, // does not count toward sold
	}
	svc := newService(db, &mockPurger{})

	err := svc.Update(context.Background(), "event-1", models.EventRequest{
		Name: "Concert", Price: 100, TotalTickets: 1, EventDate: futureMillis(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reduce total tickets below 2")

	err = svc.Update(context.Background(), "event-1", models.EventRequest{
		Name: "Concert", Price: 100, TotalTickets: 2, EventDate: futureMillis(),
	})
	assert.NoError(t, err)
}

func TestCancelBlockedByActiveTickets(t *testing.T) {
	db := newMockDB()
	db.events["event-1"] = models.Event{ID: "event-1", UserID: "seller-1"}
	db.tickets["event-1"] = []models.Ticket{{Status: models.TicketStatusValid}}
	purger := &mockPurger{}
	svc := newService(db, purger)

	err := svc.Cancel(context.Background(), "event-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refund all tickets first")
	assert.Empty(t, db.cancelled)
	assert.Empty(t, purger.purged)
}

func TestCancelPurgesWaitingList(t *testing.T) {
	db := newMockDB()
	db.events["event-1"] = models.Event{ID: "event-1", UserID: "seller-1"}
	db.tickets["event-1"] = []models.Ticket{{Status: models.TicketStatusRefunded}}
	purger := &mockPurger{}
	svc := newService(db, purger)

	require.NoError(t, svc.Cancel(context.Background(), "event-1"))
	assert.Equal(t, []string{"event-1"}, db.cancelled)
	assert.Equal(t, []string{"event-1"}, purger.purged)
}

func TestCancelSucceedsWhenPurgeFails(t *testing.T) {
	db := newMockDB()
	db.events["event-1"] = models.Event{ID: "event-1", UserID: "seller-1"}
	purger := &mockPurger{err: errors.New("redis down")}
	svc := newService(db, purger)

	// The cancellation itself must not roll back on a queue cleanup failure.
	require.NoError(t, svc.Cancel(context.Background(), "event-1"))
	assert.Equal(t, []string{"event-1"}, db.cancelled)
}

func TestAvailabilityCountsOffersAgainstCapacity(t *testing.T) {
	db := newMockDB()
	db.events["event-1"] = models.Event{ID: "event-1", TotalTickets: 10}
	db.tickets["event-1"] = []models.Ticket{
		{Status: models.TicketStatusValid},
		{Status: models.TicketStatusValid},
		{Status: models.TicketStatusUsed},
	}
	db.offerCount = 4
	svc := newService(db, &mockPurger{})

	avail, err := svc.Availability(context.Background(), "event-1")
	require.NoError(t, err)
	assert.Equal(t, 3, avail.PurchasedCount)
	assert.Equal(t, 4, avail.ActiveOffers)
	assert.Equal(t, 3, avail.Remaining)
	assert.False(t, avail.IsSoldOut)
}

func TestDuplicateCopiesTicketTypes(t *testing.T) {
	db := newMockDB()
	db.events["event-1"] = models.Event{ID: "event-1", UserID: "seller-1", Name: "Concert", TotalTickets: 100}
	db.types["event-1"] = []models.TicketType{
		{ID: "tt-1", EventID: "event-1", Name: "Standard", Price: 1000, TotalQuantity: 80, SoldQuantity: 40},
		{ID: "tt-2", EventID: "event-1", Name: "VIP", Price: 2500, TotalQuantity: 20, SoldQuantity: 5},
	}
	svc := newService(db, &mockPurger{})

	dup, err := svc.Duplicate(context.Background(), "event-1", "seller-2")
	require.NoError(t, err)
	assert.Equal(t, "Concert (Copy)", dup.Name)
	assert.Equal(t, "seller-2", dup.UserID)

	copies := db.types[dup.ID]
	require.Len(t, copies, 2)
	for i, tt := range copies {
		assert.Equal(t, dup.ID, tt.EventID)
		assert.NotEqual(t, db.types["event-1"][i].ID, tt.ID)
		assert.Equal(t, db.types["event-1"][i].Name, tt.Name)
		assert.Zero(t, tt.SoldQuantity)
	}
	assert.Equal(t, 80, copies[0].TotalQuantity)
}

func TestSellerEventsComputesMetrics(t *testing.T) {
	db := newMockDB()
	db.events["event-1"] = models.Event{ID: "event-1", UserID: "seller-1", Name: "Concert"}
	db.tickets["event-1"] = []models.Ticket{
		{Status: models.TicketStatusValid, Amount: 1000},
		{Status: models.TicketStatusUsed, Amount: 900},
		{Status: models.TicketStatusRefunded, Amount: 1000},
	}
	svc := newService(db, &mockPurger{})

	result, err := svc.SellerEvents(context.Background(), "seller-1")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 2, result[0].Metrics.SoldTickets)
	assert.Equal(t, int64(1900), result[0].Metrics.Revenue)
	assert.Equal(t, 1, result[0].Metrics.RefundedTickets)
}
