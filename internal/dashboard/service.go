package dashboard

import (
	"context"

	"github.com/shopspring/decimal"

	dashdb "tickethub/internal/dashboard/db"
	"tickethub/internal/logger"
	"tickethub/internal/models"
)

// FinancialSummary is the seller's money view of one event. All amounts
// are minor units; the platform fee is withheld from gross revenue.
type FinancialSummary struct {
	EventID        string               `json:"event_id"`
	Currency       string               `json:"currency"`
	TicketsSold    int                  `json:"tickets_sold"`
	GrossRevenue   int64                `json:"gross_revenue"`
	DiscountsGiven int64                `json:"discounts_given"`
	PlatformFee    int64                `json:"platform_fee"`
	NetRevenue     int64                `json:"net_revenue"`
	RefundedTotal  int64                `json:"refunded_total"`
	ByTicketType   []dashdb.TypeRevenue `json:"by_ticket_type"`
}

type DBLayer interface {
	Buyers(ctx context.Context, eventID string, status models.TicketStatus, ticketTypeID, search string) ([]dashdb.BuyerRow, error)
	RevenueByType(ctx context.Context, eventID string) ([]dashdb.TypeRevenue, error)
	RefundedTotal(ctx context.Context, eventID string) (int64, error)
}

type EventGetter interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

type Service struct {
	DB         DBLayer
	Events     EventGetter
	FeePercent int
	Logger     *logger.Logger
}

func NewService(db DBLayer, events EventGetter, feePercent int, log *logger.Logger) *Service {
	return &Service{DB: db, Events: events, FeePercent: feePercent, Logger: log}
}

// BuyerFilter narrows the buyers listing.
type BuyerFilter struct {
	Status       models.TicketStatus
	TicketTypeID string
	Search       string
}

func (s *Service) Buyers(ctx context.Context, eventID string, filter BuyerFilter) ([]dashdb.BuyerRow, error) {
	return s.DB.Buyers(ctx, eventID, filter.Status, filter.TicketTypeID, filter.Search)
}

// Financial computes the event's revenue summary. The fee is rounded on
// the gross total, matching how checkout withholds it.
func (s *Service) Financial(ctx context.Context, eventID string) (*FinancialSummary, error) {
	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	byType, err := s.DB.RevenueByType(ctx, eventID)
	if err != nil {
		return nil, err
	}
	refunded, err := s.DB.RefundedTotal(ctx, eventID)
	if err != nil {
		return nil, err
	}

	summary := &FinancialSummary{
		EventID:       eventID,
		Currency:      event.Currency,
		RefundedTotal: refunded,
		ByTicketType:  byType,
	}
	for _, row := range byType {
		summary.TicketsSold += row.TicketsSold
		summary.GrossRevenue += row.GrossRevenue
		summary.DiscountsGiven += row.DiscountsGiven
	}
	summary.PlatformFee = feeOn(summary.GrossRevenue, s.FeePercent)
	summary.NetRevenue = summary.GrossRevenue - summary.PlatformFee
	return summary, nil
}

// feeOn rounds total × pct / 100 half-up in minor units.
func feeOn(total int64, pct int) int64 {
	return decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
