package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tickethub/internal/kafka"
	"tickethub/internal/logger"
	"tickethub/internal/models"
	"tickethub/internal/utils"
)

type DBLayer interface {
	CreateEvent(ctx context.Context, event models.Event) error
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	SearchEvents(ctx context.Context, term string) ([]models.Event, error)
	GetEventsBySeller(ctx context.Context, sellerID string) ([]models.Event, error)
	UpdateEvent(ctx context.Context, event models.Event) error
	MarkCancelled(ctx context.Context, id string) error
	SetMultiTier(ctx context.Context, id string) error
	CountTicketsByStatus(ctx context.Context, eventID string, statuses ...models.TicketStatus) (int, error)
	CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error)
	TicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error)
	TicketTypesByEvent(ctx context.Context, eventID string) ([]models.TicketType, error)
	CreateTicketTypes(ctx context.Context, types []models.TicketType) error
}

// WaitingListPurger removes an event's queue entries when it is cancelled.
type WaitingListPurger interface {
	PurgeEvent(ctx context.Context, eventID string) error
}

type KafkaPublisher interface {
	PublishJSON(topic, key string, payload interface{}) error
}

type Service struct {
	DB     DBLayer
	Queue  WaitingListPurger
	Kafka  KafkaPublisher
	Logger *logger.Logger
}

func NewService(db DBLayer, queue WaitingListPurger, kafkaProducer KafkaPublisher, log *logger.Logger) *Service {
	return &Service{DB: db, Queue: queue, Kafka: kafkaProducer, Logger: log}
}

func validateEventRequest(req models.EventRequest, now time.Time) error {
	if req.Name == "" {
		return errors.New("event name is required")
	}
	if req.Price < 0 {
		return errors.New("price cannot be negative")
	}
	if req.TotalTickets <= 0 {
		return errors.New("total tickets must be positive")
	}
	if utils.MillisToTime(req.EventDate).Before(now) {
		return errors.New("event date must be in the future")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, organizerID string, req models.EventRequest) (*models.Event, error) {
	now := time.Now()
	if err := validateEventRequest(req, now); err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "nok"
	}

	event := models.Event{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		Location:     req.Location,
		EventDate:    utils.MillisToTime(req.EventDate),
		Price:        req.Price,
		TotalTickets: req.TotalTickets,
		Currency:     currency,
		UserID:       organizerID,
		ImageURL:     req.ImageURL,
		CreatedAt:    now,
	}

	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.Logger.Info("EVENT", fmt.Sprintf("Created event %s (%s)", event.ID, event.Name))
	return &event, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Event, error) {
	return s.DB.GetEventByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]models.Event, error) {
	return s.DB.ListEvents(ctx)
}

func (s *Service) Search(ctx context.Context, term string) ([]models.Event, error) {
	if term == "" {
		return s.DB.ListEvents(ctx)
	}
	return s.DB.SearchEvents(ctx, term)
}

// Update edits an event. TotalTickets cannot drop below the number of
// tickets already sold.
func (s *Service) Update(ctx context.Context, id string, req models.EventRequest) error {
	event, err := s.DB.GetEventByID(ctx, id)
	if err != nil {
		return err
	}

	sold, err := s.DB.CountTicketsByStatus(ctx, id, models.TicketStatusValid, models.TicketStatusUsed)
	if err != nil {
		return fmt.Errorf("failed to count sold tickets: %w", err)
	}
	if req.TotalTickets < sold {
		return fmt.Errorf("cannot reduce total tickets below %d (number of tickets already sold)", sold)
	}

	event.Name = req.Name
	event.Description = req.Description
	event.Location = req.Location
	event.EventDate = utils.MillisToTime(req.EventDate)
	event.Price = req.Price
	event.TotalTickets = req.TotalTickets
	if req.Currency != "" {
		event.Currency = req.Currency
	}
	if req.ImageURL != "" {
		event.ImageURL = req.ImageURL
	}

	if err := s.DB.UpdateEvent(ctx, *event); err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// Cancel soft-cancels an event. Blocked while valid or used tickets exist;
// refund them first. Waiting-list entries are purged.
func (s *Service) Cancel(ctx context.Context, id string) error {
	event, err := s.DB.GetEventByID(ctx, id)
	if err != nil {
		return err
	}

	active, err := s.DB.CountTicketsByStatus(ctx, id, models.TicketStatusValid, models.TicketStatusUsed)
	if err != nil {
		return fmt.Errorf("failed to count active tickets: %w", err)
	}
	if active > 0 {
		return errors.New("cannot cancel event with active tickets; refund all tickets first")
	}

	if err := s.DB.MarkCancelled(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel event: %w", err)
	}

	if err := s.Queue.PurgeEvent(ctx, id); err != nil {
		s.Logger.Error("EVENT", fmt.Sprintf("Failed to purge waiting list for event %s: %v", id, err))
	}

	if err := s.Kafka.PublishJSON(kafka.TopicEventCancelled, id,
		kafka.NewDomainEvent("event.cancelled", id, event.UserID, nil)); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish event cancellation: %v", err))
	}

	s.Logger.Info("EVENT", fmt.Sprintf("Cancelled event %s", id))
	return nil
}

func (s *Service) EnableMultiTier(ctx context.Context, id string) error {
	if _, err := s.DB.GetEventByID(ctx, id); err != nil {
		return err
	}
	return s.DB.SetMultiTier(ctx, id)
}

// Duplicate copies an event's definition and tiers as a fresh, unsold event.
func (s *Service) Duplicate(ctx context.Context, id string, organizerID string) (*models.Event, error) {
	src, err := s.DB.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}

	copyEvent := *src
	copyEvent.ID = uuid.NewString()
	copyEvent.Name = src.Name + " (Copy)"
	copyEvent.UserID = organizerID
	copyEvent.IsCancelled = false
	copyEvent.CreatedAt = time.Now()

	if err := s.DB.CreateEvent(ctx, copyEvent); err != nil {
		return nil, fmt.Errorf("failed to duplicate event: %w", err)
	}

	tiers, err := s.DB.TicketTypesByEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket types for event %s: %w", id, err)
	}
	copies := make([]models.TicketType, 0, len(tiers))
	for _, tier := range tiers {
		tier.ID = uuid.NewString()
		tier.EventID = copyEvent.ID
		tier.SoldQuantity = 0
		tier.CreatedAt = copyEvent.CreatedAt
		copies = append(copies, tier)
	}
	if err := s.DB.CreateTicketTypes(ctx, copies); err != nil {
		return nil, fmt.Errorf("failed to duplicate ticket types: %w", err)
	}

	s.Logger.Info("EVENT", fmt.Sprintf("Duplicated event %s -> %s (%d ticket types)", id, copyEvent.ID, len(copies)))
	return &copyEvent, nil
}

// SellerEvents lists the organizer's events with per-event sales metrics.
func (s *Service) SellerEvents(ctx context.Context, sellerID string) ([]models.EventWithMetrics, error) {
	events, err := s.DB.GetEventsBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	result := make([]models.EventWithMetrics, 0, len(events))
	for _, event := range events {
		tickets, err := s.DB.TicketsByEvent(ctx, event.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load tickets for event %s: %w", event.ID, err)
		}

		var metrics models.EventMetrics
		for _, t := range tickets {
			switch t.Status {
			case models.TicketStatusValid, models.TicketStatusUsed:
				metrics.SoldTickets++
				metrics.Revenue += t.Amount
			case models.TicketStatusRefunded:
				metrics.RefundedTickets++
			case models.TicketStatusCancelled:
				metrics.CancelledTickets++
			}
		}

		result = append(result, models.EventWithMetrics{Event: event, Metrics: metrics})
	}
	return result, nil
}

// Availability reports live capacity: remaining = total − purchased − active offers.
func (s *Service) Availability(ctx context.Context, eventID string) (*models.EventAvailability, error) {
	event, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	purchased, err := s.DB.CountTicketsByStatus(ctx, eventID, models.TicketStatusValid, models.TicketStatusUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to count purchased tickets: %w", err)
	}

	offers, err := s.DB.CountActiveOffers(ctx, eventID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to count active offers: %w", err)
	}

	remaining := event.TotalTickets - (purchased + offers)
	if remaining < 0 {
		remaining = 0
	}

	return &models.EventAvailability{
		EventID:        eventID,
		IsSoldOut:      purchased >= event.TotalTickets,
		TotalTickets:   event.TotalTickets,
		PurchasedCount: purchased,
		ActiveOffers:   offers,
		Remaining:      remaining,
	}, nil
}
