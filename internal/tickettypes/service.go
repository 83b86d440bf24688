package tickettypes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tickethub/internal/logger"
	"tickethub/internal/models"
	"tickethub/internal/utils"
)

type DBLayer interface {
	CreateTicketType(ctx context.Context, tt models.TicketType) error
	GetTicketTypeByID(ctx context.Context, id string) (*models.TicketType, error)
	GetTicketTypesByEvent(ctx context.Context, eventID string) ([]models.TicketType, error)
	UpdateTicketType(ctx context.Context, tt models.TicketType) error
	DeleteTicketType(ctx context.Context, id string) error
}

type EventGetter interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

type Service struct {
	DB     DBLayer
	Events EventGetter
	Logger *logger.Logger
}

func NewService(db DBLayer, events EventGetter, log *logger.Logger) *Service {
	return &Service{DB: db, Events: events, Logger: log}
}

func (s *Service) Create(ctx context.Context, eventID string, req models.TicketTypeRequest) (*models.TicketType, error) {
	if _, err := s.Events.GetEventByID(ctx, eventID); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, errors.New("ticket type name is required")
	}
	if req.Price < 0 {
		return nil, errors.New("price cannot be negative")
	}
	if req.TotalQuantity <= 0 {
		return nil, errors.New("total quantity must be positive")
	}

	tt := models.TicketType{
		ID:            uuid.NewString(),
		EventID:       eventID,
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		TotalQuantity: req.TotalQuantity,
		SoldQuantity:  0,
		IsEnabled:     true,
		StartDate:     utils.MillisToTime(req.StartDate),
		EndDate:       utils.MillisToTime(req.EndDate),
		SortOrder:     req.SortOrder,
		Category:      req.Category,
		CreatedAt:     time.Now(),
	}

	if err := s.DB.CreateTicketType(ctx, tt); err != nil {
		return nil, fmt.Errorf("failed to create ticket type: %w", err)
	}
	s.Logger.Info("TICKETTYPE", fmt.Sprintf("Created ticket type %s (%s) for event %s", tt.ID, tt.Name, eventID))
	return &tt, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.TicketType, error) {
	return s.DB.GetTicketTypeByID(ctx, id)
}

func (s *Service) ListByEvent(ctx context.Context, eventID string) ([]models.TicketType, error) {
	return s.DB.GetTicketTypesByEvent(ctx, eventID)
}

// Update edits a tier. TotalQuantity cannot drop below SoldQuantity.
func (s *Service) Update(ctx context.Context, id string, req models.TicketTypeRequest) error {
	tt, err := s.DB.GetTicketTypeByID(ctx, id)
	if err != nil {
		return err
	}

	if req.TotalQuantity < tt.SoldQuantity {
		return fmt.Errorf("cannot reduce quantity below %d (number of tickets already sold)", tt.SoldQuantity)
	}

	tt.Name = req.Name
	tt.Description = req.Description
	tt.Price = req.Price
	tt.TotalQuantity = req.TotalQuantity
	tt.StartDate = utils.MillisToTime(req.StartDate)
	tt.EndDate = utils.MillisToTime(req.EndDate)
	tt.SortOrder = req.SortOrder
	if req.Category != "" {
		tt.Category = req.Category
	}

	if err := s.DB.UpdateTicketType(ctx, *tt); err != nil {
		return fmt.Errorf("failed to update ticket type: %w", err)
	}
	return nil
}

func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) error {
	tt, err := s.DB.GetTicketTypeByID(ctx, id)
	if err != nil {
		return err
	}
	tt.IsEnabled = enabled
	return s.DB.UpdateTicketType(ctx, *tt)
}

// Delete removes a tier. Blocked once any ticket has been sold.
func (s *Service) Delete(ctx context.Context, id string) error {
	tt, err := s.DB.GetTicketTypeByID(ctx, id)
	if err != nil {
		return err
	}
	if tt.SoldQuantity > 0 {
		return errors.New("cannot delete a ticket type with sold tickets")
	}
	return s.DB.DeleteTicketType(ctx, id)
}

func (s *Service) Availability(ctx context.Context, id string) (*models.TicketTypeAvailability, error) {
	tt, err := s.DB.GetTicketTypeByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	remaining := tt.TotalQuantity - tt.SoldQuantity

	status := models.SalesStatusAvailable
	switch {
	case !tt.OnSaleAt(now):
		status = models.SalesStatusNotOnSale
	case remaining <= 0:
		status = models.SalesStatusSoldOut
	}

	return &models.TicketTypeAvailability{
		TicketTypeID: id,
		Available:    status == models.SalesStatusAvailable,
		Remaining:    remaining,
		Total:        tt.TotalQuantity,
		Sold:         tt.SoldQuantity,
		IsEnabled:    tt.IsEnabled,
		SalesStatus:  status,
	}, nil
}
