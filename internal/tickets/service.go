package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"

	"tickethub/internal/kafka"
	"tickethub/internal/logger"
	"tickethub/internal/models"
	"tickethub/internal/tickets/pdf"
	"tickethub/internal/tickets/qr"
)

var ErrNotOwner = errors.New("ticket does not belong to this user")

type DBLayer interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketWithDetails(ctx context.Context, id string) (*models.TicketDetails, error)
	GetTicketsByUser(ctx context.Context, userID string) ([]models.TicketDetails, error)
	ActiveTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error)
	MarkRefunded(ctx context.Context, id string) error
}

// Refunder is the slice of the Stripe client the refund path needs.
type Refunder interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type QueuePromoter interface {
	PromoteNext(ctx context.Context, eventID string) error
}

type KafkaPublisher interface {
	PublishJSON(topic, key string, payload interface{}) error
}

type Service struct {
	DB      DBLayer
	Refunds Refunder
	Queue   QueuePromoter
	Kafka   KafkaPublisher
	QR      *qr.Generator
	PDF     *pdf.TicketGenerator
	Logger  *logger.Logger
}

func NewService(db DBLayer, refunds Refunder, queue QueuePromoter, kafkaProducer KafkaPublisher, qrGen *qr.Generator, pdfGen *pdf.TicketGenerator, log *logger.Logger) *Service {
	return &Service{
		DB:      db,
		Refunds: refunds,
		Queue:   queue,
		Kafka:   kafkaProducer,
		QR:      qrGen,
		PDF:     pdfGen,
		Logger:  log,
	}
}

func (s *Service) MyTickets(ctx context.Context, userID string) ([]models.TicketDetails, error) {
	return s.DB.GetTicketsByUser(ctx, userID)
}

func (s *Service) TicketDetails(ctx context.Context, ticketID, userID string) (*models.TicketDetails, error) {
	details, err := s.DB.GetTicketWithDetails(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if details.UserID != userID {
		return nil, ErrNotOwner
	}
	return details, nil
}

// TicketQR renders the encrypted QR PNG for a ticket owned by the user.
func (s *Service) TicketQR(ctx context.Context, ticketID, userID string) ([]byte, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != userID {
		return nil, ErrNotOwner
	}
	return s.QR.GenerateEncryptedQR(*ticket)
}

// TicketPDF renders the printable ticket with the QR embedded.
func (s *Service) TicketPDF(ctx context.Context, ticketID, userID string) ([]byte, error) {
	details, err := s.DB.GetTicketWithDetails(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if details.UserID != userID {
		return nil, ErrNotOwner
	}

	qrCode, err := s.QR.GenerateEncryptedQR(details.Ticket)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return s.PDF.Generate(*details, qrCode)
}

// RefundEventTickets refunds every still-valid ticket of an event through
// Stripe and promotes the waiting list for each freed slot. Used tickets
// are left alone. Returns how many refunds went through.
func (s *Service) RefundEventTickets(ctx context.Context, eventID string) (int, error) {
	tickets, err := s.DB.ActiveTicketsByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}

	refunded := 0
	for _, ticket := range tickets {
		if ticket.Status != models.TicketStatusValid {
			continue
		}
		if err := s.refundTicket(ctx, ticket); err != nil {
			s.Logger.Error("TICKETS", fmt.Sprintf("Failed to refund ticket %s: %v", ticket.ID, err))
			continue
		}
		refunded++
	}

	if refunded > 0 {
		if err := s.Queue.PromoteNext(ctx, eventID); err != nil {
			s.Logger.Error("WAITLIST", fmt.Sprintf("Promotion after refund failed for event %s: %v", eventID, err))
		}
	}
	return refunded, nil
}

// RefundTicket refunds a single valid ticket and frees its slot.
func (s *Service) RefundTicket(ctx context.Context, ticketID string) error {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := s.refundTicket(ctx, *ticket); err != nil {
		return err
	}
	if err := s.Queue.PromoteNext(ctx, ticket.EventID); err != nil {
		s.Logger.Error("WAITLIST", fmt.Sprintf("Promotion after refund failed for event %s: %v", ticket.EventID, err))
	}
	return nil
}

func (s *Service) refundTicket(ctx context.Context, ticket models.Ticket) error {
	// The status flip comes first so a second attempt cannot double-refund;
	// a failed Stripe call afterwards is logged for manual follow-up.
	if err := s.DB.MarkRefunded(ctx, ticket.ID); err != nil {
		return err
	}

	if ticket.Amount > 0 && ticket.PaymentIntentID != "" {
		params := &stripe.RefundParams{
			PaymentIntent:   stripe.String(ticket.PaymentIntentID),
			Amount:          stripe.Int64(ticket.Amount),
			ReverseTransfer: stripe.Bool(true),
		}
		params.Context = ctx
		if _, err := s.Refunds.New(params); err != nil {
			return fmt.Errorf("stripe refund failed: %w", err)
		}
	}

	s.Logger.Info("TICKETS", fmt.Sprintf("Refunded ticket %s (event %s)", ticket.ID, ticket.EventID))
	if err := s.Kafka.PublishJSON(kafka.TopicTicketRefunded, ticket.ID,
		kafka.NewDomainEvent("ticket.refunded", ticket.EventID, ticket.UserID, map[string]interface{}{
			"ticket_id": ticket.ID,
			"amount":    ticket.Amount,
			"at":        time.Now().UnixMilli(),
		})); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish refund event: %v", err))
	}
	return nil
}
