package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tickethub/internal/logger"
	"tickethub/internal/models"
	"tickethub/internal/monitoring"
	ticketdb "tickethub/internal/tickets/db"
)

type DBLayer interface {
	GetTicketWithDetails(ctx context.Context, id string) (*models.TicketDetails, error)
	MarkUsedIfValid(ctx context.Context, id string, usedAt time.Time) error
}

// Decryptor unwraps the encrypted QR payload back to ticket and event ids.
type Decryptor interface {
	Decrypt(encoded string) (ticketID, eventID string, err error)
}

// Service validates tickets at the door. The valid→used flip is a guarded
// update, so two scanners racing on one ticket admit exactly one person.
type Service struct {
	DB     DBLayer
	QR     Decryptor
	Logger *logger.Logger
}

func NewService(db DBLayer, qr Decryptor, log *logger.Logger) *Service {
	return &Service{DB: db, QR: qr, Logger: log}
}

// ScanQR validates an encrypted QR payload against the event being scanned.
func (s *Service) ScanQR(ctx context.Context, encoded, scanEventID string) (*models.ScanResult, error) {
	ticketID, eventID, err := s.QR.Decrypt(encoded)
	if err != nil {
		monitoring.TicketsScanned.WithLabelValues("invalid_qr").Inc()
		return &models.ScanResult{Success: false, Message: "Invalid or unreadable QR code"}, nil
	}
	if scanEventID != "" && eventID != scanEventID {
		monitoring.TicketsScanned.WithLabelValues("wrong_event").Inc()
		return &models.ScanResult{Success: false, Message: "Ticket belongs to a different event"}, nil
	}
	return s.Scan(ctx, ticketID, scanEventID)
}

// Scan validates a ticket by id and marks it used.
func (s *Service) Scan(ctx context.Context, ticketID, scanEventID string) (*models.ScanResult, error) {
	details, err := s.DB.GetTicketWithDetails(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ticketdb.ErrNotFound) {
			monitoring.TicketsScanned.WithLabelValues("not_found").Inc()
			return &models.ScanResult{Success: false, Message: "Ticket not found"}, nil
		}
		return nil, err
	}

	if scanEventID != "" && details.EventID != scanEventID {
		monitoring.TicketsScanned.WithLabelValues("wrong_event").Inc()
		return &models.ScanResult{Success: false, Message: "Ticket belongs to a different event", Ticket: details}, nil
	}

	switch details.Status {
	case models.TicketStatusUsed:
		monitoring.TicketsScanned.WithLabelValues("already_used").Inc()
		return &models.ScanResult{Success: false, Message: "Ticket has already been used", Ticket: details}, nil
	case models.TicketStatusRefunded:
		monitoring.TicketsScanned.WithLabelValues("refunded").Inc()
		return &models.ScanResult{Success: false, Message: "Ticket was refunded", Ticket: details}, nil
	case models.TicketStatusCancelled:
		monitoring.TicketsScanned.WithLabelValues("cancelled").Inc()
		return &models.ScanResult{Success: false, Message: "Ticket was cancelled", Ticket: details}, nil
	}

	now := time.Now()
	if err := s.DB.MarkUsedIfValid(ctx, ticketID, now); err != nil {
		if errors.Is(err, ticketdb.ErrStatusConflict) {
			// Lost the race to another scanner.
			monitoring.TicketsScanned.WithLabelValues("already_used").Inc()
			return &models.ScanResult{Success: false, Message: "Ticket has already been used", Ticket: details}, nil
		}
		return nil, err
	}

	details.Status = models.TicketStatusUsed
	details.UsedAt = now
	monitoring.TicketsScanned.WithLabelValues("admitted").Inc()
	s.Logger.Info("SCANNER", fmt.Sprintf("Ticket %s admitted for event %s", ticketID, details.EventID))
	return &models.ScanResult{Success: true, Message: "Ticket is valid - entry granted", Ticket: details}, nil
}
