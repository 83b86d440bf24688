package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	discountdb "tickethub/internal/discount/db"
	eventdb "tickethub/internal/events/db"
	"tickethub/internal/kafka"
	"tickethub/internal/logger"
	"tickethub/internal/models"
	"tickethub/internal/monitoring"
	ticketdb "tickethub/internal/tickets/db"
	typedb "tickethub/internal/tickettypes/db"
	userdb "tickethub/internal/users/db"
	wldb "tickethub/internal/waitinglist/db"
)

var (
	ErrNoOffer        = errors.New("waiting list entry does not hold an active offer")
	ErrSoldOut        = errors.New("not enough tickets available")
	ErrOffSale        = errors.New("ticket type is not on sale")
	ErrBadCart        = errors.New("cart is empty or malformed")
	ErrDiscount       = errors.New("discount code can no longer be applied")
	ErrEventCancelled = errors.New("event has been cancelled")
)

type OfferTimers interface {
	Disarm(ctx context.Context, entryID string) error
}

type KafkaPublisher interface {
	PublishJSON(topic, key string, payload interface{}) error
}

// Notifier sends purchase confirmations; nil disables them.
type Notifier interface {
	SendPurchaseConfirmation(email string, tickets []models.Ticket) error
}

// Service reconciles a confirmed payment into ticket rows. Every entry
// point is idempotent on the payment intent id and runs its writes in one
// transaction, so webhook redeliveries and crashes cannot double-issue.
type Service struct {
	Bun         *bun.DB
	Events      *eventdb.DB
	Tickets     *ticketdb.DB
	Types       *typedb.DB
	WaitingList *wldb.DB
	Discounts   *discountdb.DB
	Users       *userdb.DB
	Timers      OfferTimers
	Kafka       KafkaPublisher
	Notifier    Notifier
	Logger      *logger.Logger
}

// PurchaseTicket fulfills a waiting-list offer: the entry flips to
// purchased and one event-level ticket is written.
func (s *Service) PurchaseTicket(ctx context.Context, entryID string, pay models.PaymentInfo) error {
	entry, err := s.WaitingList.GetEntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	event, err := s.Events.GetEventByID(ctx, entry.EventID)
	if err != nil {
		return err
	}

	var issued []models.Ticket
	err = s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		done, err := s.Tickets.ExistsByPaymentIntent(ctx, tx, pay.PaymentIntentID)
		if err != nil || done {
			return err
		}

		if err := s.WaitingList.PurchaseIfOffered(ctx, tx, entryID); err != nil {
			if errors.Is(err, wldb.ErrStatusConflict) {
				return ErrNoOffer
			}
			return err
		}

		ticket := models.Ticket{
			ID:              uuid.NewString(),
			EventID:         entry.EventID,
			UserID:          entry.UserID,
			PurchasedAt:     time.Now(),
			Status:          models.TicketStatusValid,
			PaymentIntentID: pay.PaymentIntentID,
			Amount:          pay.Amount,
			OriginalAmount:  event.Price,
		}
		if err := s.Tickets.InsertTickets(ctx, tx, []models.Ticket{ticket}); err != nil {
			return err
		}
		issued = append(issued, ticket)
		return nil
	})
	if err != nil {
		return err
	}
	if len(issued) == 0 {
		s.Logger.Info("PURCHASE", fmt.Sprintf("Payment %s already fulfilled, skipping", pay.PaymentIntentID))
		return nil
	}

	if err := s.Timers.Disarm(ctx, entryID); err != nil {
		s.Logger.Error("WAITLIST", fmt.Sprintf("Failed to disarm timer for entry %s: %v", entryID, err))
	}

	s.finish(ctx, entry.EventID, "waiting_list", entry.UserID, "", issued)
	return nil
}

// PurchaseTicketType fulfills a direct purchase of one ticket type.
func (s *Service) PurchaseTicketType(ctx context.Context, userID, typeID string, quantity int, pay models.PaymentInfo, buyer *models.BuyerInfo) error {
	if quantity < 1 {
		return ErrBadCart
	}

	var eventID string
	var issued []models.Ticket
	err := s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		done, err := s.Tickets.ExistsByPaymentIntent(ctx, tx, pay.PaymentIntentID)
		if err != nil || done {
			return err
		}

		tt, err := s.Types.TicketTypeByID(ctx, tx, typeID)
		if err != nil {
			return err
		}
		eventID = tt.EventID

		now := time.Now()
		if !tt.OnSaleAt(now) {
			return fmt.Errorf("%w: %s", ErrOffSale, tt.Name)
		}

		if err := s.Types.IncrementSold(ctx, tx, typeID, quantity); err != nil {
			if errors.Is(err, typedb.ErrCapacityExceeded) {
				return ErrSoldOut
			}
			return err
		}
		for i := 0; i < quantity; i++ {
			issued = append(issued, models.Ticket{
				ID:              uuid.NewString(),
				EventID:         tt.EventID,
				UserID:          userID,
				TicketTypeID:    typeID,
				PurchasedAt:     now,
				Status:          models.TicketStatusValid,
				PaymentIntentID: pay.PaymentIntentID,
				Amount:          tt.Price,
				OriginalAmount:  tt.Price,
			})
		}
		if err := s.Tickets.InsertTickets(ctx, tx, issued); err != nil {
			return err
		}
		return s.upsertBuyer(ctx, tx, userID, buyer)
	})
	if err != nil {
		return err
	}
	if len(issued) == 0 {
		s.Logger.Info("PURCHASE", fmt.Sprintf("Payment %s already fulfilled, skipping", pay.PaymentIntentID))
		return nil
	}

	email := ""
	if buyer != nil {
		email = buyer.Email
	}
	s.finish(ctx, eventID, "ticket_type", userID, email, issued)
	return nil
}

// PurchaseCartTickets fulfills a multi-line cart. Prices come from the
// ticket type records, never the cart; the discount is applied per line
// and its usage counts once for the whole cart.
func (s *Service) PurchaseCartTickets(ctx context.Context, userID string, req models.CartCheckoutRequest, pay models.PaymentInfo) error {
	if len(req.Items) == 0 {
		return ErrBadCart
	}

	var issued []models.Ticket
	err := s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		done, err := s.Tickets.ExistsByPaymentIntent(ctx, tx, pay.PaymentIntentID)
		if err != nil || done {
			return err
		}

		event, err := s.Events.EventByID(ctx, tx, req.EventID)
		if err != nil {
			return err
		}
		if event.IsCancelled {
			return ErrEventCancelled
		}

		now := time.Now()

		// Stripe sessions outlive seller edits, so the code is checked
		// again here, not just at session creation.
		var discount *models.DiscountCode
		if req.DiscountCodeID != "" {
			discount, err = s.Discounts.DiscountCodeByID(ctx, tx, req.DiscountCodeID)
			if err != nil {
				return err
			}
			if !discountUsableAt(discount, req.EventID, now) {
				return ErrDiscount
			}
		}

		for _, item := range req.Items {
			if item.Quantity < 1 {
				return ErrBadCart
			}
			tt, err := s.Types.TicketTypeByID(ctx, tx, item.TicketTypeID)
			if err != nil {
				return err
			}
			if tt.EventID != req.EventID {
				return ErrBadCart
			}
			if !tt.OnSaleAt(now) {
				return fmt.Errorf("%w: %s", ErrOffSale, tt.Name)
			}

			if err := s.Types.IncrementSold(ctx, tx, tt.ID, item.Quantity); err != nil {
				if errors.Is(err, typedb.ErrCapacityExceeded) {
					return fmt.Errorf("%w: %s", ErrSoldOut, tt.Name)
				}
				return err
			}

			perUnitDiscount := int64(0)
			if discount != nil {
				perUnitDiscount = discountAmount(tt.Price, discount.Percentage)
			}
			for i := 0; i < item.Quantity; i++ {
				issued = append(issued, models.Ticket{
					ID:              uuid.NewString(),
					EventID:         req.EventID,
					UserID:          userID,
					TicketTypeID:    tt.ID,
					PurchasedAt:     now,
					Status:          models.TicketStatusValid,
					PaymentIntentID: pay.PaymentIntentID,
					Amount:          tt.Price - perUnitDiscount,
					OriginalAmount:  tt.Price,
					DiscountAmount:  perUnitDiscount,
					DiscountCodeID:  req.DiscountCodeID,
				})
			}
		}

		if discount != nil {
			// One redemption per cart regardless of line count.
			if err := s.Discounts.IncrementUsage(ctx, tx, discount.ID); err != nil {
				if errors.Is(err, discountdb.ErrUsageExhausted) {
					return ErrDiscount
				}
				return err
			}
		}

		if err := s.Tickets.InsertTickets(ctx, tx, issued); err != nil {
			return err
		}
		return s.upsertBuyer(ctx, tx, userID, req.BuyerInfo)
	})
	if err != nil {
		return err
	}
	if len(issued) == 0 {
		s.Logger.Info("PURCHASE", fmt.Sprintf("Payment %s already fulfilled, skipping", pay.PaymentIntentID))
		return nil
	}

	email := ""
	if req.BuyerInfo != nil {
		email = req.BuyerInfo.Email
	}
	s.finish(ctx, req.EventID, "cart", userID, email, issued)
	return nil
}

// discountUsableAt mirrors the validation rules applied at session
// creation: the code must belong to the event, be active, and be inside
// its window (the end instant counts as expired). The usage limit is
// enforced separately by the guarded IncrementUsage.
func discountUsableAt(code *models.DiscountCode, eventID string, now time.Time) bool {
	if code.EventID != eventID || !code.Active {
		return false
	}
	if !code.ValidFrom.IsZero() && now.Before(code.ValidFrom) {
		return false
	}
	if !code.ValidTo.IsZero() && !now.Before(code.ValidTo) {
		return false
	}
	return true
}

// discountAmount rounds price × pct / 100 half-up in minor units.
func discountAmount(price int64, percentage int) int64 {
	return decimal.NewFromInt(price).
		Mul(decimal.NewFromInt(int64(percentage))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

func (s *Service) upsertBuyer(ctx context.Context, tx bun.Tx, userID string, buyer *models.BuyerInfo) error {
	if buyer == nil || buyer.Email == "" {
		return nil
	}
	return s.Users.UpsertUser(ctx, tx, models.User{
		ID:        userID,
		Name:      buyer.FullName,
		Email:     buyer.Email,
		Phone:     buyer.Phone,
		CreatedAt: time.Now(),
	})
}

func (s *Service) finish(ctx context.Context, eventID, path, userID, email string, issued []models.Ticket) {
	monitoring.TicketsIssued.WithLabelValues(eventID, path).Add(float64(len(issued)))
	s.Logger.Info("PURCHASE", fmt.Sprintf("Issued %d tickets for event %s via %s", len(issued), eventID, path))

	if err := s.Kafka.PublishJSON(kafka.TopicTicketIssued, issued[0].PaymentIntentID,
		kafka.NewDomainEvent("ticket.issued", eventID, userID, map[string]interface{}{
			"count":             len(issued),
			"payment_intent_id": issued[0].PaymentIntentID,
		})); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish ticket issued event: %v", err))
	}

	if s.Notifier != nil && email != "" {
		if err := s.Notifier.SendPurchaseConfirmation(email, issued); err != nil {
			s.Logger.Error("EMAIL", fmt.Sprintf("Failed to send confirmation to %s: %v", email, err))
		}
	}
}
