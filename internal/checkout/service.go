package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"

	"tickethub/internal/config"
	"tickethub/internal/discount"
	eventdb "tickethub/internal/events/db"
	"tickethub/internal/logger"
	"tickethub/internal/models"
	typedb "tickethub/internal/tickettypes/db"
	"tickethub/internal/users"
	wldb "tickethub/internal/waitinglist/db"
)

var (
	ErrOfferNotActive = errors.New("no active offer for this waiting list entry")
	ErrNotYourOffer   = errors.New("waiting list entry does not belong to this user")
	ErrEmptyCart      = errors.New("cart is empty")
	ErrOffSale        = errors.New("ticket type is not on sale")
)

// SessionCreator is the slice of the Stripe client that creates Checkout
// Sessions.
type SessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Fulfiller turns a confirmed payment into tickets. The free-ticket path
// calls it directly; paid paths go through the webhook.
type Fulfiller interface {
	PurchaseTicket(ctx context.Context, entryID string, pay models.PaymentInfo) error
	PurchaseTicketType(ctx context.Context, userID, typeID string, quantity int, pay models.PaymentInfo, buyer *models.BuyerInfo) error
	PurchaseCartTickets(ctx context.Context, userID string, req models.CartCheckoutRequest, pay models.PaymentInfo) error
}

// Service builds Stripe Checkout Sessions. All prices are re-read from the
// database; amounts sent by the client are never trusted. Paid sessions are
// destination charges to the seller's Connect account with the platform fee
// withheld.
type Service struct {
	Sessions    SessionCreator
	Fulfill     Fulfiller
	Events      *eventdb.DB
	Types       *typedb.DB
	WaitingList *wldb.DB
	Discounts   *discount.Service
	Users       *users.Service
	Config      config.StripeConfig
	SuccessURL  string
	CancelURL   string
	Logger      *logger.Logger
}

// CheckoutWaitingList starts payment for an active waiting-list offer.
func (s *Service) CheckoutWaitingList(ctx context.Context, userID, entryID string) (*models.CheckoutSessionResponse, error) {
	entry, err := s.WaitingList.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrNotYourOffer
	}
	if !entry.ActiveOfferAt(time.Now()) {
		return nil, ErrOfferNotActive
	}

	event, err := s.Events.GetEventByID(ctx, entry.EventID)
	if err != nil {
		return nil, err
	}

	if event.Price == 0 {
		return s.fulfillFree(ctx, func(pay models.PaymentInfo) error {
			return s.Fulfill.PurchaseTicket(ctx, entryID, pay)
		})
	}

	params := s.baseSessionParams()
	params.LineItems = []*stripe.CheckoutSessionLineItemParams{
		lineItem(event.Currency, event.Name, event.Price, 1),
	}
	params.AddMetadata("kind", "waiting_list")
	params.AddMetadata("entry_id", entryID)
	params.AddMetadata("user_id", userID)

	if err := s.applyConnect(ctx, params, event.UserID, event.Price); err != nil {
		return nil, err
	}
	return s.createSession(ctx, params)
}

// CheckoutTicketType starts payment for a direct single-type purchase.
func (s *Service) CheckoutTicketType(ctx context.Context, userID, typeID string, quantity int, buyer *models.BuyerInfo) (*models.CheckoutSessionResponse, error) {
	if quantity < 1 {
		return nil, errors.New("quantity must be at least 1")
	}
	tt, err := s.Types.GetTicketTypeByID(ctx, typeID)
	if err != nil {
		return nil, err
	}
	if !tt.OnSaleAt(time.Now()) {
		return nil, ErrOffSale
	}
	event, err := s.Events.GetEventByID(ctx, tt.EventID)
	if err != nil {
		return nil, err
	}

	total := tt.Price * int64(quantity)
	if total == 0 {
		return s.fulfillFree(ctx, func(pay models.PaymentInfo) error {
			return s.Fulfill.PurchaseTicketType(ctx, userID, typeID, quantity, pay, buyer)
		})
	}

	params := s.baseSessionParams()
	params.LineItems = []*stripe.CheckoutSessionLineItemParams{
		lineItem(event.Currency, fmt.Sprintf("%s - %s", event.Name, tt.Name), tt.Price, int64(quantity)),
	}
	params.AddMetadata("kind", "ticket_type")
	params.AddMetadata("ticket_type_id", typeID)
	params.AddMetadata("quantity", fmt.Sprintf("%d", quantity))
	params.AddMetadata("user_id", userID)
	addBuyerMetadata(params, buyer)

	if err := s.applyConnect(ctx, params, event.UserID, total); err != nil {
		return nil, err
	}
	return s.createSession(ctx, params)
}

// CheckoutCart starts payment for a multi-line cart, applying the discount
// per line after re-validating it.
func (s *Service) CheckoutCart(ctx context.Context, userID string, req models.CartCheckoutRequest) (*models.CheckoutSessionResponse, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	event, err := s.Events.GetEventByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var dc *models.DiscountCode
	if req.DiscountCodeID != "" {
		code, err := s.Discounts.Get(ctx, req.DiscountCodeID)
		if err != nil {
			return nil, err
		}
		check, err := s.Discounts.Validate(ctx, req.EventID, code.Code, now)
		if err != nil {
			return nil, err
		}
		if !check.Valid {
			return nil, errors.New(check.Message)
		}
		dc = check.Discount
	}

	var items []*stripe.CheckoutSessionLineItemParams
	var total int64
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, errors.New("quantity must be at least 1")
		}
		tt, err := s.Types.GetTicketTypeByID(ctx, item.TicketTypeID)
		if err != nil {
			return nil, err
		}
		if tt.EventID != req.EventID {
			return nil, errors.New("ticket type does not belong to this event")
		}
		if !tt.OnSaleAt(now) {
			return nil, fmt.Errorf("%w: %s", ErrOffSale, tt.Name)
		}

		unit := tt.Price
		if dc != nil {
			unit -= discountAmount(tt.Price, dc.Percentage)
		}
		total += unit * int64(item.Quantity)
		items = append(items, lineItem(event.Currency, fmt.Sprintf("%s - %s", event.Name, tt.Name), unit, int64(item.Quantity)))
	}

	if total == 0 {
		return s.fulfillFree(ctx, func(pay models.PaymentInfo) error {
			return s.Fulfill.PurchaseCartTickets(ctx, userID, req, pay)
		})
	}

	cartJSON, err := json.Marshal(req.Items)
	if err != nil {
		return nil, err
	}

	params := s.baseSessionParams()
	params.LineItems = items
	params.AddMetadata("kind", "cart")
	params.AddMetadata("event_id", req.EventID)
	params.AddMetadata("cart", string(cartJSON))
	params.AddMetadata("discount_code_id", req.DiscountCodeID)
	params.AddMetadata("user_id", userID)
	addBuyerMetadata(params, req.BuyerInfo)

	if err := s.applyConnect(ctx, params, event.UserID, total); err != nil {
		return nil, err
	}
	return s.createSession(ctx, params)
}

func (s *Service) baseSessionParams() *stripe.CheckoutSessionParams {
	return &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.SuccessURL),
		CancelURL:  stripe.String(s.CancelURL),
	}
}

// applyConnect routes the charge to the seller's Connect account and keeps
// the platform fee.
func (s *Service) applyConnect(ctx context.Context, params *stripe.CheckoutSessionParams, sellerID string, total int64) error {
	connectID, err := s.Users.ConnectID(ctx, sellerID)
	if err != nil {
		return err
	}
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
		ApplicationFeeAmount: stripe.Int64(platformFee(total, s.Config.PlatformFeePercent)),
		TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
			Destination: stripe.String(connectID),
		},
	}
	return nil
}

func (s *Service) createSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*models.CheckoutSessionResponse, error) {
	params.Context = ctx
	sess, err := s.Sessions.New(params)
	if err != nil {
		s.Logger.Error("CHECKOUT", fmt.Sprintf("Failed to create Stripe session: %v", err))
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	s.Logger.Info("CHECKOUT", fmt.Sprintf("Created Stripe session %s", sess.ID))
	return &models.CheckoutSessionResponse{SessionID: sess.ID, URL: sess.URL}, nil
}

// fulfillFree skips Stripe entirely for a zero total and issues the tickets
// under a synthetic payment reference.
func (s *Service) fulfillFree(ctx context.Context, fulfill func(pay models.PaymentInfo) error) (*models.CheckoutSessionResponse, error) {
	pay := models.PaymentInfo{PaymentIntentID: "free_" + uuid.NewString(), Amount: 0}
	if err := fulfill(pay); err != nil {
		return nil, err
	}
	return &models.CheckoutSessionResponse{URL: s.SuccessURL}, nil
}

func lineItem(currency, name string, unitAmount, quantity int64) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(currency),
			UnitAmount: stripe.Int64(unitAmount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
		Quantity: stripe.Int64(quantity),
	}
}

func addBuyerMetadata(params *stripe.CheckoutSessionParams, buyer *models.BuyerInfo) {
	if buyer == nil {
		return
	}
	params.AddMetadata("buyer_name", buyer.FullName)
	params.AddMetadata("buyer_email", buyer.Email)
	params.AddMetadata("buyer_phone", buyer.Phone)
}

// platformFee rounds total × pct / 100 half-up in minor units.
func platformFee(total int64, pct int) int64 {
	return decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// discountAmount rounds price × pct / 100 half-up in minor units. Matches
// the fulfillment side so the charged total equals the recorded total.
func discountAmount(price int64, percentage int) int64 {
	return decimal.NewFromInt(price).
		Mul(decimal.NewFromInt(int64(percentage))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
