package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	discountdb "tickethub/internal/discount/db"
	"tickethub/internal/logger"
	"tickethub/internal/models"
)

type DBLayer interface {
	CreateDiscountCode(ctx context.Context, code models.DiscountCode) error
	GetDiscountCodeByID(ctx context.Context, id string) (*models.DiscountCode, error)
	FindByEventAndCode(ctx context.Context, eventID, code string) (*models.DiscountCode, error)
	GetDiscountCodesByEvent(ctx context.Context, eventID string) ([]models.DiscountCode, error)
	UpdateDiscountCode(ctx context.Context, code models.DiscountCode) error
	SetActive(ctx context.Context, id string, active bool) error
	DeleteDiscountCode(ctx context.Context, id string) error
	UsageDetails(ctx context.Context, codeID string) ([]models.DiscountUsageDetail, error)
}

type Service struct {
	DB     DBLayer
	Logger *logger.Logger
}

func NewService(db DBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, Logger: log}
}

func validateRequest(req models.DiscountCodeRequest) error {
	if strings.TrimSpace(req.Code) == "" {
		return errors.New("code is required")
	}
	if req.Percentage < 1 || req.Percentage > 100 {
		return errors.New("percentage must be between 1 and 100")
	}
	if req.UsageLimit < 0 {
		return errors.New("usage limit cannot be negative")
	}
	if req.ValidFrom > 0 && req.ValidTo > 0 && req.ValidTo <= req.ValidFrom {
		return errors.New("valid_to must be after valid_from")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, eventID, sellerID string, req models.DiscountCodeRequest) (*models.DiscountCode, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	code := models.DiscountCode{
		ID:         uuid.NewString(),
		EventID:    eventID,
		SellerID:   sellerID,
		Code:       strings.ToUpper(strings.TrimSpace(req.Code)),
		Percentage: req.Percentage,
		UsageLimit: req.UsageLimit,
		Active:     true,
		CreatedAt:  time.Now(),
	}
	if req.ValidFrom > 0 {
		code.ValidFrom = time.UnixMilli(req.ValidFrom)
	}
	if req.ValidTo > 0 {
		code.ValidTo = time.UnixMilli(req.ValidTo)
	}

	if err := s.DB.CreateDiscountCode(ctx, code); err != nil {
		return nil, err
	}
	s.Logger.Info("DISCOUNT", fmt.Sprintf("Created code %s (%d%%) for event %s", code.Code, code.Percentage, eventID))
	return &code, nil
}

func (s *Service) ListByEvent(ctx context.Context, eventID string) ([]models.DiscountCode, error) {
	return s.DB.GetDiscountCodesByEvent(ctx, eventID)
}

func (s *Service) Get(ctx context.Context, id string) (*models.DiscountCode, error) {
	return s.DB.GetDiscountCodeByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id string, req models.DiscountCodeRequest) (*models.DiscountCode, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	code, err := s.DB.GetDiscountCodeByID(ctx, id)
	if err != nil {
		return nil, err
	}

	code.Percentage = req.Percentage
	code.UsageLimit = req.UsageLimit
	if req.ValidFrom > 0 {
		code.ValidFrom = time.UnixMilli(req.ValidFrom)
	}
	if req.ValidTo > 0 {
		code.ValidTo = time.UnixMilli(req.ValidTo)
	}

	if err := s.DB.UpdateDiscountCode(ctx, *code); err != nil {
		return nil, err
	}
	return code, nil
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	return s.DB.SetActive(ctx, id, active)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.DB.DeleteDiscountCode(ctx, id)
}

func (s *Service) UsageDetails(ctx context.Context, id string) ([]models.DiscountUsageDetail, error) {
	return s.DB.UsageDetails(ctx, id)
}

// Validate checks a code against one event at the given instant. An invalid
// code is a normal outcome carried in the result, not an error; only lookup
// failures surface as errors.
func (s *Service) Validate(ctx context.Context, eventID, rawCode string, now time.Time) (*models.DiscountValidation, error) {
	code, err := s.DB.FindByEventAndCode(ctx, eventID, rawCode)
	if err != nil {
		if errors.Is(err, discountdb.ErrNotFound) {
			return &models.DiscountValidation{Valid: false, Message: "Invalid discount code"}, nil
		}
		return nil, err
	}

	switch {
	case !code.Active:
		return &models.DiscountValidation{Valid: false, Message: "This discount code is no longer active"}, nil
	case !code.ValidFrom.IsZero() && now.Before(code.ValidFrom):
		return &models.DiscountValidation{Valid: false, Message: "This discount code is not yet valid"}, nil
	case !code.ValidTo.IsZero() && !now.Before(code.ValidTo):
		// The end instant itself counts as expired.
		return &models.DiscountValidation{Valid: false, Message: "This discount code has expired"}, nil
	case code.UsageLimit > 0 && code.UsedCount >= code.UsageLimit:
		return &models.DiscountValidation{Valid: false, Message: "This discount code has reached its usage limit"}, nil
	}

	return &models.DiscountValidation{Valid: true, Discount: code}, nil
}
