package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"tickethub/internal/logger"
	"tickethub/internal/models"
	userdb "tickethub/internal/users/db"
)

type DBLayer interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SetStripeConnectID(ctx context.Context, userID, connectID string) error
}

type Service struct {
	DB     DBLayer
	Bun    Upserter
	Logger *logger.Logger
}

// Upserter is the write side the store-user endpoint uses directly; it is
// the same db.DB but typed narrowly so tests can stub it.
type Upserter interface {
	UpsertDirect(ctx context.Context, user models.User) error
}

func NewService(db DBLayer, upserter Upserter, log *logger.Logger) *Service {
	return &Service{DB: db, Bun: upserter, Logger: log}
}

type StoreUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Store creates or refreshes the user record for the authenticated subject.
func (s *Service) Store(ctx context.Context, userID string, req StoreUserRequest) (*models.User, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, errors.New("email is required")
	}

	user := models.User{
		ID:        userID,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: time.Now(),
	}
	if err := s.Bun.UpsertDirect(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.DB.GetUserByID(ctx, userID)
}

// ConnectID returns the seller's Stripe Connect account id, or an error
// when the seller has not onboarded.
func (s *Service) ConnectID(ctx context.Context, userID string) (string, error) {
	user, err := s.DB.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userdb.ErrNotFound) {
			return "", errors.New("seller has no Stripe account")
		}
		return "", err
	}
	if user.StripeConnectID == "" {
		return "", errors.New("seller has not completed Stripe onboarding")
	}
	return user.StripeConnectID, nil
}

func (s *Service) SetConnectID(ctx context.Context, userID, connectID string) error {
	if strings.TrimSpace(connectID) == "" {
		return errors.New("stripe account id is required")
	}
	return s.DB.SetStripeConnectID(ctx, userID, connectID)
}
