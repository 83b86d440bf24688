package discount_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickethub/internal/discount"
	discountdb "tickethub/internal/discount/db"
	"tickethub/internal/logger"
	"tickethub/internal/models"
)

type mockDB struct {
	codes map[string]*models.DiscountCode // keyed by event:CODE
}

func newMockDB() *mockDB {
	return &mockDB{codes: make(map[string]*models.DiscountCode)}
}

func (m *mockDB) put(code *models.DiscountCode) {
	m.codes[code.EventID+":"+strings.ToUpper(code.Code)] = code
}

func (m *mockDB) CreateDiscountCode(ctx context.Context, code models.DiscountCode) error {
	m.put(&code)
	return nil
}

func (m *mockDB) GetDiscountCodeByID(ctx context.Context, id string) (*models.DiscountCode, error) {
	for _, code := range m.codes {
		if code.ID == id {
			return code, nil
		}
	}
	return nil, discountdb.ErrNotFound
}

func (m *mockDB) FindByEventAndCode(ctx context.Context, eventID, code string) (*models.DiscountCode, error) {
	dc, ok := m.codes[eventID+":"+strings.ToUpper(code)]
	if !ok {
		return nil, discountdb.ErrNotFound
	}
	return dc, nil
}

func (m *mockDB) GetDiscountCodesByEvent(ctx context.Context, eventID string) ([]models.DiscountCode, error) {
	var out []models.DiscountCode
	for _, code := range m.codes {
		if code.EventID == eventID {
			out = append(out, *code)
		}
	}
	return out, nil
}

func (m *mockDB) UpdateDiscountCode(ctx context.Context, code models.DiscountCode) error {
	m.put(&code)
	return nil
}

func (m *mockDB) SetActive(ctx context.Context, id string, active bool) error {
	code, err := m.GetDiscountCodeByID(ctx, id)
	if err != nil {
		return err
	}
	code.Active = active
	return nil
}

func (m *mockDB) DeleteDiscountCode(ctx context.Context, id string) error {
	for key, code := range m.codes {
		if code.ID == id {
			delete(m.codes, key)
			return nil
		}
	}
	return discountdb.ErrNotFound
}

func (m *mockDB) UsageDetails(ctx context.Context, codeID string) ([]models.DiscountUsageDetail, error) {
	return nil, nil
}

func newService(db discount.DBLayer) *discount.Service {
	return discount.NewService(db, logger.NewLogger())
}

func seed(db *mockDB, mutate func(*models.DiscountCode)) *models.DiscountCode {
	code := &models.DiscountCode{
		ID:         "disc-1",
		EventID:    "event-1",
		SellerID:   "seller-1",
		Code:       "SUMMER20",
		Percentage: 20,
		Active:     true,
		CreatedAt:  time.Now(),
	}
	if mutate != nil {
		mutate(code)
	}
	db.put(code)
	return code
}

func TestValidateAcceptsActiveCodeCaseInsensitively(t *testing.T) {
	db := newMockDB()
	seed(db, nil)
	svc := newService(db)

	result, err := svc.Validate(context.Background(), "event-1", "summer20", time.Now())
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.NotNil(t, result.Discount)
	assert.Equal(t, 20, result.Discount.Percentage)
}

func TestValidateRejectsUnknownCode(t *testing.T) {
	svc := newService(newMockDB())

	result, err := svc.Validate(context.Background(), "event-1", "NOPE", time.Now())
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "Invalid discount code", result.Message)
}

func TestValidateRejectsInactiveCode(t *testing.T) {
	db := newMockDB()
	seed(db, func(c *models.DiscountCode) { c.Active = false })
	svc := newService(db)

	result, err := svc.Validate(context.Background(), "event-1", "SUMMER20", time.Now())
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Message, "no longer active")
}

func TestValidateRejectsCodeBeforeWindowOpens(t *testing.T) {
	db := newMockDB()
	now := time.Now()
	seed(db, func(c *models.DiscountCode) { c.ValidFrom = now.Add(time.Hour) })
	svc := newService(db)

	result, err := svc.Validate(context.Background(), "event-1", "SUMMER20", now)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Message, "not yet valid")
}

func TestValidateTreatsWindowEndInstantAsExpired(t *testing.T) {
	db := newMockDB()
	now := time.Now()
	seed(db, func(c *models.DiscountCode) { c.ValidTo = now })
	svc := newService(db)

	result, err := svc.Validate(context.Background(), "event-1", "SUMMER20", now)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Message, "expired")
}

func TestValidateRejectsExhaustedCode(t *testing.T) {
	db := newMockDB()
	seed(db, func(c *models.DiscountCode) {
		c.UsageLimit = 3
		c.UsedCount = 3
	})
	svc := newService(db)

	result, err := svc.Validate(context.Background(), "event-1", "SUMMER20", time.Now())
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Message, "usage limit")
}

func TestValidateAllowsUnlimitedUsage(t *testing.T) {
	db := newMockDB()
	seed(db, func(c *models.DiscountCode) {
		c.UsageLimit = 0
		c.UsedCount = 500
	})
	svc := newService(db)

	result, err := svc.Validate(context.Background(), "event-1", "SUMMER20", time.Now())
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestCreateUppercasesAndValidates(t *testing.T) {
	db := newMockDB()
	svc := newService(db)
	ctx := context.Background()

	code, err := svc.Create(ctx, "event-1", "seller-1", models.DiscountCodeRequest{
		Code:       " autumn10 ",
		Percentage: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "AUTUMN10", code.Code)

	_, err = svc.Create(ctx, "event-1", "seller-1", models.DiscountCodeRequest{Code: "BAD", Percentage: 0})
	assert.Error(t, err)
	_, err = svc.Create(ctx, "event-1", "seller-1", models.DiscountCodeRequest{Code: "BAD", Percentage: 101})
	assert.Error(t, err)
	_, err = svc.Create(ctx, "event-1", "seller-1", models.DiscountCodeRequest{Code: "", Percentage: 10})
	assert.Error(t, err)
}
