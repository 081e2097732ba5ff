package statistics

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/ManuelReschke/SchoolPay/app/repository"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/testutil"
)

type memoryCache struct {
	values map[string]string
	sets   int
	failed bool
}

func (m *memoryCache) get(key string) (string, error) {
	if m.failed {
		return "", errors.New("cache down")
	}
	v, ok := m.values[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (m *memoryCache) set(key string, value interface{}, _ time.Duration) error {
	if m.failed {
		return errors.New("cache down")
	}
	m.sets++
	m.values[key] = value.(string)
	return nil
}

func newTestService(t *testing.T, mc *memoryCache) (*Service, *repository.Repositories) {
	t.Helper()
	db := testutil.NewTestDB(t)
	s := NewService(db)
	s.cacheGet = mc.get
	s.cacheSet = mc.set
	return s, repository.NewRepositories(db)
}

func seed(t *testing.T, repos *repository.Repositories, status string, paid int64) {
	t.Helper()
	require.NoError(t, repos.Order.CreateWithStatus(&models.Order{SchoolID: "S1"},
		&models.OrderStatus{Status: status, OrderAmount: decimal.NewFromInt(paid), TransactionAmount: decimal.NewFromInt(paid)},
		&models.Transaction{Status: status, Amount: decimal.NewFromInt(paid)}))
}

func TestComputePaymentStats(t *testing.T) {
	s, repos := newTestService(t, &memoryCache{values: map[string]string{}})
	seed(t, repos, models.PaymentStatusSuccess, 500)
	seed(t, repos, models.PaymentStatusSuccess, 250)
	seed(t, repos, models.PaymentStatusPending, 100)

	stats, err := s.Compute()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalOrders)
	assert.Equal(t, int64(3), stats.TodayOrders)
	assert.Equal(t, int64(2), stats.ByStatus[models.PaymentStatusSuccess])
	assert.Equal(t, int64(1), stats.ByStatus[models.PaymentStatusPending])
	assert.True(t, stats.CollectedAmount.Equal(decimal.NewFromInt(750)), stats.CollectedAmount.String())
}

func TestComputeEmpty(t *testing.T) {
	s, _ := newTestService(t, &memoryCache{values: map[string]string{}})

	stats, err := s.Compute()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalOrders)
	assert.True(t, stats.CollectedAmount.IsZero())
	assert.Empty(t, stats.ByStatus)
}

func TestGetPaymentStatsUsesCache(t *testing.T) {
	mc := &memoryCache{values: map[string]string{}}
	s, repos := newTestService(t, mc)
	seed(t, repos, models.PaymentStatusSuccess, 500)

	first, err := s.GetPaymentStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.TotalOrders)
	assert.Equal(t, 1, mc.sets)

	seed(t, repos, models.PaymentStatusSuccess, 500)
	second, err := s.GetPaymentStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.TotalOrders, "served from cache")
	assert.Equal(t, 1, mc.sets)
}

func TestGetPaymentStatsWithoutCache(t *testing.T) {
	s, repos := newTestService(t, &memoryCache{failed: true})
	seed(t, repos, models.PaymentStatusFailed, 0)

	stats, err := s.GetPaymentStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ByStatus[models.PaymentStatusFailed])
}
