package statistics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/cache"
)

const (
	CacheKeyPayments = "statistics:payments:%s" // Format with date YYYY-MM-DD
	CacheExpiration  = 5 * time.Minute
)

// PaymentStats summarizes stored payments for the admin dashboard
type PaymentStats struct {
	TotalOrders     int64            `json:"total_orders"`
	TodayOrders     int64            `json:"today_orders"`
	ByStatus        map[string]int64 `json:"by_status"`
	CollectedAmount decimal.Decimal  `json:"collected_amount"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// Service computes payment statistics and caches them in Redis
type Service struct {
	db       *gorm.DB
	cacheGet func(key string) (string, error)
	cacheSet func(key string, value interface{}, ttl time.Duration) error
	now      func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		db:       db,
		cacheGet: cache.Get,
		cacheSet: cache.Set,
		now:      time.Now,
	}
}

func (s *Service) cacheKey() string {
	return fmt.Sprintf(CacheKeyPayments, s.now().UTC().Format("2006-01-02"))
}

// GetPaymentStats returns cached statistics, computing them on a miss.
// Cache errors only cost a recomputation.
func (s *Service) GetPaymentStats() (*PaymentStats, error) {
	key := s.cacheKey()
	if raw, err := s.cacheGet(key); err == nil && raw != "" {
		var stats PaymentStats
		if err := json.Unmarshal([]byte(raw), &stats); err == nil {
			return &stats, nil
		}
	}

	stats, err := s.Compute()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := s.cacheSet(key, string(data), CacheExpiration); err != nil {
			log.Warnf("[Statistics] failed to cache payment stats: %v", err)
		}
	}
	return stats, nil
}

// Compute reads the statistics from the database
func (s *Service) Compute() (*PaymentStats, error) {
	now := s.now().UTC()
	stats := &PaymentStats{
		ByStatus:    map[string]int64{},
		GeneratedAt: now,
	}

	if err := s.db.Model(&models.Order{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, err
	}

	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := s.db.Model(&models.Order{}).Where("created_at >= ?", todayStart).Count(&stats.TodayOrders).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		Status string
		Total  int64
	}
	if err := s.db.Model(&models.OrderStatus{}).Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Total
	}

	var sum struct {
		Collected decimal.NullDecimal
	}
	if err := s.db.Model(&models.OrderStatus{}).
		Select("SUM(transaction_amount) AS collected").
		Where("status = ?", models.PaymentStatusSuccess).
		Scan(&sum).Error; err != nil {
		return nil, err
	}
	if sum.Collected.Valid {
		stats.CollectedAmount = sum.Collected.Decimal
	}

	return stats, nil
}
