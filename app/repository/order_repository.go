package repository

import (
	"time"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"gorm.io/gorm"
)

// orderRepository implements the OrderRepository interface
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository instance
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// CreateWithStatus stores a new order together with its initial status and
// transaction rows. Either all three rows are written or none.
func (r *orderRepository) CreateWithStatus(order *models.Order, status *models.OrderStatus, txn *models.Transaction) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		status.CollectID = order.ID
		if err := tx.Create(status).Error; err != nil {
			return err
		}
		txn.OrderID = order.ID
		return tx.Create(txn).Error
	})
}

// GetByCollectRequestID retrieves an order by its gateway collect request id
func (r *orderRepository) GetByCollectRequestID(collectRequestID string) (*models.Order, error) {
	return models.FindOrderByCollectRequestID(r.db, collectRequestID)
}

// GetByCustomOrderID retrieves an order by its merchant order id
func (r *orderRepository) GetByCustomOrderID(customOrderID string) (*models.Order, error) {
	return models.FindOrderByCustomOrderID(r.db, customOrderID)
}

// FindStalePending returns orders with a known collect request that are still
// pending and were created inside the given window, oldest first.
func (r *orderRepository) FindStalePending(createdBefore, createdAfter time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.
		Joins("JOIN order_statuses ON order_statuses.collect_id = orders.id").
		Where("order_statuses.status = ?", models.PaymentStatusPending).
		Where("orders.collect_request_id IS NOT NULL").
		Where("orders.created_at <= ? AND orders.created_at >= ?", createdBefore, createdAfter).
		Order("orders.created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// Count returns the total number of orders
func (r *orderRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Order{}).Count(&count).Error
	return count, err
}
