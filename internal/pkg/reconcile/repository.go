package reconcile

import (
	"context"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the reconciliation engine.
type Repository interface {
	// Transaction runs fn against a repository bound to a single DB transaction.
	Transaction(ctx context.Context, fn func(repo Repository) error) error
	FindOrderByCollectRequestID(collectRequestID string) (*models.Order, error)
	FindOrderByCustomOrderID(customOrderID string) (*models.Order, error)
	CreateOrderIfNotExists(order *models.Order) (bool, error)
	SetCollectRequestID(order *models.Order, collectRequestID string) error
	FindOrderStatus(orderID string) (*models.OrderStatus, error)
	UpsertOrderStatus(status *models.OrderStatus) error
	FindTransaction(orderID string) (*models.Transaction, error)
	UpsertTransaction(txn *models.Transaction) error
	CreateWebhookLog(entry *models.WebhookLog) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciliation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

// forUpdate locks the selected rows until the surrounding transaction ends.
func (r *gormRepository) forUpdate() *gorm.DB {
	// SQLite has no row locks; its writer lock already serializes transactions.
	if r.db.Dialector.Name() == "sqlite" {
		return r.db
	}
	return r.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *gormRepository) FindOrderByCollectRequestID(collectRequestID string) (*models.Order, error) {
	var order models.Order
	if err := r.forUpdate().Where("collect_request_id = ?", collectRequestID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) FindOrderByCustomOrderID(customOrderID string) (*models.Order, error) {
	var order models.Order
	if err := r.forUpdate().Where("custom_order_id = ?", customOrderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrderIfNotExists inserts order unless a unique identifier already
// exists. It reports whether a row was inserted.
func (r *gormRepository) CreateOrderIfNotExists(order *models.Order) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(order)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) SetCollectRequestID(order *models.Order, collectRequestID string) error {
	if err := r.db.Model(order).Update("collect_request_id", collectRequestID).Error; err != nil {
		return err
	}
	order.CollectRequestID = &collectRequestID
	return nil
}

func (r *gormRepository) FindOrderStatus(orderID string) (*models.OrderStatus, error) {
	var st models.OrderStatus
	if err := r.forUpdate().Where("collect_id = ?", orderID).First(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *gormRepository) UpsertOrderStatus(status *models.OrderStatus) error {
	if status.ID != 0 {
		return r.db.Save(status).Error
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "collect_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"order_amount",
			"transaction_amount",
			"payment_mode",
			"payment_details",
			"bank_reference",
			"payment_message",
			"error_message",
			"payment_time",
			"updated_at",
		}),
	}).Create(status).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("collect_id = ?", status.CollectID).First(status).Error
}

func (r *gormRepository) FindTransaction(orderID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.forUpdate().Where("order_id = ?", orderID).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *gormRepository) UpsertTransaction(txn *models.Transaction) error {
	if txn.ID != 0 {
		return r.db.Save(txn).Error
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"school_id",
			"student_id",
			"amount",
			"status",
			"payment_mode",
			"payment_details",
			"bank_reference",
			"payment_time",
			"updated_at",
		}),
	}).Create(txn).Error; err != nil {
		return err
	}

	return r.db.Where("order_id = ?", txn.OrderID).First(txn).Error
}

func (r *gormRepository) CreateWebhookLog(entry *models.WebhookLog) error {
	return r.db.Create(entry).Error
}
