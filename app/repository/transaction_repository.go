package repository

import (
	"gorm.io/gorm"
)

const transactionViewColumns = `o.id AS order_id,
	o.custom_order_id,
	o.collect_request_id,
	o.school_id,
	o.user_id,
	o.student_name,
	o.student_id,
	o.student_email,
	o.gateway_name,
	t.status,
	COALESCE(os.order_amount, t.amount) AS order_amount,
	COALESCE(os.transaction_amount, 0) AS transaction_amount,
	t.payment_mode,
	t.payment_details,
	t.bank_reference,
	COALESCE(os.payment_message, '') AS payment_message,
	COALESCE(os.error_message, '') AS error_message,
	t.payment_time,
	t.created_at,
	t.updated_at`

// sortColumns whitelists the sort keys accepted from clients.
var sortColumns = map[string]string{
	"created_at":   "t.created_at",
	"payment_time": "t.payment_time",
	"amount":       "t.amount",
	"status":       "t.status",
}

// transactionRepository implements the TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) base() *gorm.DB {
	return r.db.Table("transactions AS t").
		Joins("JOIN orders AS o ON o.id = t.order_id").
		Joins("LEFT JOIN order_statuses AS os ON os.collect_id = t.order_id")
}

// List returns one page of transactions matching filter and the total match count
func (r *transactionRepository) List(filter TransactionFilter) ([]TransactionView, int64, error) {
	filter.Normalize()

	q := r.base()
	if filter.Status != "" {
		q = q.Where("t.status = ?", filter.Status)
	}
	if filter.SchoolID != "" {
		q = q.Where("o.school_id = ?", filter.SchoolID)
	}
	if filter.UserID != 0 {
		q = q.Where("o.user_id = ?", filter.UserID)
	}
	if filter.From != nil {
		q = q.Where("t.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("t.created_at <= ?", *filter.To)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[filter.Sort]
	if !ok {
		column = sortColumns["created_at"]
	}
	direction := "DESC"
	if filter.Order == "asc" {
		direction = "ASC"
	}

	views := make([]TransactionView, 0, filter.Limit)
	err := q.Select(transactionViewColumns).
		Order(column + " " + direction).
		Offset(filter.Offset()).
		Limit(filter.Limit).
		Scan(&views).Error
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// GetByCustomOrderID returns the reconciled view of one order
func (r *transactionRepository) GetByCustomOrderID(customOrderID string) (*TransactionView, error) {
	return r.first("o.custom_order_id = ?", customOrderID)
}

func (r *transactionRepository) first(query string, arg string) (*TransactionView, error) {
	var views []TransactionView
	err := r.base().Select(transactionViewColumns).Where(query, arg).Limit(1).Scan(&views).Error
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &views[0], nil
}
