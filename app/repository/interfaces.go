package repository

import (
	"time"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderRepository defines the interface for order-related database operations
type OrderRepository interface {
	CreateWithStatus(order *models.Order, status *models.OrderStatus, txn *models.Transaction) error
	GetByCollectRequestID(collectRequestID string) (*models.Order, error)
	GetByCustomOrderID(customOrderID string) (*models.Order, error)
	FindStalePending(createdBefore, createdAfter time.Time, limit int) ([]models.Order, error)
	Count() (int64, error)
}

// TransactionRepository defines the read side over reconciled payments
type TransactionRepository interface {
	List(filter TransactionFilter) ([]TransactionView, int64, error)
	GetByCustomOrderID(customOrderID string) (*TransactionView, error)
}

// WebhookLogRepository defines the interface for the notification audit log
type WebhookLogRepository interface {
	Create(entry *models.WebhookLog) error
	ListByCollectRequestID(collectRequestID string, limit int) ([]models.WebhookLog, error)
	List(offset, limit int) ([]models.WebhookLog, error)
	Count() (int64, error)
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// TransactionFilter narrows a transaction listing. Zero values mean "any".
type TransactionFilter struct {
	Status   string
	SchoolID string
	UserID   uint
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
	Sort     string
	Order    string
}

// Normalize clamps paging to sane bounds.
func (f *TransactionFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
}

// Offset returns the row offset of the requested page.
func (f TransactionFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// TransactionView joins an order with its reconciled status and transaction rows.
type TransactionView struct {
	OrderID           string          `json:"order_id"`
	CustomOrderID     *string         `json:"custom_order_id"`
	CollectRequestID  *string         `json:"collect_request_id"`
	SchoolID          string          `json:"school_id"`
	UserID            uint            `json:"user_id"`
	StudentName       string          `json:"student_name"`
	StudentID         string          `json:"student_id"`
	StudentEmail      string          `json:"student_email"`
	GatewayName       string          `json:"gateway"`
	Status            string          `json:"status"`
	OrderAmount       decimal.Decimal `json:"order_amount"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	PaymentMode       string          `json:"payment_mode"`
	PaymentDetails    string          `json:"payment_details"`
	BankReference     string          `json:"bank_reference"`
	PaymentMessage    string          `json:"payment_message"`
	ErrorMessage      string          `json:"error_message"`
	PaymentTime       *time.Time      `json:"payment_time"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Repositories struct holds all repository instances
type Repositories struct {
	Order       OrderRepository
	Transaction TransactionRepository
	WebhookLog  WebhookLogRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Order:       NewOrderRepository(db),
		Transaction: NewTransactionRepository(db),
		WebhookLog:  NewWebhookLogRepository(db),
	}
}
