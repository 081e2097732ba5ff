package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus holds the latest reconciled payment state of an order.
// CollectID references Order.ID; there is exactly one row per order.
type OrderStatus struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	CollectID         string          `gorm:"type:char(36);not null;uniqueIndex:ux_order_statuses_collect_id" json:"collect_id"`
	Status            string          `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	OrderAmount       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"order_amount"`
	TransactionAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"transaction_amount"`
	PaymentMode       string          `gorm:"type:varchar(64);not null;default:''" json:"payment_mode"`
	PaymentDetails    string          `gorm:"type:text" json:"payment_details"`
	BankReference     string          `gorm:"type:varchar(191);not null;default:''" json:"bank_reference"`
	PaymentMessage    string          `gorm:"type:text" json:"payment_message"`
	ErrorMessage      string          `gorm:"type:text" json:"error_message"`
	PaymentTime       *time.Time      `gorm:"type:timestamp;default:null" json:"payment_time,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
