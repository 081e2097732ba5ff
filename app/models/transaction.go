package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the denormalized per-order payment row used for reporting.
// It mirrors OrderStatus and is unique per order.
type Transaction struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OrderID        string          `gorm:"type:char(36);not null;uniqueIndex:ux_transactions_order_id" json:"order_id"`
	SchoolID       string          `gorm:"type:varchar(64);not null;default:'';index" json:"school_id"`
	StudentID      string          `gorm:"type:varchar(64);not null;default:''" json:"student_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Status         string          `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	PaymentMode    string          `gorm:"type:varchar(64);not null;default:''" json:"payment_mode"`
	PaymentDetails string          `gorm:"type:text" json:"payment_details"`
	BankReference  string          `gorm:"type:varchar(191);not null;default:''" json:"bank_reference"`
	PaymentTime    *time.Time      `gorm:"type:timestamp;default:null" json:"payment_time,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
