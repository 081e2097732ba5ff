package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnknownStudentName is stored on orders created from a notification that
// arrived before the order itself was known locally.
const UnknownStudentName = "Unknown"

// Order is the local record of a payment intent. Both external identifiers are
// nullable so that an order can exist with only one of them known.
type Order struct {
	ID               string    `gorm:"type:char(36);primaryKey" json:"id"`
	SchoolID         string    `gorm:"type:varchar(64);not null;default:'';index" json:"school_id"`
	TrusteeID        string    `gorm:"type:varchar(64);not null;default:''" json:"trustee_id"`
	CustomOrderID    *string   `gorm:"type:varchar(64);uniqueIndex:ux_orders_custom_order_id" json:"custom_order_id"`
	CollectRequestID *string   `gorm:"type:varchar(64);uniqueIndex:ux_orders_collect_request_id" json:"collect_request_id"`
	StudentName      string    `gorm:"type:varchar(191);not null;default:''" json:"student_name"`
	StudentID        string    `gorm:"type:varchar(64);not null;default:'';index" json:"student_id"`
	StudentEmail     string    `gorm:"type:varchar(191);not null;default:''" json:"student_email"`
	GatewayName      string    `gorm:"type:varchar(64);not null;default:''" json:"gateway_name"`
	UserID           uint      `gorm:"not null;default:0;index" json:"user_id"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// CustomOrderIDValue returns the custom order id or an empty string.
func (o *Order) CustomOrderIDValue() string {
	if o.CustomOrderID == nil {
		return ""
	}
	return *o.CustomOrderID
}

// CollectRequestIDValue returns the gateway collect request id or an empty string.
func (o *Order) CollectRequestIDValue() string {
	if o.CollectRequestID == nil {
		return ""
	}
	return *o.CollectRequestID
}

// NullableString maps an empty string to nil for the optional identifier columns.
func NullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FindOrderByCollectRequestID returns the order with the given gateway id.
func FindOrderByCollectRequestID(db *gorm.DB, collectRequestID string) (*Order, error) {
	var order Order
	if err := db.Where("collect_request_id = ?", collectRequestID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindOrderByCustomOrderID returns the order with the given merchant id.
func FindOrderByCustomOrderID(db *gorm.DB, customOrderID string) (*Order, error) {
	var order Order
	if err := db.Where("custom_order_id = ?", customOrderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
