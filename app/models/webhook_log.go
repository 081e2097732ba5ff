package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	WebhookSourceWebhook = "webhook"
	WebhookSourcePoll    = "poll"
)

const (
	WebhookOutcomeApplied = "applied"
	WebhookOutcomeStale   = "stale"
	WebhookOutcomeFailed  = "failed"
	// WebhookOutcomeRejected marks deliveries that carried no usable body or identifier
	WebhookOutcomeRejected = "rejected"
)

// WebhookLog is an append-only audit record of every inbound status
// notification, whether pushed by the gateway or fetched by polling.
type WebhookLog struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Source           string         `gorm:"type:varchar(16);not null;index" json:"source"`
	CollectRequestID string         `gorm:"type:varchar(64);not null;default:'';index" json:"collect_request_id"`
	CustomOrderID    string         `gorm:"type:varchar(64);not null;default:''" json:"custom_order_id"`
	Status           string         `gorm:"type:varchar(32);not null;default:''" json:"status"`
	Outcome          string         `gorm:"type:varchar(16);not null;default:'';index" json:"outcome"`
	Error            string         `gorm:"type:text" json:"error"`
	Payload          datatypes.JSON `json:"payload"`
	CreatedAt        time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}
