package repository

import (
	"github.com/ManuelReschke/SchoolPay/app/models"
	"gorm.io/gorm"
)

// webhookLogRepository implements the WebhookLogRepository interface
type webhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a new webhook log repository instance
func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

// Create appends an entry to the audit log
func (r *webhookLogRepository) Create(entry *models.WebhookLog) error {
	return r.db.Create(entry).Error
}

// ListByCollectRequestID returns the newest entries for one collect request
func (r *webhookLogRepository) ListByCollectRequestID(collectRequestID string, limit int) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	err := r.db.Where("collect_request_id = ?", collectRequestID).
		Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// List retrieves log entries with pagination, newest first
func (r *webhookLogRepository) List(offset, limit int) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	err := r.db.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&logs).Error
	return logs, err
}

// Count returns the total number of log entries
func (r *webhookLogRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.WebhookLog{}).Count(&count).Error
	return count, err
}
