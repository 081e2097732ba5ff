package controllers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/ManuelReschke/SchoolPay/app/repository"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/jobqueue"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/statistics"
)

// QueueMonitor exposes the background poll queue to admins
type QueueMonitor interface {
	QueueStats(ctx context.Context) (*jobqueue.QueueStats, error)
	RunStaleSweepOnce(ctx context.Context) (int, error)
}

// StatsProvider supplies the payment statistics
type StatsProvider interface {
	GetPaymentStats() (*statistics.PaymentStats, error)
}

// ============================================================================
// ADMIN CONTROLLER - Repository Pattern
// ============================================================================

// AdminController handles admin-only inspection endpoints
type AdminController struct {
	repos *repository.Repositories
	queue QueueMonitor
	stats StatsProvider
}

// NewAdminController creates a new admin controller with repositories
func NewAdminController(repos *repository.Repositories, queue QueueMonitor, stats StatsProvider) *AdminController {
	return &AdminController{repos: repos, queue: queue, stats: stats}
}

// HandleWebhookLogs lists the notification audit log, optionally for one collect request
func (ac *AdminController) HandleWebhookLogs(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", repository.DefaultPageSize)
	if limit < 1 || limit > repository.MaxPageSize {
		limit = repository.DefaultPageSize
	}

	if collectID := strings.TrimSpace(c.Query("collect_request_id")); collectID != "" {
		logs, err := ac.repos.WebhookLog.ListByCollectRequestID(collectID, limit)
		if err != nil {
			return respondError(c, apperror.Wrap(apperror.KindPersistence, "failed to load webhook logs", err))
		}
		return c.JSON(fiber.Map{"data": nonNilLogs(logs)})
	}

	logs, err := ac.repos.WebhookLog.List((page-1)*limit, limit)
	if err != nil {
		return respondError(c, apperror.Wrap(apperror.KindPersistence, "failed to load webhook logs", err))
	}
	total, err := ac.repos.WebhookLog.Count()
	if err != nil {
		return respondError(c, apperror.Wrap(apperror.KindPersistence, "failed to count webhook logs", err))
	}
	return c.JSON(fiber.Map{
		"data":       nonNilLogs(logs),
		"pagination": newPagination(page, limit, total),
	})
}

// HandleStats returns headline counters
func (ac *AdminController) HandleStats(c *fiber.Ctx) error {
	orders, err := ac.repos.Order.Count()
	if err != nil {
		return respondError(c, apperror.Wrap(apperror.KindPersistence, "failed to count orders", err))
	}
	logs, err := ac.repos.WebhookLog.Count()
	if err != nil {
		return respondError(c, apperror.Wrap(apperror.KindPersistence, "failed to count webhook logs", err))
	}
	resp := fiber.Map{
		"orders":       orders,
		"webhook_logs": logs,
	}
	if ac.stats != nil {
		payments, err := ac.stats.GetPaymentStats()
		if err != nil {
			return respondError(c, apperror.Wrap(apperror.KindPersistence, "failed to compute payment stats", err))
		}
		resp["payments"] = payments
	}
	return c.JSON(resp)
}

// HandleQueueStats shows the state of the poll queue
func (ac *AdminController) HandleQueueStats(c *fiber.Ctx) error {
	if ac.queue == nil {
		return respondError(c, apperror.New(apperror.KindNotFound, "job queue is not running"))
	}
	stats, err := ac.queue.QueueStats(c.UserContext())
	if err != nil {
		return respondError(c, apperror.Wrap(apperror.KindInternal, "failed to read queue stats", err))
	}
	return c.JSON(stats)
}

// HandleStaleSweep triggers one stale-payment sweep immediately
func (ac *AdminController) HandleStaleSweep(c *fiber.Ctx) error {
	if ac.queue == nil {
		return respondError(c, apperror.New(apperror.KindNotFound, "job queue is not running"))
	}
	n, err := ac.queue.RunStaleSweepOnce(c.UserContext())
	if err != nil {
		return respondError(c, apperror.Wrap(apperror.KindInternal, "stale sweep failed", err))
	}
	return c.JSON(fiber.Map{"enqueued": n})
}

func nonNilLogs(logs []models.WebhookLog) []models.WebhookLog {
	if logs == nil {
		return []models.WebhookLog{}
	}
	return logs
}
