package controllers

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/ManuelReschke/SchoolPay/app/repository"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
)

// respondError writes the JSON error envelope for err, using its kind to pick the status code
func respondError(c *fiber.Ctx, err error) error {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   string(kind),
		"message": apperror.MessageOf(err),
	})
}

// pagination describes one page of a listing
type pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func newPagination(page, limit int, total int64) pagination {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// parseTransactionFilter reads the listing query parameters
func parseTransactionFilter(c *fiber.Ctx) (repository.TransactionFilter, error) {
	f := repository.TransactionFilter{
		Status:   strings.ToLower(strings.TrimSpace(c.Query("status"))),
		SchoolID: strings.TrimSpace(c.Query("school_id")),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", repository.DefaultPageSize),
		Sort:     strings.TrimSpace(c.Query("sort")),
		Order:    strings.ToLower(strings.TrimSpace(c.Query("order"))),
	}
	if f.Status != "" && !models.IsValidPaymentStatus(f.Status) {
		return f, apperror.New(apperror.KindValidation, "unknown status filter: "+f.Status)
	}
	if f.Order != "" && f.Order != "asc" && f.Order != "desc" {
		return f, apperror.New(apperror.KindValidation, "order must be asc or desc")
	}

	from, err := parseDateParam(c.Query("from"), false)
	if err != nil {
		return f, apperror.Wrap(apperror.KindValidation, "invalid from date", err)
	}
	to, err := parseDateParam(c.Query("to"), true)
	if err != nil {
		return f, apperror.Wrap(apperror.KindValidation, "invalid to date", err)
	}
	if from != nil && to != nil && to.Before(*from) {
		return f, apperror.New(apperror.KindValidation, "to must not be before from")
	}
	f.From, f.To = from, to

	f.Normalize()
	return f, nil
}

// parseDateParam accepts RFC3339 or a plain date. A plain date used as an
// upper bound covers the whole day.
func parseDateParam(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, errors.New("expected YYYY-MM-DD or RFC3339")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// GetClientIP returns the originating client address, honouring proxy headers
func GetClientIP(c *fiber.Ctx) string {
	if ip := strings.TrimSpace(c.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return strings.TrimPrefix(c.IP(), "::ffff:")
}
