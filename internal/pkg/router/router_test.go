package router

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/SchoolPay/app/repository"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/middleware"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/payment"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/testutil"
)

const testSecret = "router-secret"

type stubPayments struct{}

func (stubPayments) CreatePayment(context.Context, payment.CreatePaymentInput) (*payment.CreatePaymentResult, error) {
	return &payment.CreatePaymentResult{CollectRequestID: "CR1"}, nil
}

func (stubPayments) CheckPaymentStatus(context.Context, string, string) (*payment.StatusResult, error) {
	return nil, apperror.New(apperror.KindOrderNotFound, "no order")
}

func (stubPayments) HandleWebhook(context.Context, []byte) (*payment.WebhookResult, error) {
	return nil, apperror.New(apperror.KindValidation, "no identifier")
}

func newTestApp(t *testing.T, rateLimit int) *fiber.App {
	t.Helper()
	db := testutil.NewTestDB(t)
	app := fiber.New()
	InstallRouter(app, Dependencies{
		DB:        db,
		Repos:     repository.NewRepositories(db),
		Payments:  stubPayments{},
		JWTSecret: testSecret,
		RateLimit: rateLimit,
	})
	return app
}

func token(t *testing.T, userID uint, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.AuthClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func status(t *testing.T, app *fiber.App, method, path, bearer string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRoutesRequireAuthentication(t *testing.T) {
	app := newTestApp(t, 0)
	user := token(t, 7, "")

	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodGet, "/healthz", ""))
	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodPost, "/api/payments/webhook", ""))

	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, fiber.MethodPost, "/api/payments/create-payment", ""))
	assert.Equal(t, fiber.StatusCreated, status(t, app, fiber.MethodPost, "/api/payments/create-payment", user))
	assert.Equal(t, fiber.StatusNotFound, status(t, app, fiber.MethodGet, "/api/payments/check-status/CR9", user))

	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, fiber.MethodGet, "/api/transactions", ""))
	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodGet, "/api/transactions", user))
	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodGet, "/api/transactions/school/S1", user))
	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodGet, "/api/transactions/user", user))
	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodGet, "/api/user-transactions", user))
	assert.Equal(t, fiber.StatusNotFound, status(t, app, fiber.MethodGet, "/api/transaction-status/ORD-1", user))

	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, fiber.MethodGet, "/api/transactions", "not-a-token"))
}

func TestAdminRoutes(t *testing.T) {
	app := newTestApp(t, 0)

	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, fiber.MethodGet, "/api/admin/stats", ""))
	assert.Equal(t, fiber.StatusForbidden, status(t, app, fiber.MethodGet, "/api/admin/stats", token(t, 7, "")))

	admin := token(t, 1, middleware.RoleAdmin)
	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodGet, "/api/admin/stats", admin))
	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodGet, "/api/admin/webhook-logs", admin))
	// no queue wired
	assert.Equal(t, fiber.StatusNotFound, status(t, app, fiber.MethodGet, "/api/admin/queue", admin))
}

func TestRateLimit(t *testing.T) {
	app := newTestApp(t, 2)
	user := token(t, 7, "")

	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodGet, "/api/transactions", user))
	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodGet, "/api/transactions", user))
	assert.Equal(t, fiber.StatusTooManyRequests, status(t, app, fiber.MethodGet, "/api/transactions", user))
	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodGet, "/healthz", ""))
}

func TestWebhookAlwaysAcknowledged(t *testing.T) {
	app := newTestApp(t, 2)

	for i := 0; i < 5; i++ {
		assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodPost, "/api/payments/webhook", ""), "delivery %d", i+1)
	}
	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodPost, "/api/payments/webhook", "gateway-issued-token"))

	// the limiter budget is untouched by the deliveries above
	assert.Equal(t, fiber.StatusOK, status(t, app, fiber.MethodGet, "/api/transactions", token(t, 7, "")))
}
