package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/SchoolPay/app/controllers"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/middleware"
)

const defaultRateLimit = 120

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	webhooks := controllers.NewWebhookController(h.deps.Payments)

	// Gateway callbacks must always be acknowledged: registered ahead of the
	// /api group so neither the limiter nor JWT parsing runs for them.
	app.Post("/api/payments/webhook", cors.New(), webhooks.HandleWebhook)

	api := app.Group("/api", cors.New(), limiter.New(h.limiterConfig()), middleware.JWTAuth(h.deps.JWTSecret))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	payments := controllers.NewPaymentController(h.deps.Payments)
	transactions := controllers.NewTransactionController(h.deps.Repos.Transaction)
	admin := controllers.NewAdminController(h.deps.Repos, h.deps.Queue, h.deps.Stats)

	api.Post("/payments/create-payment", middleware.RequireAPIAuth, payments.HandleCreatePayment)
	api.Get("/payments/check-status/:collect_request_id", middleware.RequireAPIAuth, payments.HandleCheckStatus)

	api.Get("/transactions", middleware.RequireAPIAuth, transactions.HandleListTransactions)
	api.Get("/transactions/school/:school_id", middleware.RequireAPIAuth, transactions.HandleListSchoolTransactions)
	api.Get("/transactions/user", middleware.RequireAPIAuth, transactions.HandleListUserTransactions)
	api.Get("/user-transactions", middleware.RequireAPIAuth, transactions.HandleListUserTransactions)
	api.Get("/transaction-status/:custom_order_id", middleware.RequireAPIAuth, transactions.HandleTransactionStatus)

	adminGroup := api.Group("/admin", middleware.RequireAPIAdmin)
	adminGroup.Get("/webhook-logs", admin.HandleWebhookLogs)
	adminGroup.Get("/stats", admin.HandleStats)
	adminGroup.Get("/queue", admin.HandleQueueStats)
	adminGroup.Post("/queue/sweep", admin.HandleStaleSweep)
}

func (h ApiRouter) limiterConfig() limiter.Config {
	max := h.deps.RateLimit
	if max <= 0 {
		max = defaultRateLimit
	}
	return limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		Storage:    h.deps.LimiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return controllers.GetClientIP(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "too many requests",
			})
		},
	}
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
