package router

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SchoolPay/app/controllers"
	"github.com/ManuelReschke/SchoolPay/app/repository"
)

// Router registers one group of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the services the HTTP layer needs
type Dependencies struct {
	DB             *gorm.DB
	Repos          *repository.Repositories
	Payments       controllers.PaymentService
	Queue          controllers.QueueMonitor
	Stats          controllers.StatsProvider
	JWTSecret      string
	LimiterStorage fiber.Storage
	RateLimit      int
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// HttpRouter first so the health check is never rate limited.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
