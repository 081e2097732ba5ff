package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SchoolPay/app/controllers"
)

type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", controllers.HandleHealthz(h.deps.DB))
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
