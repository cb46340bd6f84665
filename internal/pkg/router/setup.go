package router

import (
	"github.com/gofiber/fiber/v2"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App) {
	// Install HttpRouter first so shared services are initialized before the
	// developer API routes that depend on them.
	setup(app, NewHttpRouter(), NewApiRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
