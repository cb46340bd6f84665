package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/quicktoolshq/quicktools/app/controllers"
	"github.com/quicktoolshq/quicktools/internal/pkg/constants"
	"github.com/quicktoolshq/quicktools/internal/pkg/middleware"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Wire shared services before any route can fire
	controllers.InitServices()

	app.Get(constants.HealthRoute, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group(constants.APIRoute)

	// Public endpoints
	api.Post("/auth/signup", controllers.HandleSignup)
	api.Post("/auth/login", controllers.HandleLogin)
	api.Get("/billing/packs", controllers.HandleListPacks)
	api.Post("/webhooks/stripe", controllers.HandleStripeWebhook)

	// Authenticated app endpoints
	auth := api.Group("", middleware.JWTAuthMiddleware())

	auth.Get("/me", controllers.HandleGetAccount)
	auth.Get("/me/usage", controllers.HandleGetUsageStats)
	auth.Get("/me/support", controllers.HandleGetSupportTier)

	auth.Post("/me/api-keys", controllers.HandleCreateAPIKey)
	auth.Get("/me/api-keys", controllers.HandleListAPIKeys)
	auth.Delete("/me/api-keys/:id", controllers.HandleRevokeAPIKey)

	auth.Post("/billing/checkout", controllers.HandleCreateCheckout)

	tools := auth.Group("/tools")
	tools.Post("/remove-background", controllers.HandleRemoveBackground)
	tools.Post("/watermark", controllers.HandleWatermark)
	tools.Post("/face-blur", controllers.HandleFaceBlur)
	tools.Post("/crop", controllers.HandleCrop)
	tools.Post("/compress", controllers.HandleCompress)
	tools.Post("/resize", controllers.HandleResize)
	tools.Post("/convert", controllers.HandleConvert)
	tools.Post("/qr", controllers.HandleGenerateQR)
	tools.Post("/barcode", controllers.HandleGenerateBarcode)
	tools.Post("/pdf/merge", controllers.HandlePDFMerge)
	tools.Post("/pdf/split", controllers.HandlePDFSplit)
	tools.Post("/pdf/compress", controllers.HandlePDFCompress)

	auth.Get("/files/:id/preview", controllers.HandleGetPreview)
	auth.Get("/files/:id/download", controllers.HandleDownload)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
