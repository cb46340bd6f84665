package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	apiv1 "github.com/quicktoolshq/quicktools/internal/api/v1"
	"github.com/quicktoolshq/quicktools/internal/pkg/cache"
	"github.com/quicktoolshq/quicktools/internal/pkg/env"
	"github.com/quicktoolshq/quicktools/internal/pkg/middleware"
)

// ApiRouter installs the developer API. Authentication is by API key; the
// per-key rate limit state lives in Redis so replicas share it.
type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	v1 := app.Group("/v1", newAPILimiter(), middleware.APIKeyAuthMiddleware())

	apiServer := apiv1.NewAPIServer()
	v1.Get("/ping", apiServer.GetPing)
	v1.Get("/me", apiServer.GetUserProfile)
	v1.Post("/remove-background", apiServer.PostRemoveBackground)
	v1.Post("/resize", apiServer.PostResize)
	v1.Post("/convert", apiServer.PostConvert)
	v1.Post("/qr", apiServer.PostQR)
	v1.Post("/pdf/merge", apiServer.PostPDFMerge)
}

func newAPILimiter() fiber.Handler {
	host := "localhost"
	port := 6379
	if client := cache.GetClient(); client != nil {
		if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
	}

	// Limiter state in Redis database 1 (cache uses DB 0)
	storage := redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: 1,
	})

	max, _ := strconv.Atoi(env.GetEnv("API_RATE_LIMIT_PER_MINUTE", "60"))
	if max <= 0 {
		max = 60
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			if key := c.Get("X-API-Key"); key != "" {
				return key
			}
			return c.IP()
		},
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
