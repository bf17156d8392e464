package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ordena-ai/ordena-backend/api/controllers"
	catalogcontrollers "github.com/ordena-ai/ordena-backend/api/controllers/catalog"
	creditcontrollers "github.com/ordena-ai/ordena-backend/api/controllers/credit"
	ordercontrollers "github.com/ordena-ai/ordena-backend/api/controllers/orders"
	routingcontrollers "github.com/ordena-ai/ordena-backend/api/controllers/routing"
	storecontrollers "github.com/ordena-ai/ordena-backend/api/controllers/stores"
	"github.com/ordena-ai/ordena-backend/api/middleware"
	"github.com/ordena-ai/ordena-backend/internal/catalog"
	"github.com/ordena-ai/ordena-backend/internal/credit"
	"github.com/ordena-ai/ordena-backend/internal/orders"
	"github.com/ordena-ai/ordena-backend/internal/routing"
	"github.com/ordena-ai/ordena-backend/internal/stores"
	"github.com/ordena-ai/ordena-backend/pkg/config"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	"github.com/ordena-ai/ordena-backend/pkg/logger"
	pkgredis "github.com/ordena-ai/ordena-backend/pkg/redis"
)

type dependencyPinger interface {
	Ping(context.Context) error
}

// RedisStore is the slice of the redis client the router needs: idempotency
// bookkeeping, rate-limit counters, and the readiness probe.
type RedisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	Ping(context.Context) error
}

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	DB     dependencyPinger
	Redis  RedisStore
	PubSub dependencyPinger

	Orders  orders.Service
	Credit  credit.Service
	Routing routing.Service
	Stores  stores.Service
	Catalog catalog.Service
}

// NewRouter wires middleware and the versioned API tree.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis, p.PubSub))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/public/ping", controllers.PublicPing())

		r.Route("/v1", func(r chi.Router) {
			r.Use(
				middleware.Auth(p.Config.JWT, p.Logger),
				middleware.WriteRateLimit(p.Config.RateLimit, p.Redis, p.Logger),
				middleware.Idempotency(p.Redis, p.Logger),
			)

			r.Get("/ping", controllers.PrivatePing())

			r.Route("/stores", func(r chi.Router) {
				r.Post("/", storecontrollers.Create(p.Stores, p.Logger))
				r.Get("/me", storecontrollers.Mine(p.Stores, p.Logger))
				r.Get("/{storeId}", storecontrollers.Detail(p.Stores, p.Logger))
				r.Patch("/{storeId}", storecontrollers.Update(p.Stores, p.Logger))
			})

			r.Get("/catalog/{category}", catalogcontrollers.ListCategory(p.Catalog, p.Logger))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordercontrollers.Create(p.Orders, p.Logger))
				r.Get("/", ordercontrollers.List(p.Orders, p.Logger))

				r.Route("/{orderId}", func(r chi.Router) {
					r.Get("/", ordercontrollers.Detail(p.Orders, p.Logger))
					r.Get("/state", ordercontrollers.State(p.Orders, p.Logger))
					r.Get("/history", ordercontrollers.History(p.Orders, p.Logger))
					r.Post("/transition", ordercontrollers.Transition(p.Orders, p.Logger))
					r.Post("/route", routingcontrollers.RouteOrder(p.Routing, p.Logger))
					r.Get("/routing", routingcontrollers.Status(p.Routing, p.Logger))
				})
			})

			r.Post("/vendor/orders/{orderId}/respond", routingcontrollers.Respond(p.Routing, p.Logger))

			r.Route("/credit", func(r chi.Router) {
				r.Post("/payments", creditcontrollers.RecordPayment(p.Credit, p.Logger))
				r.Get("/{counterpartyId}", creditcontrollers.Available(p.Credit, p.Logger))

				// Limit and block management is restricted to senior members.
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(p.Logger,
						string(enums.MemberRoleOwner),
						string(enums.MemberRoleAdmin),
					))
					r.Post("/limits", creditcontrollers.SetLimit(p.Credit, p.Logger))
					r.Post("/{retailerId}/block", creditcontrollers.Block(p.Credit, p.Logger))
					r.Post("/{retailerId}/unblock", creditcontrollers.Unblock(p.Credit, p.Logger))
				})
			})
		})
	})

	return r
}
