package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mylittlestore/pos-backend/api/controllers"
	ordercontrollers "github.com/mylittlestore/pos-backend/api/controllers/orders"
	paymentcontrollers "github.com/mylittlestore/pos-backend/api/controllers/payments"
	webhookcontrollers "github.com/mylittlestore/pos-backend/api/controllers/webhooks"
	"github.com/mylittlestore/pos-backend/api/middleware"
	"github.com/mylittlestore/pos-backend/internal/items"
	"github.com/mylittlestore/pos-backend/internal/orderitems"
	"github.com/mylittlestore/pos-backend/internal/orders"
	"github.com/mylittlestore/pos-backend/internal/paymentmethods"
	"github.com/mylittlestore/pos-backend/internal/payments"
	"github.com/mylittlestore/pos-backend/internal/stores"
	"github.com/mylittlestore/pos-backend/internal/storetables"
	squarewebhook "github.com/mylittlestore/pos-backend/internal/webhooks/square"
	"github.com/mylittlestore/pos-backend/pkg/config"
	"github.com/mylittlestore/pos-backend/pkg/idempotency"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
)

// RequestStore backs request idempotency and rate limiting.
type RequestStore interface {
	middleware.ResponseStore
	middleware.RateLimiter
}

// Deps carries everything the HTTP surface is wired to. Square fields stay
// nil when card tenders are disabled.
type Deps struct {
	Pingers        map[string]controllers.Pinger
	Requests       RequestStore
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Stores         stores.Service
	Tables         storetables.Service
	Items          items.Service
	Orders         orders.Service
	OrderItems     orderitems.Service
	Payments       payments.Service
	PaymentMethods paymentmethods.Service

	SquareVerifier   webhookcontrollers.SignatureVerifier
	SquareWebhook    *squarewebhook.Service
	SquareDeliveries *idempotency.Ledger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var limiter middleware.RateLimiter
	var idempotencyStore middleware.ResponseStore
	if deps.Requests != nil {
		limiter = deps.Requests
		idempotencyStore = deps.Requests
	}
	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.RateLimit.Window, cfg.RateLimit.Limit)
	webhookPolicy := middleware.NewRateLimitPolicy("webhook", cfg.RateLimit.Window, cfg.RateLimit.Limit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(deps.Pingers, logg))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	if deps.SquareWebhook != nil && deps.SquareVerifier != nil && deps.SquareDeliveries != nil {
		r.Route("/api/v1/webhooks", func(r chi.Router) {
			r.Use(middleware.RateLimit(webhookPolicy, limiter, logg))
			r.Post("/square", webhookcontrollers.SquareWebhook(deps.SquareWebhook, deps.SquareVerifier, deps.SquareDeliveries, logg))
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.MemberScope(logg))
		r.Use(middleware.RateLimit(apiPolicy, limiter, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/payment-method-types", paymentcontrollers.MethodTypes(deps.Payments, logg))

		r.Route("/stores", func(r chi.Router) {
			r.Post("/", controllers.StoreCreate(deps.Stores, logg))
			r.Get("/", controllers.StoreList(deps.Stores, logg))

			r.Route("/{storeId}", func(r chi.Router) {
				r.Use(middleware.StoreOwnership(deps.Stores, logg))

				r.Get("/", controllers.StoreDetail(deps.Stores, logg))
				r.Patch("/", controllers.StoreUpdate(deps.Stores, logg))
				r.Post("/status", controllers.StoreToggleStatus(deps.Stores, logg))

				r.Route("/tables", func(r chi.Router) {
					r.Post("/", controllers.TableCreate(deps.Tables, logg))
					r.Get("/", controllers.TableList(deps.Tables, logg))
					r.Get("/{tableId}", controllers.TableDetail(deps.Tables, logg))
					r.Delete("/{tableId}", controllers.TableDelete(deps.Tables, logg))
				})

				r.Route("/items", func(r chi.Router) {
					r.Post("/", controllers.ItemCreate(deps.Items, logg))
					r.Get("/", controllers.ItemList(deps.Items, logg))
					r.Get("/{itemId}", controllers.ItemDetail(deps.Items, logg))
					r.Patch("/{itemId}", controllers.ItemUpdate(deps.Items, logg))
					r.Delete("/{itemId}", controllers.ItemDelete(deps.Items, logg))
				})

				r.Route("/orders", func(r chi.Router) {
					r.Post("/", ordercontrollers.Create(deps.Orders, logg))
					r.Get("/", ordercontrollers.List(deps.Orders, logg))

					r.Route("/{orderId}", func(r chi.Router) {
						r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
						r.Delete("/", ordercontrollers.Delete(deps.Orders, logg))

						r.Route("/items", func(r chi.Router) {
							r.Post("/", ordercontrollers.LineCreate(deps.OrderItems, logg))
							r.Get("/", ordercontrollers.LineList(deps.OrderItems, logg))
							r.Get("/{lineId}", ordercontrollers.LineDetail(deps.OrderItems, logg))
							r.Patch("/{lineId}", ordercontrollers.LineUpdate(deps.OrderItems, logg))
							r.Delete("/{lineId}", ordercontrollers.LineDelete(deps.OrderItems, logg))
						})

						r.Route("/payments", func(r chi.Router) {
							r.Post("/", paymentcontrollers.Start(deps.Payments, logg))

							r.Route("/{paymentId}", func(r chi.Router) {
								r.Get("/", paymentcontrollers.Detail(deps.Payments, logg))
								r.Post("/abort", paymentcontrollers.Abort(deps.Payments, logg))
								r.Get("/finish", paymentcontrollers.Finish(deps.Payments, logg))

								r.Route("/methods", func(r chi.Router) {
									r.Post("/", paymentcontrollers.MethodCreate(deps.PaymentMethods, logg))
									r.Get("/", paymentcontrollers.MethodList(deps.PaymentMethods, logg))
									r.Get("/{methodId}", paymentcontrollers.MethodDetail(deps.PaymentMethods, logg))
									r.Delete("/{methodId}", paymentcontrollers.MethodCancel(deps.PaymentMethods, logg))
									r.Post("/{methodId}/success", paymentcontrollers.MethodSucceed(deps.PaymentMethods, logg))
									r.Post("/{methodId}/charge", paymentcontrollers.MethodCharge(deps.PaymentMethods, logg))
								})
							})
						})
					})
				})
			})
		})
	})

	return r
}
