// Package httpapi exposes the storefront over HTTP: auth, catalog,
// cart, checkout, and the two settlement adapters (redirect and
// webhook) that both funnel into the checkout reconciler.
package httpapi

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/amalikprincem05/e-bazzari/internal/checkout"
	"github.com/amalikprincem05/e-bazzari/internal/config"
	"github.com/amalikprincem05/e-bazzari/internal/payment"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handler struct {
	db         *sql.DB
	gateway    payment.Gateway
	reconciler *checkout.Reconciler
	logger     *zap.Logger
	cfg        *config.Config
}

func NewHandler(db *sql.DB, gateway payment.Gateway, reconciler *checkout.Reconciler, logger *zap.Logger, cfg *config.Config) *Handler {
	return &Handler{
		db:         db,
		gateway:    gateway,
		reconciler: reconciler,
		logger:     logger,
		cfg:        cfg,
	}
}

func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Post("/users/register", h.RegisterUser)
		r.Post("/users/login", h.LoginUser)

		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		// Webhook authenticates by signature, not by session.
		r.Post("/webhook", h.GatewayWebhook)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(h.cfg.Auth))

			r.Get("/cart", h.GetCart)
			r.Post("/cart/items", h.AddCartItem)
			r.Patch("/cart/items/{id}", h.UpdateCartItem)
			r.Delete("/cart/items/{id}", h.RemoveCartItem)
			r.Delete("/cart", h.ClearCart)

			r.Post("/checkout", h.Checkout)
			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Post("/products", h.CreateProduct)
				r.Patch("/products/{id}", h.UpdateProduct)
				r.Delete("/products/{id}", h.DeleteProduct)
				r.Patch("/admin/orders/{id}/status", h.UpdateOrderStatus)
				r.Post("/admin/users", h.AdminCreateUser)
			})
		})
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
		})
	}
}
