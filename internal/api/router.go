// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"readreward/internal/api/handler"
	apimw "readreward/internal/api/middleware"
	"readreward/internal/auth"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Completions *handler.CompletionHandler
	Accounts    *handler.AccountHandler
	Payments    *handler.PaymentHandler
}

// Options configures the cross-cutting middleware.
type Options struct {
	JWTSecret       string
	AllowedOrigins  []string
	CompletionLimit *apimw.RateLimiter
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(h Handlers, opts Options, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                       // Add a request ID to the context
	r.Use(middleware.RealIP)                          // Use the real IP address
	r.Use(apimw.RequestLogger(logger))                // Structured access log and request metrics
	r.Use(middleware.Recoverer)                       // Recover from panics and return 500
	r.Use(middleware.Timeout(handler.DefaultTimeout)) // Set a default timeout for requests
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Provider callbacks carry no bearer token.
	r.Post("/webhooks/payments", h.Payments.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(opts.JWTSecret))

		r.With(apimw.PerPrincipal(opts.CompletionLimit)).Post("/completions", h.Completions.Complete)
		r.Post("/withdrawals", h.Accounts.Withdraw)

		r.Route("/me", func(r chi.Router) {
			r.Get("/balance", h.Accounts.GetBalance)
			r.Get("/transactions", h.Accounts.GetTransactionHistory)
			r.Get("/stats", h.Accounts.GetStats)
			r.Post("/stats/recompute", h.Accounts.RecomputeStats)
			r.Get("/ledger/verify", h.Accounts.VerifyLedger)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/checkout", h.Payments.Checkout)
			r.Get("/{externalID}/status", h.Payments.GetOrderStatus)
		})
	})

	return r
}
