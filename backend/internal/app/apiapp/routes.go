package apiapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/config"
	"github.com/ivankudzin/nikah/backend/internal/transport/http/handlers"
)

type Dependencies struct {
	Interests    handlers.InterestLedger
	Entitlements handlers.EntitlementService
	Webhooks     handlers.WebhookProcessor
	Verifier     TokenVerifier
	HealthChecks map[string]handlers.Pinger
	Metrics      http.Handler
	Logger       *zap.Logger
	Config       config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	interestsHandler := handlers.NewInterestsHandler(deps.Interests, deps.Logger)
	billingHandler := handlers.NewBillingHandler(deps.Entitlements, deps.Webhooks, deps.Config.HTTP.MaxWebhookBytes, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)

	r.Get("/healthz", healthHandler.Handle)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	r.Post("/billing/webhook", billingHandler.Webhook)

	r.Group(func(private chi.Router) {
		private.Use(AuthMiddleware(deps.Verifier, deps.Logger))

		private.Route("/interests", func(ir chi.Router) {
			ir.Post("/", interestsHandler.Send)
			ir.Get("/received", interestsHandler.Received)
			ir.Get("/sent", interestsHandler.Sent)
			ir.Get("/matches", interestsHandler.Matches)
			ir.Delete("/{id}", interestsHandler.Withdraw)
		})
		private.Get("/quota", interestsHandler.Quota)

		private.Get("/entitlements", billingHandler.Entitlement)
		private.Route("/billing", func(br chi.Router) {
			br.Post("/checkout", billingHandler.Checkout)
			br.Post("/cancel", billingHandler.Cancel)
			br.Post("/reactivate", billingHandler.Reactivate)
		})
	})
}
