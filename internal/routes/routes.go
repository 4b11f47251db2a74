package routes

import (
	"net/http"

	"github.com/flipwise/flipwise/internal/app"
	"github.com/flipwise/flipwise/internal/handler"
	"github.com/flipwise/flipwise/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService, app.TokenService)
	billing := handler.NewBillingHandler(app.PaymentGateway, app.EntitlementService, app.Cfg.AppURL)
	flashcards := handler.NewFlashcardHandler(app.FlashcardService)
	health := handler.NewHealthHandler(app.DB)

	requireAuth := middleware.RequireAuth(app.TokenService)
	rateLimited := middleware.RateLimit(app.AuthLimiter, app.ClientIP)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Healthz)

	// Auth (rate limited)
	mux.Handle("POST /api/signup", rateLimited(http.HandlerFunc(auth.Signup)))
	mux.Handle("POST /api/login", rateLimited(http.HandlerFunc(auth.Login)))

	mux.HandleFunc("POST /api/generate-flashcards", flashcards.Generate)

	// Payment provider callbacks, authenticated by the gateway
	mux.HandleFunc("POST /webhook/intasend", billing.Webhook)
	mux.HandleFunc("POST /webhooks/payment", billing.Webhook)

	// ============================================================================
	// PROTECTED ROUTES (bearer token)
	// ============================================================================

	mux.Handle("GET /api/me", requireAuth(http.HandlerFunc(auth.Me)))
	mux.Handle("POST /api/create-paymentlink", requireAuth(http.HandlerFunc(billing.CreatePaymentLink)))
	mux.Handle("POST /api/save-flashcards", requireAuth(http.HandlerFunc(flashcards.Save)))
	mux.Handle("GET /api/flashcards", requireAuth(http.HandlerFunc(flashcards.List)))

	return middleware.Chain(mux,
		middleware.RequestLogging,
		middleware.Recover,
	)
}
