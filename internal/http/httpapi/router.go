package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"drawtica/internal/http/handlers"
	"drawtica/internal/middleware"
	"drawtica/internal/ratelimit"
)

// Options carries the collaborators the router wires into middleware.
type Options struct {
	Verifier      middleware.TokenVerifier
	RateStore     ratelimit.Store
	CountryLookup middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	cfg := app.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.Recoverer, middleware.Logger(app.Logger))
	if app.Metrics != nil {
		r.Use(app.Metrics.Instrument)
	}
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins), middleware.I18N(cfg.DefaultLocale, opts.CountryLookup))

	// Health
	r.Get("/v1/healthz", app.Health)
	if app.Metrics != nil {
		r.Method(stdhttp.MethodGet, "/metrics", app.Metrics.Handler())
	}

	r.With(middleware.OptionalAuth(opts.Verifier)).Post("/transform", app.Transform)
	r.With(middleware.RequireAuth(opts.Verifier)).Get("/me", app.Me)

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(middleware.RateLimitOptions{
			Store:            opts.RateStore,
			Scope:            "auth",
			Limit:            cfg.AuthRateLimit,
			Window:           cfg.AuthRateWindow,
			Logger:           app.Logger,
			TrustedProxyHops: cfg.TrustedProxyHops,
			OnLimited:        app.Metrics.RateLimited,
		}))
		r.Post("/register", app.Register)
		r.Post("/login", app.Login)
		r.Get("/verify-email", app.VerifyEmail)
		r.Post("/request-password-reset", app.RequestPasswordReset)
		r.Post("/reset-password", app.ResetPassword)
	})

	r.Route("/payment", func(r chi.Router) {
		r.Get("/plans", app.Plans)
		r.With(middleware.RequireAuth(opts.Verifier)).Post("/create-intent", app.CreatePaymentIntent)
		r.Post("/webhook", app.PaymentWebhook)
		r.Get("/callback", app.PaymentCallback)
	})

	return r
}
