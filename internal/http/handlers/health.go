package handlers

import (
	"context"
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	database := "memory"
	status := "ok"
	if a.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			a.log(r).Warn().Err(err).Msg("health: database ping failed")
			database = "unreachable"
			status = "degraded"
		} else {
			database = "connected"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	a.json(w, code, map[string]any{
		"status":      status,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": a.Config.AppEnv,
		"database":    database,
		"model":       a.ModelMode,
		"config": map[string]bool{
			"jwt_secret":     a.Config.JWTSecret != "",
			"gemini_api_key": a.Config.GeminiAPIKey != "",
			"resend_api_key": a.Config.ResendAPIKey != "",
			"billing_secret": a.Config.BillingWebhookSecret != "",
			"redis":          a.Config.RedisURL != "",
			"geoip":          a.Config.GeoIPDBPath != "",
		},
	})
}
