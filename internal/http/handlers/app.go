package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"drawtica/internal/billing"
	"drawtica/internal/i18n"
	"drawtica/internal/identity"
	"drawtica/internal/infra"
	"drawtica/internal/metrics"
	"drawtica/internal/middleware"
	"drawtica/internal/pipeline"
)

// Transformer runs one transformation request end to end.
type Transformer interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
}

// Pinger reports database reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Config    *infra.Config
	Logger    infra.Logger
	Pipeline  Transformer
	Identity  *identity.Service
	Tokens    *identity.TokenIssuer
	Billing   *billing.Service
	Metrics   *metrics.Metrics
	DB        Pinger
	ModelMode string
}

func NewApp(cfg *infra.Config, logger infra.Logger) *App {
	return &App{Config: cfg, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": message, "code": code})
}

// t renders a message in the request locale.
func (a *App) t(r *http.Request, key i18n.Key) string {
	return i18n.T(middleware.LocaleFromContext(r.Context()), key)
}

func (a *App) currentAccountID(r *http.Request) string {
	return middleware.AccountIDFromContext(r.Context())
}

func (a *App) log(r *http.Request) *zerolog.Logger {
	l := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()
	return &l
}

const maxJSONBody = 1 << 20

// decodeJSON reads a small JSON body. An empty body decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
