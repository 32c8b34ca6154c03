package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"drawtica/internal/adapter/repo"
	"drawtica/internal/allowance"
	"drawtica/internal/billing"
	"drawtica/internal/domain"
	"drawtica/internal/http/handlers"
	httpapi "drawtica/internal/http/httpapi"
	"drawtica/internal/identity"
	"drawtica/internal/imagegen"
	"drawtica/internal/infra"
	"drawtica/internal/infra/credentials"
	"drawtica/internal/infra/geoip"
	"drawtica/internal/mailer"
	"drawtica/internal/metrics"
	"drawtica/internal/pipeline"
	"drawtica/internal/providers/genai"
	"drawtica/internal/ratelimit"
)

const (
	rateLimitSweepInterval = time.Minute
	modeUnconfigured       = "unconfigured"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := handlers.NewApp(cfg, logger)
	app.Metrics = metrics.New()

	var (
		accounts     domain.AccountRepository
		transactions domain.TransactionRepository
		credStore    *credentials.Store
	)
	switch cfg.Store {
	case infra.StoreMemory:
		mem := repo.NewMemoryStore()
		accounts, transactions = mem.Accounts(), mem.Transactions()
		logger.Warn().Msg("using in-memory store, data is lost on restart")
	default:
		if cfg.MigrateOnStart {
			if err := infra.RunMigrations(ctx, cfg.DatabaseURL, logger); err != nil {
				logger.Fatal().Err(err).Msg("failed to run migrations")
			}
		}
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		runner := infra.NewSQLRunner(pool, logger)
		accounts = repo.NewAccountRepository(runner)
		transactions = repo.NewTransactionRepository(runner)
		credStore = credentials.NewStore(runner)
		app.DB = pool
	}

	model, mode := buildModel(ctx, cfg, credStore, &logger)
	app.ModelMode = mode
	app.Pipeline = pipeline.New(pipeline.Options{
		Transformer: imagegen.NewTransformer(model, cfg.UpstreamMaxRPS, logger),
		Allowance:   allowance.NewTracker(accounts),
		Timeout:     cfg.TransformTimeout,
		Metrics:     app.Metrics,
		Logger:      &logger,
	})

	app.Tokens = identity.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	app.Identity = identity.NewService(identity.Options{
		Accounts:        accounts,
		Tokens:          app.Tokens,
		Mailer:          buildMailer(ctx, cfg, credStore, &logger),
		StartingCredits: cfg.RegistrationCredits,
		Logger:          &logger,
	})
	app.Billing = billing.NewService(billing.NewStubProvider(), transactions, &logger)

	var rateStore ratelimit.Store
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer client.Close()
		rateStore = ratelimit.NewRedisStore(client)
	} else {
		mem := ratelimit.NewMemoryStore()
		go mem.Run(ctx, rateLimitSweepInterval)
		rateStore = mem
	}

	countries, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer countries.Close()

	router := httpapi.NewRouter(app, httpapi.Options{
		Verifier:      app.Tokens,
		RateStore:     rateStore,
		CountryLookup: countries.Lookup(),
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("model", mode).Msg("API listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.TransformTimeout+5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildModel picks the placeholder only when USE_MOCK_MODEL is set. Without a
// Gemini key the client is still built, so every request fails upstream with
// genai.ErrMissingAPIKey and nothing is debited.
func buildModel(ctx context.Context, cfg *infra.Config, store *credentials.Store, logger *infra.Logger) (imagegen.Model, string) {
	if cfg.UseMockModel {
		logger.Warn().Msg("USE_MOCK_MODEL set, using placeholder line art")
		return imagegen.PlaceholderModel{}, "mock"
	}
	key, err := store.Resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load gemini api key from store")
	}
	client, err := genai.NewClient(genai.Options{
		APIKey:  key,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure gemini client")
	}
	if key == "" {
		logger.Error().Msg("gemini api key missing, transformations will fail until GEMINI_API_KEY is set")
		return client, modeUnconfigured
	}
	return client, "gemini:" + client.Model()
}

func buildMailer(ctx context.Context, cfg *infra.Config, store *credentials.Store, logger *infra.Logger) mailer.Mailer {
	key, err := store.Resolve(ctx, credentials.ProviderResend, cfg.ResendAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load resend api key from store")
	}
	if key == "" {
		logger.Info().Msg("no mail provider configured, logging outgoing mail")
		return mailer.NewLogMailer(cfg.PublicBaseURL, cfg.MailFrom, cfg.DefaultLocale, logger)
	}
	return mailer.NewResendMailer(mailer.ResendOptions{
		APIKey:  key,
		From:    cfg.MailFrom,
		BaseURL: cfg.PublicBaseURL,
		Locale:  cfg.DefaultLocale,
		Logger:  logger,
	})
}
