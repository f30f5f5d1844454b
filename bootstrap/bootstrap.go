// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/tollgate/adapters/auth"
	"github.com/artpar/tollgate/adapters/clock"
	apihttp "github.com/artpar/tollgate/adapters/http"
	"github.com/artpar/tollgate/adapters/idgen"
	"github.com/artpar/tollgate/adapters/metrics"
	"github.com/artpar/tollgate/adapters/payment"
	"github.com/artpar/tollgate/adapters/sqlite"
	"github.com/artpar/tollgate/app"
	"github.com/artpar/tollgate/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry

	// Services
	Entitlements *app.EntitlementService
	Billing      *app.BillingService
	Webhooks     *app.WebhookService
}

// New creates and initializes the application from a config file path.
// An empty path falls back to environment-only configuration.
func New(configPath string) (*App, error) {
	cfg, err := config.LoadWithFallback(configPath)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging)

	var holder *config.Holder
	if configPath != "" {
		holder, err = config.NewHolder(configPath, logger.With().Str("component", "config").Logger())
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = holder.Get()
	}

	logger.Info().Str("version", Version).Msg("initializing tollgate")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if err := a.initDatabase(cfg); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Metrics = metrics.New(a.Registry)
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initServices(cfg); err != nil {
		a.DB.Close()
		return nil, fmt.Errorf("init services: %w", err)
	}

	if err := a.initHTTPServer(cfg); err != nil {
		a.DB.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	if holder != nil {
		a.wireReload(holder)
	}

	return a, nil
}

func (a *App) initDatabase(cfg *config.Config) error {
	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database initialized")
	return nil
}

func (a *App) initServices(cfg *config.Config) error {
	catalog, err := cfg.Catalog()
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}

	subs := sqlite.NewSubscriptionStore(a.DB)
	ledger := sqlite.NewUsageStore(a.DB)

	provider, err := payment.New(payment.Config{
		Mode:          cfg.Billing.Mode,
		StripeKey:     cfg.Billing.StripeKey,
		WebhookSecret: cfg.Billing.WebhookSecret,
	})
	if err != nil {
		return fmt.Errorf("billing provider: %w", err)
	}
	a.Logger.Info().Str("provider", provider.Name()).Msg("billing provider configured")

	a.Entitlements = app.NewEntitlementService(app.EntitlementDeps{
		Subscriptions: subs,
		Usage:         ledger,
		Catalog:       catalog,
		Clock:         clock.Real{},
		Grace:         cfg.Entitlements.Grace,
		Logger:        a.Logger.With().Str("component", "entitlements").Logger(),
	})

	a.Billing, err = app.NewBillingService(app.BillingDeps{
		Subscriptions:  subs,
		Provider:       provider,
		Catalog:        catalog,
		AllowedOrigins: cfg.Billing.AllowedOrigins,
		PriceIDs:       cfg.PriceMap(),
		Logger:         a.Logger.With().Str("component", "billing").Logger(),
	})
	if err != nil {
		return err
	}

	a.Webhooks = app.NewWebhookService(app.WebhookDeps{
		Subscriptions: subs,
		Provider:      provider,
		IDGen:         idgen.UUID{},
		PriceIDs:      cfg.PriceMap(),
		Logger:        a.Logger.With().Str("component", "webhooks").Logger(),
	})

	return nil
}

func (a *App) initHTTPServer(cfg *config.Config) error {
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	handler := apihttp.NewHandler(apihttp.Deps{
		Entitlements: a.Entitlements,
		Billing:      a.Billing,
		Webhooks:     a.Webhooks,
		Tokens:       tokens,
		Metrics:      a.Metrics,
		Registry:     a.Registry,
		Logger:       a.Logger.With().Str("component", "http").Logger(),
		Version:      Version,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return nil
}

// wireReload hooks config hot reload into the running app. Only the
// reloadable subset takes effect without a restart; the rest needs a new
// process.
func (a *App) wireReload(holder *config.Holder) {
	holder.OnChange(func(cfg *config.Config) {
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}

		catalog, err := cfg.Catalog()
		if err != nil {
			// Tiers failed to build; the services keep the previous
			// catalog until the next valid reload.
			a.Logger.Warn().Err(err).Msg("reloaded tiers invalid, keeping previous catalog")
			return
		}

		a.Entitlements.Reload(catalog, cfg.Entitlements.Grace)
		if err := a.Billing.Reload(catalog, cfg.Billing.AllowedOrigins, cfg.PriceMap()); err != nil {
			a.Logger.Warn().Err(err).Msg("reloaded billing origins invalid, keeping previous rules")
		}
		a.Webhooks.Reload(cfg.PriceMap())

		a.Logger.Info().Msg("configuration reloaded")
	})
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	holder.WatchSignals()
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.Config != nil {
		a.Config.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
