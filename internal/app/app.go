// Package app wires the storefront service together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/domain/search"
	"github.com/xenking/petshop-storefront/internal/handler"
	"github.com/xenking/petshop-storefront/internal/hero"
	"github.com/xenking/petshop-storefront/internal/render"
	"github.com/xenking/petshop-storefront/internal/session"
	"github.com/xenking/petshop-storefront/internal/storage"
	"github.com/xenking/petshop-storefront/internal/storage/memory"
	"github.com/xenking/petshop-storefront/internal/storage/postgres"
	"github.com/xenking/petshop-storefront/internal/storage/redis"
	"github.com/xenking/petshop-storefront/internal/userstore"
	"github.com/xenking/petshop-storefront/pkg/health"
	"github.com/xenking/petshop-storefront/pkg/httpmiddleware"
)

const serviceName = "petshop-storefront"

// Run creates all dependencies, starts the HTTP server and the background
// workers, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	backend, err := OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer func() {
		if err := backend.Close(); err != nil {
			lg.Warn("Close storage", zap.Error(err))
		}
	}()

	reg, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}
	gen := catalog.NewGenerator(reg, cfg.Catalog.Seed)
	engine := search.New(gen, cfg.Search)
	lg.Info("Catalog loaded", zap.Int("categories", reg.Len()))

	sessions := session.NewManager(backend, gen, engine, session.Config{
		IdleTimeout: cfg.Session.IdleTimeout,
		Retention:   cfg.Session.Retention,
	}, lg)
	renderer := render.Select(cfg.Templates, lg)
	lg.Info("Renderer selected", zap.String("renderer", renderer.Name()))
	carousel := hero.New(cfg.Hero.Slides, cfg.Hero.Interval)

	opts := []handler.Option{handler.WithCarousel(carousel)}
	if cfg.UserStore.URL != "" {
		accounts, err := userstore.New(cfg.UserStore)
		if err != nil {
			return errors.Wrap(err, "create user store client")
		}
		opts = append(opts, handler.WithAccounts(accounts))
	} else {
		lg.Info("User store not configured, account endpoints disabled")
	}
	h := handler.New(sessions, gen, renderer, opts...)

	// Health check service.
	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "storage", 5*time.Second, health.PingCheck(backend))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(cfg.Health.MaxGoroutines))

	instrument, err := httpmiddleware.Instrument(serviceName, m.MeterProvider(), m.TracerProvider())
	if err != nil {
		return errors.Wrap(err, "create instrumentation")
	}
	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})

	// Health endpoints stay outside the session and rate limit chain. The
	// inner InjectLogger adds the session id the outer one cannot see.
	r := chi.NewRouter()
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Group(func(r chi.Router) {
		r.Use(
			httpmiddleware.Session(httpmiddleware.SessionConfig{
				CookieName: cfg.Session.CookieName,
				MaxAge:     cfg.Session.MaxAge,
				Secure:     cfg.Session.Secure,
			}),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RateLimit(limiter),
		)
		h.Register(r)
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			instrument,
			httpmiddleware.LogRequests(),
		),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return healthSvc.Run(ctx, cfg.Health.Interval) })
	g.Go(func() error { return carousel.Run(ctx) })
	g.Go(func() error { return sessions.Run(ctx) })
	g.Go(func() error { return limiter.Run(ctx) })
	g.Go(func() error {
		// Graceful shutdown: wait for context cancellation, drain, then stop.
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		healthSvc.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}

// OpenBackend connects the configured storage driver.
func OpenBackend(ctx context.Context, cfg StorageConfig) (storage.Backend, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return memory.New(), nil
	case DriverRedis:
		b, err := redis.Dial(ctx, cfg.Redis.URL, cfg.Redis.TTL)
		if err != nil {
			return nil, err
		}
		return b, nil
	case DriverPostgres:
		b, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.Pool)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func loadCatalog(cfg CatalogConfig) (*catalog.Registry, error) {
	if cfg.File == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.File)
}
