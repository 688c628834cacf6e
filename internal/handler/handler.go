// Package handler exposes the storefront over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/hero"
	"github.com/xenking/petshop-storefront/internal/render"
	"github.com/xenking/petshop-storefront/internal/session"
	"github.com/xenking/petshop-storefront/internal/userstore"
	"github.com/xenking/petshop-storefront/pkg/httpmiddleware"
)

// Accounts is the user store the account endpoints proxy to.
type Accounts interface {
	Login(ctx context.Context, email, password string) (userstore.Identity, error)
	Register(ctx context.Context, name, email, password string) error
	RequestReset(ctx context.Context, email string) (userstore.Grant, error)
	CompleteReset(ctx context.Context, g userstore.Grant, password, confirm string) error
}

// Handler serves the storefront page, stage fragments and the JSON API.
type Handler struct {
	sessions *session.Manager
	gen      *catalog.Generator
	renderer render.Renderer
	carousel *hero.Carousel
	accounts Accounts
	now      func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithCarousel enables the hero carousel.
func WithCarousel(c *hero.Carousel) Option {
	return func(h *Handler) { h.carousel = c }
}

// WithAccounts enables the account endpoints. Without it they answer 503.
func WithAccounts(a Accounts) Option {
	return func(h *Handler) { h.accounts = a }
}

// WithClock overrides the footer clock source.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New creates a Handler.
func New(sessions *session.Manager, gen *catalog.Generator, renderer render.Renderer, opts ...Option) *Handler {
	h := &Handler{
		sessions: sessions,
		gen:      gen,
		renderer: renderer,
		now:      time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register mounts every storefront route on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.Page)
	r.Route("/stage", func(r chi.Router) {
		r.Get("/", h.Stage)
		r.Post("/category", h.SelectCategory)
		r.Post("/subcategory", h.SelectSubcategory)
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", h.Catalog)
		r.Get("/products", h.Products)
		r.Get("/products/{id}", h.QuickView)

		r.Get("/cart", h.Cart)
		r.Post("/cart/items", h.AddToCart)
		r.Delete("/cart/items/{index}", h.RemoveFromCart)
		r.Post("/cart/items/{index}/delete", h.RemoveFromCart)
		r.Post("/cart/open", h.OpenCart)
		r.Post("/cart/checkout", h.Checkout)

		r.Get("/search", h.Search)

		r.Get("/consent", h.Consent)
		r.Post("/consent", h.Decide)
		r.Post("/usage/events", h.TrackEvent)
		r.Get("/usage/export", h.ExportUsage)

		r.Get("/hero", h.Hero)
		r.Post("/hero/pause", h.PauseHero)
		r.Post("/hero/resume", h.ResumeHero)

		r.Route("/account", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/register", h.SignUp)
			r.Post("/password-reset", h.RequestReset)
			r.Post("/password-reset/confirm", h.CompleteReset)
		})
	})
}

// session returns the visitor session named by the session cookie.
func (h *Handler) session(r *http.Request) *session.Session {
	return h.sessions.Acquire(r.Context(), httpmiddleware.SessionIDFromContext(r.Context()))
}
