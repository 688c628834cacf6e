package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/petshop-storefront/internal/domain/cart"
	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/domain/navigation"
	"github.com/xenking/petshop-storefront/internal/domain/search"
)

// Catalog lists the category registry.
func (h *Handler) Catalog(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.gen.Registry().Categories())
}

// Products lists the generated products of a subcategory. An empty
// subcategory yields the "General" listing of the category.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	cat := r.URL.Query().Get("category")
	sub := r.URL.Query().Get("subcategory")
	reg := h.gen.Registry()
	if _, err := reg.Category(cat); err != nil {
		respondNotice(w, http.StatusNotFound, "not_found",
			navigation.NotFoundNotice(&navigation.NotFoundError{Category: cat, Err: err}))
		return
	}
	if sub != "" && !reg.HasSubcategory(cat, sub) {
		respondNotice(w, http.StatusNotFound, "not_found",
			navigation.NotFoundNotice(&navigation.NotFoundError{Category: cat, Subcategory: sub, Err: catalog.ErrSubcategoryNotFound}))
		return
	}
	respondJSON(w, http.StatusOK, h.gen.Generate(cat, sub))
}

type quickViewResponse struct {
	Product catalog.Product `json:"product"`
	Text    string          `json:"text"`
}

// QuickView returns one product with its overlay text.
func (h *Handler) QuickView(w http.ResponseWriter, r *http.Request) {
	var (
		p   catalog.Product
		err error
	)
	_ = h.session(r).Do(func(c *navigation.Controller) error {
		p, err = c.QuickView(r.Context(), chi.URLParam(r, "id"))
		return nil
	})
	if err != nil {
		respondNotice(w, http.StatusNotFound, "not_found", "Product not found.")
		return
	}
	respondJSON(w, http.StatusOK, quickViewResponse{Product: p, Text: navigation.QuickViewText(p)})
}

type cartResponse struct {
	Items      []cart.Line     `json:"items"`
	Count      int             `json:"count"`
	Total      string          `json:"total"`
	TotalValue decimal.Decimal `json:"total_value"`
}

func cartView(c *cart.Store) cartResponse {
	items := c.Lines()
	if items == nil {
		items = []cart.Line{}
	}
	return cartResponse{
		Items:      items,
		Count:      c.Count(),
		Total:      c.DisplayTotal(),
		TotalValue: c.Total(),
	}
}

// Cart returns the visitor cart.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	var resp cartResponse
	_ = h.session(r).Do(func(c *navigation.Controller) error {
		resp = cartView(c.Cart())
		return nil
	})
	respondJSON(w, http.StatusOK, resp)
}

// AddToCart adds the posted product_id.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}
	s := h.session(r)
	doc := wantsDocument(r)
	var resp cartResponse
	err = s.Do(func(c *navigation.Controller) error {
		if _, err := c.AddToCart(r.Context(), in.trimmed("product_id")); err != nil {
			if doc {
				s.Flash("Product not found.")
			}
			return err
		}
		resp = cartView(c.Cart())
		return nil
	})
	switch {
	case doc:
		redirectHome(w, r)
	case err != nil:
		respondNotice(w, http.StatusNotFound, "not_found", "Product not found.")
	default:
		respondJSON(w, http.StatusOK, resp)
	}
}

// RemoveFromCart removes the line at the index path parameter. An index
// that addresses no line leaves the cart unchanged without error.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		badRequest(w, errors.New("index must be an integer"))
		return
	}
	var resp cartResponse
	_ = h.session(r).Do(func(c *navigation.Controller) error {
		_, _ = c.RemoveFromCart(r.Context(), i)
		resp = cartView(c.Cart())
		return nil
	})
	if wantsDocument(r) {
		redirectHome(w, r)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// OpenCart records the drawer opening and returns the cart.
func (h *Handler) OpenCart(w http.ResponseWriter, r *http.Request) {
	var resp cartResponse
	_ = h.session(r).Do(func(c *navigation.Controller) error {
		c.OpenCart(r.Context())
		resp = cartView(c.Cart())
		return nil
	})
	if wantsDocument(r) {
		redirectCart(w, r)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Checkout answers with the placeholder notice.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	doc := wantsDocument(r)
	var notice string
	_ = s.Do(func(c *navigation.Controller) error {
		notice = c.Checkout(r.Context())
		if doc {
			s.Flash(notice)
		}
		return nil
	})
	if doc {
		redirectHome(w, r)
		return
	}
	respondNotice(w, http.StatusOK, "checkout_unavailable", notice)
}

type searchResponse struct {
	Query   string            `json:"query"`
	Status  search.Status     `json:"status"`
	Matches []search.Match    `json:"matches"`
	Total   int               `json:"total"`
	Message string            `json:"message,omitempty"`
	Stage   *navigation.Stage `json:"stage,omitempty"`
}

// Search runs the q parameter. A navigate result moves the stage and
// returns it; list results return the first matches. Document clients are
// sent back to the page with the outcome as a notice.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	s := h.session(r)
	doc := wantsDocument(r)
	var resp searchResponse
	_ = s.Do(func(c *navigation.Controller) error {
		res := c.Search(r.Context(), q)
		resp = searchResponse{
			Query:   res.Query,
			Status:  res.Status,
			Matches: res.Preview(),
			Total:   len(res.Matches),
		}
		switch res.Status {
		case search.StatusNoResults:
			resp.Message = navigation.NoResultsNotice(res.Query)
		case search.StatusList:
			resp.Message = navigation.ListNotice(res)
		case search.StatusNavigate:
			st := c.Stage()
			resp.Stage = &st
		}
		if doc && resp.Message != "" {
			s.Flash(resp.Message)
		}
		return nil
	})
	if doc {
		redirectHome(w, r)
		return
	}
	if resp.Matches == nil {
		resp.Matches = []search.Match{}
	}
	respondJSON(w, http.StatusOK, resp)
}
