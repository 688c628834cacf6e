// Package navigation drives the storefront stage and wires visitor actions
// to the cart, search engine and usage log.
package navigation

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/petshop-storefront/internal/domain/cart"
	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/domain/consent"
	"github.com/xenking/petshop-storefront/internal/domain/search"
)

// SelectAll is the subcategory sentinel of the "See all" shortcut.
const SelectAll = "ALL"

// CheckoutNotice is returned by Checkout.
const CheckoutNotice = "Checkout placeholder — payment is not available yet."

// ErrUnknownEvent is returned by Track for events not emitted by the UI.
var ErrUnknownEvent = errors.New("unknown usage event")

var uiEvents = map[string]struct{}{
	consent.EventMenuOpen:  {},
	consent.EventMenuClose: {},
	consent.EventCartClose: {},
}

// NotFoundNotice returns the visitor-facing message for a failed navigation.
func NotFoundNotice(err error) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		if nf.Subcategory == "" {
			return "Category not found: " + nf.Category
		}
		return fmt.Sprintf("Subcategory not found: %s — %s", nf.Category, nf.Subcategory)
	}
	return err.Error()
}

// NotFoundError carries the destination that could not be resolved.
type NotFoundError struct {
	Category    string
	Subcategory string
	Err         error
}

func (e *NotFoundError) Error() string {
	if e.Subcategory == "" {
		return fmt.Sprintf("category %q: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("subcategory %q in %q: %v", e.Subcategory, e.Category, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Controller owns the stage of one visitor. It is not safe for concurrent
// use; callers serialize access per session.
type Controller struct {
	gen    *catalog.Generator
	search *search.Engine
	cart   *cart.Store
	gate   *consent.Gate
	lg     *zap.Logger

	stage Stage
}

// NewController creates a Controller showing the home stage.
func NewController(
	gen *catalog.Generator,
	engine *search.Engine,
	c *cart.Store,
	gate *consent.Gate,
	lg *zap.Logger,
) *Controller {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Controller{
		gen:    gen,
		search: engine,
		cart:   c,
		gate:   gate,
		lg:     lg,
		stage:  HomeStage(gen),
	}
}

// Stage returns the current stage.
func (c *Controller) Stage() Stage { return c.stage }

// Cart returns the visitor cart.
func (c *Controller) Cart() *cart.Store { return c.cart }

// Consent returns the visitor consent gate.
func (c *Controller) Consent() *consent.Gate { return c.gate }

// PageView records a page load.
func (c *Controller) PageView(ctx context.Context, path string) {
	c.gate.Record(ctx, consent.EventPageView, consent.String("path", path))
}

// SelectCategory shows the first subcategory of cat.
func (c *Controller) SelectCategory(ctx context.Context, cat string) (Stage, error) {
	sub, err := c.gen.Registry().FirstSubcategory(cat)
	if err != nil {
		return c.stage, &NotFoundError{Category: cat, Err: err}
	}
	return c.enter(ctx, cat, sub), nil
}

// SelectSubcategory shows (cat, sub). SelectAll as sub behaves like
// SelectCategory.
func (c *Controller) SelectSubcategory(ctx context.Context, cat, sub string) (Stage, error) {
	if sub == SelectAll {
		return c.SelectCategory(ctx, cat)
	}
	return c.NavigateToSubcategory(ctx, cat, sub)
}

// NavigateToSubcategory replaces the stage with (cat, sub).
func (c *Controller) NavigateToSubcategory(ctx context.Context, cat, sub string) (Stage, error) {
	reg := c.gen.Registry()
	if _, err := reg.Category(cat); err != nil {
		return c.stage, &NotFoundError{Category: cat, Err: err}
	}
	if !reg.HasSubcategory(cat, sub) {
		return c.stage, &NotFoundError{Category: cat, Subcategory: sub, Err: catalog.ErrSubcategoryNotFound}
	}
	return c.enter(ctx, cat, sub), nil
}

func (c *Controller) enter(ctx context.Context, cat, sub string) Stage {
	c.stage = SubcategoryStage(c.gen, cat, sub)
	c.gate.Record(ctx, consent.EventOpenSubcategory,
		consent.String("category", cat),
		consent.String("subcategory", sub),
	)
	return c.stage
}

// AddToCart resolves productID and adds it to the cart.
func (c *Controller) AddToCart(ctx context.Context, productID string) (cart.Line, error) {
	p, err := c.gen.Find(productID)
	if err != nil {
		return cart.Line{}, err
	}
	line := c.cart.Add(ctx, p)
	c.gate.Record(ctx, consent.EventAddToCart,
		consent.String("productId", p.ID),
		consent.String("title", p.Title),
	)
	return line, nil
}

// RemoveFromCart removes the line at index i. An out of range index is
// logged and reported, with nothing recorded.
func (c *Controller) RemoveFromCart(ctx context.Context, i int) (cart.Line, error) {
	removed, err := c.cart.Remove(ctx, i)
	if err != nil {
		c.lg.Debug("Remove from cart ignored", zap.Int("index", i), zap.Error(err))
		return cart.Line{}, err
	}
	c.gate.Record(ctx, consent.EventRemoveFromCart, consent.String("productId", removed.ID))
	return removed, nil
}

// OpenCart records the cart drawer being opened.
func (c *Controller) OpenCart(ctx context.Context) {
	c.gate.Record(ctx, consent.EventCartOpen, consent.Int("cart_count", c.cart.Count()))
}

// Checkout is a placeholder; it records the intent and returns a notice.
func (c *Controller) Checkout(ctx context.Context) string {
	c.gate.Record(ctx, consent.EventCheckout, consent.Int("cart_count", c.cart.Count()))
	return CheckoutNotice
}

// QuickView resolves productID for a detail overlay.
func (c *Controller) QuickView(ctx context.Context, productID string) (catalog.Product, error) {
	p, err := c.gen.Find(productID)
	if err != nil {
		return catalog.Product{}, err
	}
	c.gate.Record(ctx, consent.EventQuickView, consent.String("productId", p.ID))
	return p, nil
}

// QuickViewText formats a product for a plain-text overlay.
func QuickViewText(p catalog.Product) string {
	return fmt.Sprintf("%s\n\n%s\n\nPrice: %s", p.Title, p.Description, cart.FormatPrice(p.Price))
}

// Search runs the query and applies its resolution: navigate results move
// the stage, list and no-result outcomes leave it unchanged.
func (c *Controller) Search(ctx context.Context, q string) search.Result {
	res := c.search.Search(q)
	switch res.Status {
	case search.StatusNeedsInput:
		return res
	case search.StatusNoResults:
		c.gate.Record(ctx, consent.EventSearchNoResults, consent.String("query", res.Query))
		return res
	case search.StatusNavigate:
		c.enter(ctx, res.Category, res.Subcategory)
	}
	c.gate.Record(ctx, consent.EventSearch,
		consent.String("query", res.Query),
		consent.Int("results", len(res.Matches)),
	)
	return res
}

// NoResultsNotice is the visitor-facing message for an empty search.
func NoResultsNotice(query string) string {
	return fmt.Sprintf("No results found for %q. Try another keyword or browse categories.", query)
}

// ListNotice is the visitor-facing message for a list result: the total and
// up to ten "KIND: text" preview lines.
func ListNotice(res search.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d result(s):\n", len(res.Matches))
	for _, m := range res.Preview() {
		fmt.Fprintf(&b, "\n%s: %s", strings.ToUpper(string(m.Kind)), m.Text)
	}
	return b.String()
}

// Track records a UI-only event such as the menu opening.
func (c *Controller) Track(ctx context.Context, event string) error {
	if _, ok := uiEvents[event]; !ok {
		return errors.Wrapf(ErrUnknownEvent, "%q", event)
	}
	c.gate.Record(ctx, event)
	return nil
}
