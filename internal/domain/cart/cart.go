// Package cart implements the visitor shopping cart persisted under the
// "cart" storage key.
package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/storage"
)

// ErrIndexOutOfRange is returned by Remove when the index does not address a line.
var ErrIndexOutOfRange = errors.New("cart index out of range")

// Line is one product in the cart. Fields other than Qty are a snapshot of
// the product taken when it was first added.
type Line struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Price  decimal.Decimal `json:"price"`
	Qty    int             `json:"qty"`
	Brand  string          `json:"brand,omitempty"`
	Cat    string          `json:"cat,omitempty"`
	Sub    string          `json:"sub,omitempty"`
	Img    string          `json:"img,omitempty"`
	Weight string          `json:"weight,omitempty"`
}

// Subtotal returns price * qty.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Listener is notified synchronously after every persisted mutation.
type Listener func(lines []Line)

// Store owns the cart lines of one visitor. It is not safe for concurrent
// use; callers serialize access per session.
type Store struct {
	kv        storage.KV
	lg        *zap.Logger
	lines     []Line
	listeners []Listener
	// detached is set when the stored cart could not be read; writes are
	// held back so the in-memory view never replaces it.
	detached error
}

// NewStore creates an empty Store backed by kv.
func NewStore(kv storage.KV, lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Store{kv: kv, lg: lg}
}

// OnChange registers fn to run after each mutation.
func (s *Store) OnChange(fn Listener) {
	s.listeners = append(s.listeners, fn)
}

// Hydrate replaces the in-memory lines with the persisted cart. A missing,
// malformed or unreadable value yields an empty cart. An unreadable value is
// also returned as a storage.UnavailableError, and the store keeps later
// mutations in memory only until a Hydrate succeeds.
func (s *Store) Hydrate(ctx context.Context) error {
	s.lines = nil
	s.detached = nil
	raw, err := s.kv.Get(ctx, storage.KeyCart)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		s.detached = storage.Unavailable("get", storage.KeyCart, err)
		s.lg.Warn("Cart storage unavailable, starting empty", zap.Error(s.detached))
		return s.detached
	}
	lines, err := decode(raw)
	if err != nil {
		s.lg.Debug("Discarding malformed cart", zap.Error(err))
		return nil
	}
	s.lines = lines
	return nil
}

// Add puts p in the cart. An existing line with the same id gets its
// quantity incremented, otherwise a new line with quantity 1 is appended.
func (s *Store) Add(ctx context.Context, p catalog.Product) Line {
	idx := s.indexOf(p.ID)
	if idx >= 0 {
		s.lines[idx].Qty++
	} else {
		s.lines = append(s.lines, Line{
			ID:     p.ID,
			Title:  p.Title,
			Price:  p.Price,
			Qty:    1,
			Brand:  p.Brand,
			Cat:    p.Category,
			Sub:    p.Subcategory,
			Img:    p.Image,
			Weight: p.Weight,
		})
		idx = len(s.lines) - 1
	}
	s.commit(ctx)
	return s.lines[idx]
}

// Remove deletes the line at position i in display order.
func (s *Store) Remove(ctx context.Context, i int) (Line, error) {
	if i < 0 || i >= len(s.lines) {
		return Line{}, errors.Wrapf(ErrIndexOutOfRange, "index %d, len %d", i, len(s.lines))
	}
	removed := s.lines[i]
	s.lines = append(s.lines[:i:i], s.lines[i+1:]...)
	s.commit(ctx)
	return removed, nil
}

// Lines returns a copy of the cart lines in display order.
func (s *Store) Lines() []Line {
	return append([]Line(nil), s.lines...)
}

// Count is the badge value: the number of distinct lines.
func (s *Store) Count() int { return len(s.lines) }

// Total is the exact, unrounded sum of price * qty.
func (s *Store) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// DisplayTotal formats Total rounded to two places, e.g. "$34.97".
func (s *Store) DisplayTotal() string {
	return FormatPrice(s.Total())
}

// FormatPrice renders d as a dollar amount with two decimals.
func FormatPrice(d decimal.Decimal) string {
	return fmt.Sprintf("$%s", d.StringFixed(2))
}

func (s *Store) indexOf(id string) int {
	for i, l := range s.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) commit(ctx context.Context) {
	if err := s.persist(ctx); err != nil {
		s.lg.Warn("Cart not persisted, keeping in memory", zap.Error(err))
	}
	snapshot := s.Lines()
	for _, fn := range s.listeners {
		fn(snapshot)
	}
}

func (s *Store) persist(ctx context.Context) error {
	if s.detached != nil {
		return errors.Wrap(s.detached, "stored cart not loaded")
	}
	lines := s.lines
	if lines == nil {
		lines = []Line{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	return storage.Unavailable("set", storage.KeyCart, s.kv.Set(ctx, storage.KeyCart, string(data)))
}

// decode parses a stored cart. Duplicate ids are merged so the one-line-per-
// product invariant holds even for hand-edited data.
func decode(raw string) ([]Line, error) {
	var stored []Line
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	lines := make([]Line, 0, len(stored))
	pos := make(map[string]int, len(stored))
	for i, l := range stored {
		if l.ID == "" || l.Qty < 1 || l.Price.IsNegative() {
			return nil, errors.Errorf("invalid line %d", i)
		}
		if j, ok := pos[l.ID]; ok {
			lines[j].Qty += l.Qty
			continue
		}
		pos[l.ID] = len(lines)
		lines = append(lines, l)
	}
	return lines, nil
}
