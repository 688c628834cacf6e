package catalog

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ProductsPerSubcategory is the number of sample products generated for
// every (category, subcategory) pair.
const ProductsPerSubcategory = 8

// DefaultSubcategory is used when a product set is requested without a
// subcategory name.
const DefaultSubcategory = "General"

// Brands.
const (
	BrandPremiumPet = "PremiumPet"
	BrandNatureCare = "NatureCare"
)

const descriptionPrefixRunes = 40

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonAlnumRun   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Product is a generated sample product.
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Brand       string          `json:"brand"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"img"`
	Category    string          `json:"cat"`
	Subcategory string          `json:"sub"`
	Weight      string          `json:"weight"`
	Description string          `json:"description"`
}

// Generator derives sample products from the registry. Output is a pure
// function of (category, subcategory, index, seed).
type Generator struct {
	registry *Registry
	seed     uint64
}

// NewGenerator creates a Generator over reg using seed for price derivation.
func NewGenerator(reg *Registry, seed uint64) *Generator {
	return &Generator{registry: reg, seed: seed}
}

// Registry returns the registry the generator draws from.
func (g *Generator) Registry() *Registry { return g.registry }

// Generate returns the products of (cat, sub) in index order.
func (g *Generator) Generate(cat, sub string) []Product {
	if sub == "" {
		sub = DefaultSubcategory
	}
	out := make([]Product, 0, ProductsPerSubcategory)
	for i := 1; i <= ProductsPerSubcategory; i++ {
		out = append(out, g.Product(cat, sub, i))
	}
	return out
}

// Product returns the i-th (1-based) product of (cat, sub).
func (g *Generator) Product(cat, sub string, i int) Product {
	catToken, subToken := token(cat), token(sub)
	return Product{
		ID:          idPrefix(cat, sub) + strconv.Itoa(i),
		Title:       fmt.Sprintf("%s — %d", sub, i),
		Brand:       brandFor(i),
		Price:       g.price(cat, sub, i),
		Image:       fmt.Sprintf("images/products/%s-%s-%d.jpg", catToken, subToken, i),
		Category:    cat,
		Subcategory: sub,
		Weight:      fmt.Sprintf("%dg", 100+50*i),
		Description: fmt.Sprintf("%s product example #%d", truncateRunes(cat+" — "+sub, descriptionPrefixRunes), i),
	}
}

// Find resolves a product id against every subcategory of the registry.
func (g *Generator) Find(id string) (Product, error) {
	var (
		found Product
		ok    bool
	)
	g.registry.each(func(cat, sub string) bool {
		prefix := idPrefix(cat, sub)
		rest, has := strings.CutPrefix(id, prefix)
		if !has {
			return true
		}
		i, err := strconv.Atoi(rest)
		if err != nil || i < 1 || i > ProductsPerSubcategory {
			return true
		}
		found, ok = g.Product(cat, sub, i), true
		return false
	})
	if !ok {
		return Product{}, errors.Wrapf(ErrProductNotFound, "%q", id)
	}
	return found, nil
}

// price yields 5 + n + 0.99 with n in [0, 95).
func (g *Generator) price(cat, sub string, i int) decimal.Decimal {
	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], g.seed)
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(cat))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(sub))
	_, _ = h.Write([]byte{0})
	binary.BigEndian.PutUint64(buf[:], uint64(i))
	_, _ = h.Write(buf[:])

	n := int64(h.Sum64() % 95)
	return decimal.New(599+100*n, -2)
}

func idPrefix(cat, sub string) string {
	c := whitespaceRun.ReplaceAllString(strings.ToLower(cat), "-")
	s := nonAlnumRun.ReplaceAllString(strings.ToLower(sub), "-")
	return c + "_" + s + "_"
}

func brandFor(i int) string {
	if i%2 == 0 {
		return BrandPremiumPet
	}
	return BrandNatureCare
}

// token returns the first [a-z0-9]+ run of the lowercased name.
func token(name string) string {
	for _, t := range nonAlnumRun.Split(strings.ToLower(name), -1) {
		if t != "" {
			return t
		}
	}
	return "item"
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
