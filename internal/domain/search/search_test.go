package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
)

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	return New(catalog.NewGenerator(catalog.Default(), 42), cfg)
}

func TestSearch_NeedsInput(t *testing.T) {
	e := newEngine(t, Config{})
	for _, q := range []string{"", "   ", "\t\n"} {
		res := e.Search(q)
		assert.Equal(t, StatusNeedsInput, res.Status)
		assert.Empty(t, res.Matches)
		assert.Empty(t, res.Category)
	}
}

func TestSearch_CategoryFirst(t *testing.T) {
	e := newEngine(t, Config{})
	res := e.Search("  DoG ")

	assert.Equal(t, "dog", res.Query)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, Match{Kind: KindCategory, Text: "Dog", Category: "Dog"}, res.Matches[0])
	assert.Equal(t, StatusList, res.Status)
	assert.Len(t, res.Preview(), PreviewLimit)
	assert.Greater(t, len(res.Matches), PreviewLimit)
}

func TestSearch_SubcategoryNavigates(t *testing.T) {
	e := newEngine(t, Config{})
	res := e.Search("litter")

	require.Equal(t, StatusNavigate, res.Status)
	assert.Equal(t, "Cat", res.Category)
	assert.Equal(t, "Cat Litter", res.Subcategory)
	assert.Equal(t, KindSubcategory, res.Matches[0].Kind)
	assert.Equal(t, "Cat → Cat Litter", res.Matches[0].Text)
}

func TestSearch_ProductNavigates(t *testing.T) {
	e := newEngine(t, Config{})
	res := e.Search("premiumpet")

	require.Equal(t, StatusNavigate, res.Status)
	first := res.Matches[0]
	assert.Equal(t, KindProduct, first.Kind)
	require.NotNil(t, first.Product)
	assert.Equal(t, "Dry Dog Food — 2 — PremiumPet", first.Text)
	assert.Equal(t, "Dog", res.Category)
	assert.Equal(t, "Dry Dog Food", res.Subcategory)
	// 3 x 3 cells with 4 PremiumPet products each.
	assert.Len(t, res.Matches, 36)
}

func TestSearch_SampleBound(t *testing.T) {
	e := newEngine(t, Config{})
	// Product descriptions outside the first 3x3 cells are not searched.
	res := e.Search("product example")
	require.Equal(t, StatusNavigate, res.Status)
	assert.Len(t, res.Matches, 3*3*catalog.ProductsPerSubcategory)
	for _, m := range res.Matches {
		assert.Contains(t, []string{"Dog", "Cat", "Small Pet"}, m.Category)
	}

	wide := newEngine(t, Config{SampleCategories: 7, SampleSubcategories: 100})
	total := 0
	for _, c := range catalog.Default().Categories() {
		total += len(c.Items) * catalog.ProductsPerSubcategory
	}
	assert.Len(t, wide.Search("product example").Matches, total)
}

func TestSearch_NoResults(t *testing.T) {
	e := newEngine(t, Config{})
	for _, q := range []string{"zzzz", "xq", "lizard"} {
		res := e.Search(q)
		assert.Equal(t, StatusNoResults, res.Status, q)
		assert.Empty(t, res.Matches, q)
	}
}

func TestSearch_OrderCategoriesThenSubcategories(t *testing.T) {
	e := newEngine(t, Config{})
	res := e.Search("pet")
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, KindCategory, res.Matches[0].Kind)
	assert.Equal(t, "Small Pet", res.Matches[0].Text)
	assert.Equal(t, StatusList, res.Status)

	seenSub := false
	for _, m := range res.Matches {
		if m.Kind == KindSubcategory {
			seenSub = true
		}
		if seenSub {
			assert.NotEqual(t, KindCategory, m.Kind)
		}
	}
}

func TestSearch_BloomAgreesWithScan(t *testing.T) {
	e := newEngine(t, Config{})
	queries := []string{"dog", "cat", "food", "toy", "hay", "vet", "fish", "xyz", "naturecare", "#3", "🎁", "eid/puza", "— 4", "bowls & f"}
	for _, q := range queries {
		scan := exhaustive(e, q)
		got := e.Matches(q)
		assert.Equal(t, len(scan), len(got), q)
	}
}

// exhaustive counts matches without the prefilter.
func exhaustive(e *Engine, q string) []string {
	var out []string
	for _, c := range e.registry.Categories() {
		if strings.Contains(strings.ToLower(c.Title), q) {
			out = append(out, c.Title)
		}
		for _, s := range c.Items {
			if strings.Contains(strings.ToLower(s), q) {
				out = append(out, s)
			}
		}
	}
	for _, p := range e.products {
		if strings.Contains(p.title, q) || strings.Contains(p.brand, q) || strings.Contains(p.desc, q) {
			out = append(out, p.product.ID)
		}
	}
	return out
}
