package catalog

import (
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	reg := Default()
	cats := reg.Categories()
	require.Len(t, cats, 7)

	titles := make([]string, len(cats))
	for i, c := range cats {
		titles[i] = c.Title
	}
	assert.Equal(t, []string{"Dog", "Cat", "Small Pet", "Bird", "Aquatic", "Vet", "Special Offers"}, titles)
	assert.Len(t, cats[0].Items, 16)
	assert.Equal(t, "Dry Dog Food", cats[0].Items[0])
	assert.Contains(t, cats[2].Note, "Chinchilla")
	assert.Empty(t, cats[0].Note)
	assert.Equal(t, "🎁 Eid/Puza Market", cats[6].Items[1])
}

func TestRegistry_Category(t *testing.T) {
	reg := Default()

	e, err := reg.Category("Aquatic")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fish Food", "Water Care", "Garden Pond"}, e.Items)

	_, err = reg.Category("Reptile")
	require.ErrorIs(t, err, ErrCategoryNotFound)

	sub, err := reg.FirstSubcategory("Vet")
	require.NoError(t, err)
	assert.Equal(t, "Dog Vet Food & Specialist Food", sub)

	_, err = reg.FirstSubcategory("")
	require.ErrorIs(t, err, ErrCategoryNotFound)

	assert.True(t, reg.HasSubcategory("Bird", "Bird Toys"))
	assert.False(t, reg.HasSubcategory("Bird", "Cat Toys"))
	assert.False(t, reg.HasSubcategory("Reptile", "Bird Toys"))
}

func TestRegistry_CategoriesIsCopy(t *testing.T) {
	reg := Default()
	cats := reg.Categories()
	cats[0].Items[0] = "mutated"

	e, err := reg.Category("Dog")
	require.NoError(t, err)
	assert.Equal(t, "Dry Dog Food", e.Items[0])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: "categories: []"},
		{name: "no title", doc: "categories:\n  - items: [a]"},
		{name: "no items", doc: "categories:\n  - title: Dog"},
		{name: "duplicate", doc: "categories:\n  - title: Dog\n    items: [a]\n  - title: Dog\n    items: [b]"},
		{name: "malformed", doc: "categories: {"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestGenerator_Generate(t *testing.T) {
	g := NewGenerator(Default(), 42)
	products := g.Generate("Dog", "Dry Dog Food")
	require.Len(t, products, ProductsPerSubcategory)

	p := products[0]
	assert.Equal(t, "dog_dry-dog-food_1", p.ID)
	assert.Equal(t, "Dry Dog Food — 1", p.Title)
	assert.Equal(t, BrandNatureCare, p.Brand)
	assert.Equal(t, "150g", p.Weight)
	assert.Equal(t, "images/products/dog-dry-1.jpg", p.Image)
	assert.Equal(t, "Dog — Dry Dog Food product example #1", p.Description)
	assert.Equal(t, BrandPremiumPet, products[1].Brand)
	assert.Equal(t, "500g", products[7].Weight)

	for _, p := range products {
		assert.True(t, p.Price.GreaterThanOrEqual(mustDecimal(t, "5.99")), p.Price.String())
		assert.True(t, p.Price.LessThanOrEqual(mustDecimal(t, "99.99")), p.Price.String())
		assert.Equal(t, "0.99", p.Price.Sub(p.Price.Floor()).StringFixed(2))
	}
}

func TestGenerator_Stable(t *testing.T) {
	a := NewGenerator(Default(), 7).Generate("Cat", "Cat Toys")
	b := NewGenerator(Default(), 7).Generate("Cat", "Cat Toys")
	assert.Equal(t, a, b)
}

func TestGenerator_Naming(t *testing.T) {
	g := NewGenerator(Default(), 1)

	p := g.Product("Special Offers", "🎁 Eid/Puza Market", 3)
	assert.Equal(t, "special-offers_-eid-puza-market_3", p.ID)
	assert.Equal(t, "images/products/special-eid-3.jpg", p.Image)

	p = g.Product("Small Pet", "Rabbit & Guinea Pig Hutches", 2)
	assert.Equal(t, "small-pet_rabbit-guinea-pig-hutches_2", p.ID)
	assert.Equal(t, "Small Pet — Rabbit & Guinea Pig Hutches product example #2", p.Description)

	p = g.Product("Dog", "Pet Parents - Everything for You", 1)
	assert.Equal(t, "Dog — Pet Parents - Everything for You product example #1", p.Description)

	p = g.Product("Cat", "Cat Supplements & Specialty Food", 1)
	assert.Equal(t, "Cat — Cat Supplements & Specialty Food product example #1", p.Description)

	p = g.Product("Dog", "Dog Supplements & Special Food and More Things", 1)
	assert.Equal(t, "Dog — Dog Supplements & Special Food and product example #1", p.Description)
}

func TestGenerator_EmptySubcategory(t *testing.T) {
	products := NewGenerator(Default(), 1).Generate("Dog", "")
	require.Len(t, products, ProductsPerSubcategory)
	assert.Equal(t, DefaultSubcategory, products[0].Subcategory)
	assert.Equal(t, "dog_general_1", products[0].ID)
}

func TestGenerator_Find(t *testing.T) {
	g := NewGenerator(Default(), 99)
	want := g.Product("Bird", "Bird Toys", 5)

	got, err := g.Find(want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	for _, id := range []string{"", "dog_dry-dog-food_9", "dog_dry-dog-food_0", "dog_dry-dog-food_x", "reptile_food_1"} {
		_, err := g.Find(id)
		assert.True(t, errors.Is(err, ErrProductNotFound), id)
	}
}
