package navigation

import (
	"fmt"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
)

// tilePreview is the number of subcategory shortcuts on a home tile.
const tilePreview = 4

// View identifies what the stage shows.
type View string

// Stage views.
const (
	ViewHome        View = "home"
	ViewSubcategory View = "subcategory"
)

// Tile is a category card on the home view.
type Tile struct {
	Title   string   `json:"title"`
	Preview []string `json:"preview"`
	Note    string   `json:"note,omitempty"`
}

// Stage is the content of the single mutable page region.
type Stage struct {
	View        View              `json:"view"`
	Category    string            `json:"category,omitempty"`
	Subcategory string            `json:"subcategory,omitempty"`
	Heading     string            `json:"heading,omitempty"`
	Description string            `json:"description,omitempty"`
	Tiles       []Tile            `json:"tiles,omitempty"`
	Products    []catalog.Product `json:"products"`
}

// HomeStage builds the home view: one tile per category and the featured
// products of the first subcategory of the first category.
func HomeStage(gen *catalog.Generator) Stage {
	cats := gen.Registry().Categories()
	tiles := make([]Tile, 0, len(cats))
	for _, c := range cats {
		n := min(len(c.Items), tilePreview)
		tiles = append(tiles, Tile{Title: c.Title, Preview: c.Items[:n], Note: c.Note})
	}
	st := Stage{View: ViewHome, Tiles: tiles}
	if len(cats) > 0 {
		st.Products = gen.Generate(cats[0].Title, cats[0].Items[0])
	}
	return st
}

// SubcategoryStage builds the product listing of (cat, sub).
func SubcategoryStage(gen *catalog.Generator, cat, sub string) Stage {
	return Stage{
		View:        ViewSubcategory,
		Category:    cat,
		Subcategory: sub,
		Heading:     cat + " — " + sub,
		Description: fmt.Sprintf("Showing products for %s in %s.", sub, cat),
		Products:    gen.Generate(cat, sub),
	}
}
