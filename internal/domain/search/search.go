// Package search matches free-text queries against the catalog and a
// bounded sample of generated products.
package search

import (
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
)

// Default sample bounds: first 3 categories x first 3 subcategories.
const (
	DefaultSampleCategories    = 3
	DefaultSampleSubcategories = 3
)

// PreviewLimit is the number of matches shown for a list result.
const PreviewLimit = 10

const (
	gramSize = 3
	bloomFPR = 0.001
)

// Kind is the pool a match came from.
type Kind string

// Match kinds.
const (
	KindCategory    Kind = "category"
	KindSubcategory Kind = "subcategory"
	KindProduct     Kind = "product"
)

// Match is one hit.
type Match struct {
	Kind        Kind             `json:"type"`
	Text        string           `json:"text"`
	Category    string           `json:"category"`
	Subcategory string           `json:"subcategory,omitempty"`
	Product     *catalog.Product `json:"product,omitempty"`
}

// Status is the resolution of a query.
type Status string

// Result statuses.
const (
	StatusNeedsInput Status = "needs_input"
	StatusNoResults  Status = "no_results"
	StatusNavigate   Status = "navigate"
	StatusList       Status = "list"
)

// Result is the outcome of Search. Category and Subcategory are set only for
// StatusNavigate.
type Result struct {
	Query       string  `json:"query"`
	Status      Status  `json:"status"`
	Matches     []Match `json:"matches"`
	Category    string  `json:"category,omitempty"`
	Subcategory string  `json:"subcategory,omitempty"`
}

// Preview returns at most PreviewLimit matches.
func (r Result) Preview() []Match {
	if len(r.Matches) > PreviewLimit {
		return r.Matches[:PreviewLimit]
	}
	return r.Matches
}

// Config bounds the product pool.
type Config struct {
	SampleCategories    int `default:"3" yaml:"sample_categories"`
	SampleSubcategories int `default:"3" yaml:"sample_subcategories"`
}

type productEntry struct {
	product catalog.Product
	title   string
	brand   string
	desc    string
}

// Engine answers queries. It is immutable after New and safe for concurrent use.
type Engine struct {
	registry *catalog.Registry
	products []productEntry
	grams    *bloom.BloomFilter
}

// New builds an Engine over the generator's registry, sampling products
// from the configured leading cells.
func New(gen *catalog.Generator, cfg Config) *Engine {
	if cfg.SampleCategories <= 0 {
		cfg.SampleCategories = DefaultSampleCategories
	}
	if cfg.SampleSubcategories <= 0 {
		cfg.SampleSubcategories = DefaultSampleSubcategories
	}
	reg := gen.Registry()
	e := &Engine{registry: reg}

	var texts []string
	for ci, c := range reg.Categories() {
		texts = append(texts, strings.ToLower(c.Title))
		for si, s := range c.Items {
			texts = append(texts, strings.ToLower(s))
			if ci >= cfg.SampleCategories || si >= cfg.SampleSubcategories {
				continue
			}
			for _, p := range gen.Generate(c.Title, s) {
				pe := productEntry{
					product: p,
					title:   strings.ToLower(p.Title),
					brand:   strings.ToLower(p.Brand),
					desc:    strings.ToLower(p.Description),
				}
				e.products = append(e.products, pe)
				texts = append(texts, pe.title, pe.brand, pe.desc)
			}
		}
	}

	n := 0
	for _, t := range texts {
		n += len(t)
	}
	e.grams = bloom.NewWithEstimates(uint(max(n, 1)), bloomFPR)
	for _, t := range texts {
		for i := 0; i+gramSize <= len(t); i++ {
			e.grams.AddString(t[i : i+gramSize])
		}
	}
	return e
}

// Normalize trims and lowercases a raw query.
func Normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Search resolves q. Only the first match decides: a subcategory or product
// match navigates, a category match lists everything found.
func (e *Engine) Search(raw string) Result {
	q := Normalize(raw)
	if q == "" {
		return Result{Status: StatusNeedsInput}
	}
	res := Result{Query: q, Matches: e.Matches(q)}
	if len(res.Matches) == 0 {
		res.Status = StatusNoResults
		return res
	}
	switch first := res.Matches[0]; first.Kind {
	case KindSubcategory, KindProduct:
		res.Status = StatusNavigate
		res.Category, res.Subcategory = first.Category, first.Subcategory
	default:
		res.Status = StatusList
	}
	return res
}

// Matches returns every hit for the normalized query q in discovery order:
// categories, then subcategories, then sampled products.
func (e *Engine) Matches(q string) []Match {
	if !e.mayContain(q) {
		return nil
	}
	var out []Match
	cats := e.registry.Categories()
	for _, c := range cats {
		if strings.Contains(strings.ToLower(c.Title), q) {
			out = append(out, Match{Kind: KindCategory, Text: c.Title, Category: c.Title})
		}
	}
	for _, c := range cats {
		for _, s := range c.Items {
			if strings.Contains(strings.ToLower(s), q) {
				out = append(out, Match{
					Kind:        KindSubcategory,
					Text:        c.Title + " → " + s,
					Category:    c.Title,
					Subcategory: s,
				})
			}
		}
	}
	for i := range e.products {
		pe := &e.products[i]
		if strings.Contains(pe.title, q) || strings.Contains(pe.brand, q) || strings.Contains(pe.desc, q) {
			p := pe.product
			out = append(out, Match{
				Kind:        KindProduct,
				Text:        p.Title + " — " + p.Brand,
				Category:    p.Category,
				Subcategory: p.Subcategory,
				Product:     &p,
			})
		}
	}
	return out
}

// mayContain reports false only when no indexed text can contain q.
func (e *Engine) mayContain(q string) bool {
	for i := 0; i+gramSize <= len(q); i++ {
		if !e.grams.TestString(q[i : i+gramSize]) {
			return false
		}
	}
	return true
}
