// Package catalog holds the category taxonomy of the storefront and the
// product generator that fills each subcategory with sample products.
package catalog

import (
	_ "embed"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrCategoryNotFound is returned when a category title is not in the registry.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrSubcategoryNotFound is returned when a subcategory is not listed under its category.
	ErrSubcategoryNotFound = errors.New("subcategory not found")
	// ErrProductNotFound is returned when a product id cannot be resolved.
	ErrProductNotFound = errors.New("product not found")
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Entry is one top-level category with its ordered subcategories.
type Entry struct {
	Title string   `yaml:"title" json:"title"`
	Items []string `yaml:"items" json:"items"`
	Note  string   `yaml:"note,omitempty" json:"note,omitempty"`
}

type document struct {
	Categories []Entry `yaml:"categories"`
}

// Registry is the immutable category taxonomy. It is safe for concurrent use.
type Registry struct {
	entries []Entry
	byTitle map[string]int
}

// Default returns the registry bundled with the binary.
func Default() *Registry {
	r, err := Parse(defaultCatalog)
	if err != nil {
		panic(errors.Wrap(err, "embedded catalog"))
	}
	return r
}

// LoadFile reads a YAML registry from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load decodes a YAML registry from r.
func Load(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	return Parse(data)
}

// Parse decodes a YAML registry document.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return New(doc.Categories)
}

// New builds a Registry from entries, validating that every category has a
// unique title and at least one subcategory.
func New(entries []Entry) (*Registry, error) {
	if len(entries) == 0 {
		return nil, errors.New("catalog has no categories")
	}
	r := &Registry{
		entries: make([]Entry, len(entries)),
		byTitle: make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			return nil, errors.Errorf("category %d has no title", i)
		}
		if len(e.Items) == 0 {
			return nil, errors.Errorf("category %q has no subcategories", title)
		}
		if _, dup := r.byTitle[title]; dup {
			return nil, errors.Errorf("duplicate category %q", title)
		}
		r.entries[i] = Entry{
			Title: title,
			Items: append([]string(nil), e.Items...),
			Note:  e.Note,
		}
		r.byTitle[title] = i
	}
	return r, nil
}

// Categories returns the entries in display order.
func (r *Registry) Categories() []Entry {
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = Entry{Title: e.Title, Items: append([]string(nil), e.Items...), Note: e.Note}
	}
	return out
}

// Len returns the number of categories.
func (r *Registry) Len() int { return len(r.entries) }

// Category returns the entry titled title.
func (r *Registry) Category(title string) (Entry, error) {
	i, ok := r.byTitle[title]
	if !ok {
		return Entry{}, errors.Wrapf(ErrCategoryNotFound, "%q", title)
	}
	e := r.entries[i]
	return Entry{Title: e.Title, Items: append([]string(nil), e.Items...), Note: e.Note}, nil
}

// FirstSubcategory returns the first subcategory of cat.
func (r *Registry) FirstSubcategory(cat string) (string, error) {
	i, ok := r.byTitle[cat]
	if !ok {
		return "", errors.Wrapf(ErrCategoryNotFound, "%q", cat)
	}
	return r.entries[i].Items[0], nil
}

// HasSubcategory reports whether sub is listed under cat.
func (r *Registry) HasSubcategory(cat, sub string) bool {
	i, ok := r.byTitle[cat]
	if !ok {
		return false
	}
	for _, s := range r.entries[i].Items {
		if s == sub {
			return true
		}
	}
	return false
}

// each calls fn for every (category, subcategory) pair in display order
// until fn returns false.
func (r *Registry) each(fn func(cat, sub string) bool) {
	for _, e := range r.entries {
		for _, s := range e.Items {
			if !fn(e.Title, s) {
				return
			}
		}
	}
}
