package render

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"os"

	"github.com/go-faster/errors"

	"github.com/xenking/petshop-storefront/internal/domain/cart"
	"github.com/xenking/petshop-storefront/internal/domain/navigation"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

var requiredTemplates = []string{"page", "stage", "cart", "product"}

var funcs = template.FuncMap{
	"price": cart.FormatPrice,
	"clock": clock,
}

// Templated renders with html/template files.
type Templated struct {
	tmpl *template.Template
}

// NewTemplated parses *.gohtml from dir, or the bundled templates when dir
// is empty. Every template the renderer executes must be defined.
func NewTemplated(dir string) (*Templated, error) {
	var src fs.FS = templateFS
	pattern := "templates/*.gohtml"
	if dir != "" {
		src, pattern = os.DirFS(dir), "*.gohtml"
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(src, pattern)
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	for _, name := range requiredTemplates {
		if tmpl.Lookup(name) == nil {
			return nil, errors.Errorf("template %q not defined", name)
		}
	}
	return &Templated{tmpl: tmpl}, nil
}

// Name implements Renderer.
func (t *Templated) Name() string { return "templated" }

// Page implements Renderer.
func (t *Templated) Page(w io.Writer, p Page) error {
	return t.tmpl.ExecuteTemplate(w, "page", p)
}

// Stage implements Renderer.
func (t *Templated) Stage(w io.Writer, st navigation.Stage) error {
	return t.tmpl.ExecuteTemplate(w, "stage", st)
}
