// Package render turns storefront view models into HTML.
package render

import (
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/xenking/petshop-storefront/internal/domain/cart"
	"github.com/xenking/petshop-storefront/internal/domain/navigation"
)

// ClockLayout is the footer clock format.
const ClockLayout = "2006-01-02 15:04:05"

// Hero is the carousel state shown above the stage.
type Hero struct {
	Slides []string
}

// Page is everything needed to render the full storefront for one visitor.
type Page struct {
	Stage         navigation.Stage
	Cart          []cart.Line
	CartCount     int
	CartTotal     string
	ConsentBanner bool
	ExportLink    bool
	Hero          *Hero
	HeroCurrent   int
	Notice        string
	Now           time.Time
}

// Renderer writes HTML for pages and stage fragments.
type Renderer interface {
	Page(w io.Writer, p Page) error
	Stage(w io.Writer, st navigation.Stage) error
	Name() string
}

// Select returns a TemplatedRenderer when the templates in dir (or the
// bundled ones when dir is empty) parse, and a FallbackRenderer otherwise.
func Select(dir string, lg *zap.Logger) Renderer {
	t, err := NewTemplated(dir)
	if err != nil {
		lg.Warn("Templates unavailable, using fallback renderer",
			zap.String("dir", dir),
			zap.Error(err),
		)
		return Fallback{}
	}
	return t
}

func clock(t time.Time) string {
	return t.Format(ClockLayout)
}
