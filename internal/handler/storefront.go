package handler

import (
	"io"
	"net/http"

	"github.com/xenking/petshop-storefront/internal/domain/consent"
	"github.com/xenking/petshop-storefront/internal/domain/navigation"
	"github.com/xenking/petshop-storefront/internal/render"
)

// Page renders the whole storefront and records a page view.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	var page render.Page
	_ = s.Do(func(c *navigation.Controller) error {
		c.PageView(r.Context(), r.URL.Path)
		page = h.page(c)
		page.Notice = s.TakeFlash()
		return nil
	})
	respondHTML(w, r, http.StatusOK, func(out io.Writer) error {
		return h.renderer.Page(out, page)
	})
}

func (h *Handler) page(c *navigation.Controller) render.Page {
	gate := c.Consent()
	p := render.Page{
		Stage:         c.Stage(),
		Cart:          c.Cart().Lines(),
		CartCount:     c.Cart().Count(),
		CartTotal:     c.Cart().DisplayTotal(),
		ConsentBanner: gate.State() == consent.Unset,
		ExportLink:    gate.HasExportAffordance(),
		Now:           h.now(),
	}
	if h.carousel != nil && len(h.carousel.Slides()) > 0 {
		p.Hero = &render.Hero{Slides: h.carousel.Slides()}
		p.HeroCurrent = h.carousel.Current()
	}
	return p
}

// Stage renders the current stage fragment.
func (h *Handler) Stage(w http.ResponseWriter, r *http.Request) {
	var st navigation.Stage
	_ = h.session(r).Do(func(c *navigation.Controller) error {
		st = c.Stage()
		return nil
	})
	h.respondStage(w, r, st)
}

// SelectCategory shows the first subcategory of the posted category.
func (h *Handler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}
	h.transition(w, r, func(c *navigation.Controller) (navigation.Stage, error) {
		return c.SelectCategory(r.Context(), in.str("category"))
	})
}

// SelectSubcategory shows the posted (category, subcategory); the "ALL"
// subcategory behaves like SelectCategory.
func (h *Handler) SelectSubcategory(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}
	h.transition(w, r, func(c *navigation.Controller) (navigation.Stage, error) {
		return c.SelectSubcategory(r.Context(), in.str("category"), in.str("subcategory"))
	})
}

func (h *Handler) transition(
	w http.ResponseWriter,
	r *http.Request,
	move func(c *navigation.Controller) (navigation.Stage, error),
) {
	s := h.session(r)
	doc := wantsDocument(r)
	var st navigation.Stage
	err := s.Do(func(c *navigation.Controller) error {
		var err error
		st, err = move(c)
		if err != nil && doc {
			s.Flash(navigation.NotFoundNotice(err))
		}
		return err
	})
	switch {
	case doc:
		redirectHome(w, r)
	case err != nil:
		respondNotice(w, http.StatusNotFound, "not_found", navigation.NotFoundNotice(err))
	default:
		h.respondStage(w, r, st)
	}
}

func (h *Handler) respondStage(w http.ResponseWriter, r *http.Request, st navigation.Stage) {
	respondHTML(w, r, http.StatusOK, func(out io.Writer) error {
		return h.renderer.Stage(out, st)
	})
}
