package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/petshop-storefront/internal/domain/consent"
	"github.com/xenking/petshop-storefront/internal/domain/navigation"
)

type consentResponse struct {
	State           string `json:"state"`
	ExportAvailable bool   `json:"export_available"`
	Entries         int    `json:"entries"`
}

func consentView(g *consent.Gate) consentResponse {
	return consentResponse{
		State:           g.State().String(),
		ExportAvailable: g.HasExportAffordance(),
		Entries:         g.Len(),
	}
}

// Consent returns the visitor's consent state.
func (h *Handler) Consent(w http.ResponseWriter, r *http.Request) {
	var resp consentResponse
	_ = h.session(r).Do(func(c *navigation.Controller) error {
		resp = consentView(c.Consent())
		return nil
	})
	respondJSON(w, http.StatusOK, resp)
}

// Decide applies the posted accept flag. A visitor decides once.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}
	accept, err := in.bool("accept")
	if err != nil {
		badRequest(w, err)
		return
	}
	var resp consentResponse
	err = h.session(r).Do(func(c *navigation.Controller) error {
		g := c.Consent()
		decide := g.Decline
		if accept {
			decide = g.Accept
		}
		if err := decide(r.Context()); err != nil {
			return err
		}
		resp = consentView(g)
		return nil
	})
	switch {
	case wantsDocument(r):
		redirectHome(w, r)
	case errors.Is(err, consent.ErrAlreadyDecided):
		respondNotice(w, http.StatusConflict, "already_decided", "Consent has already been decided.")
	default:
		respondJSON(w, http.StatusOK, resp)
	}
}

// TrackEvent records a UI-only event such as the menu opening.
func (h *Handler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = h.session(r).Do(func(c *navigation.Controller) error {
		return c.Track(r.Context(), in.trimmed("event"))
	})
	if errors.Is(err, navigation.ErrUnknownEvent) {
		respondNotice(w, http.StatusBadRequest, "unknown_event", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportUsage downloads the usage log as CSV, gzip-compressed when the gzip
// parameter is true. An empty log answers with a notice.
func (h *Handler) ExportUsage(w http.ResponseWriter, r *http.Request) {
	compress, _ := strconv.ParseBool(r.URL.Query().Get("gzip"))
	var x consent.Export
	err := h.session(r).Do(func(c *navigation.Controller) error {
		var err error
		x, err = c.Consent().Export(r.Context())
		return err
	})
	if errors.Is(err, consent.ErrEmptyExportSet) {
		respondNotice(w, http.StatusNotFound, "empty_export", consent.EmptyExportNotice)
		return
	}

	contentType := "text/csv; charset=utf-8"
	if compress {
		if x, err = x.Gzip(); err != nil {
			zctx.From(r.Context()).Error("Compress usage export", zap.Error(err))
			respondNotice(w, http.StatusInternalServerError, "export_failed", "Usage data could not be compressed.")
			return
		}
		contentType = "application/gzip"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+x.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(x.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(x.Data)
}

type heroResponse struct {
	Slides  []string `json:"slides"`
	Current int      `json:"current"`
	Paused  bool     `json:"paused"`
}

// Hero returns the carousel state.
func (h *Handler) Hero(w http.ResponseWriter, _ *http.Request) {
	h.respondHero(w)
}

// PauseHero stops the carousel, as hovering it does.
func (h *Handler) PauseHero(w http.ResponseWriter, _ *http.Request) {
	if h.carousel != nil {
		h.carousel.Pause()
	}
	h.respondHero(w)
}

// ResumeHero restarts the carousel.
func (h *Handler) ResumeHero(w http.ResponseWriter, _ *http.Request) {
	if h.carousel != nil {
		h.carousel.Resume()
	}
	h.respondHero(w)
}

func (h *Handler) respondHero(w http.ResponseWriter) {
	resp := heroResponse{Slides: []string{}}
	if h.carousel != nil {
		resp = heroResponse{
			Slides:  h.carousel.Slides(),
			Current: h.carousel.Current(),
			Paused:  h.carousel.Paused(),
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
