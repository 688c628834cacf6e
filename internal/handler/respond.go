package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

// Notice is a visitor-facing message.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondNotice(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, Notice{Code: code, Message: message})
}

// respondHTML renders into a buffer first so a failed render never leaves
// a half-written page.
func respondHTML(w http.ResponseWriter, r *http.Request, status int, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		zctx.From(r.Context()).Error("Render failed", zap.Error(err))
		respondNotice(w, http.StatusInternalServerError, "render_failed", "Page could not be rendered.")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// wantsDocument reports whether the request is a browser navigation, such as
// a plain HTML form submit, rather than a script call.
func wantsDocument(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// redirectCart sends a document client back to the page with the cart
// drawer in view.
func redirectCart(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/#cartDrawer", http.StatusSeeOther)
}

// input is a flat request body, read from either a form or a JSON object.
type input map[string]string

func (in input) str(key string) string { return in[key] }

func (in input) trimmed(key string) string { return strings.TrimSpace(in[key]) }

func (in input) bool(key string) (bool, error) {
	v, ok := in[key]
	if !ok {
		return false, errors.Errorf("%s is required", key)
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Errorf("%s must be true or false", key)
	}
	return b, nil
}

// readInput accepts application/json objects and url-encoded or multipart
// forms. Nested JSON values are skipped; scalars become strings. Multipart
// file parts are ignored.
func readInput(w http.ResponseWriter, r *http.Request) (input, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(maxBodyBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse form")
		}
		in := make(input, len(r.Form))
		for k := range r.Form {
			in[k] = r.Form.Get(k)
		}
		return in, nil
	}

	in := make(input)
	if r.ContentLength == 0 {
		return in, nil
	}
	d := jx.Decode(io.LimitReader(r.Body, maxBodyBytes), 512)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch d.Next() {
		case jx.String:
			v, err := d.Str()
			if err != nil {
				return err
			}
			in[key] = v
		case jx.Bool:
			v, err := d.Bool()
			if err != nil {
				return err
			}
			in[key] = strconv.FormatBool(v)
		case jx.Number:
			v, err := d.Num()
			if err != nil {
				return err
			}
			in[key] = v.String()
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode json body")
	}
	return in, nil
}

func badRequest(w http.ResponseWriter, err error) {
	respondNotice(w, http.StatusBadRequest, "invalid_request", err.Error())
}
