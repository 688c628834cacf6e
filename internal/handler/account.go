package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/petshop-storefront/internal/domain/navigation"
	"github.com/xenking/petshop-storefront/internal/userstore"
)

var accountMessages = map[string]string{
	"invalid_credentials": "Invalid email or password.",
	"user_not_found":      "No account uses that email.",
	"duplicate_email":     "That email is already registered.",
	"db_error":            "The account service failed, try again later.",
	"mismatch":            "Passwords do not match.",
	"too_short":           "Password is too short.",
	"no_rows_updated":     "Password was not updated.",
	"grant_expired":       "The reset request expired, start again.",
	"unavailable":         "The account service is unavailable, try again later.",
}

var accountStatus = map[string]int{
	"invalid_credentials": http.StatusUnauthorized,
	"user_not_found":      http.StatusNotFound,
	"duplicate_email":     http.StatusConflict,
	"db_error":            http.StatusBadGateway,
	"mismatch":            http.StatusUnprocessableEntity,
	"too_short":           http.StatusUnprocessableEntity,
	"no_rows_updated":     http.StatusConflict,
	"grant_expired":       http.StatusGone,
	"unavailable":         http.StatusServiceUnavailable,
}

func (h *Handler) accountError(w http.ResponseWriter, r *http.Request, err error) {
	code := userstore.Code(err)
	status, ok := accountStatus[code]
	if !ok {
		zctx.From(r.Context()).Warn("Unexpected user store error", zap.Error(err))
		respondNotice(w, http.StatusBadGateway, "upstream_error", "The account service failed, try again later.")
		return
	}
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Warn("User store failure", zap.Error(err))
	}
	respondNotice(w, status, code, accountMessages[code])
}

func (h *Handler) accountsReady(w http.ResponseWriter) bool {
	if h.accounts == nil {
		respondNotice(w, http.StatusServiceUnavailable, "unavailable", accountMessages["unavailable"])
		return false
	}
	return true
}

// Login verifies credentials against the user store.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.accountsReady(w) {
		return
	}
	in, err := readInput(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}
	id, err := h.accounts.Login(r.Context(), in.str("email"), in.str("password"))
	if err != nil {
		h.accountError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, id)
}

// SignUp creates an account.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	if !h.accountsReady(w) {
		return
	}
	in, err := readInput(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := h.accounts.Register(r.Context(), in.str("name"), in.str("email"), in.str("password")); err != nil {
		h.accountError(w, r, err)
		return
	}
	respondNotice(w, http.StatusCreated, "registered", "Account created.")
}

type resetResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RequestReset starts a password reset and keeps the grant in the session.
func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	if !h.accountsReady(w) {
		return
	}
	in, err := readInput(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}
	g, err := h.accounts.RequestReset(r.Context(), in.str("email"))
	if err != nil {
		h.accountError(w, r, err)
		return
	}
	s := h.session(r)
	_ = s.Do(func(*navigation.Controller) error {
		s.SetGrant(&g)
		return nil
	})
	respondJSON(w, http.StatusOK, resetResponse{Email: g.Email, ExpiresAt: g.ExpiresAt})
}

// CompleteReset sets the new password for the session's pending grant.
func (h *Handler) CompleteReset(w http.ResponseWriter, r *http.Request) {
	if !h.accountsReady(w) {
		return
	}
	in, err := readInput(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}
	s := h.session(r)
	var (
		g  userstore.Grant
		ok bool
	)
	_ = s.Do(func(*navigation.Controller) error {
		g, ok = s.Grant()
		return nil
	})
	if !ok {
		respondNotice(w, http.StatusConflict, "no_reset_pending", "Request a password reset first.")
		return
	}

	err = h.accounts.CompleteReset(r.Context(), g, in.str("password"), in.str("confirm_password"))
	if err == nil || errors.Is(err, userstore.ErrGrantExpired) {
		_ = s.Do(func(*navigation.Controller) error {
			s.SetGrant(nil)
			return nil
		})
	}
	if err != nil {
		h.accountError(w, r, err)
		return
	}
	respondNotice(w, http.StatusOK, "password_updated", "Password updated.")
}
