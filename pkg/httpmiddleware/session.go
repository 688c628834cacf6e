package httpmiddleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type (
	sessionIDKey  struct{}
	newSessionKey struct{}
)

// SessionIDFromContext returns the visitor session id, or "".
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// IsNewSession reports whether the session id was minted for this request
// because the visitor sent no valid cookie.
func IsNewSession(ctx context.Context) bool {
	minted, _ := ctx.Value(newSessionKey{}).(bool)
	return minted
}

// SessionConfig configures the session cookie.
type SessionConfig struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Session makes sure every visitor carries a session cookie holding a UUID.
// Missing or malformed cookies are replaced.
func Session(cfg SessionConfig) Middleware {
	if cfg.CookieName == "" {
		cfg.CookieName = "petshop_session"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					id = c.Value
				}
			}
			minted := id == ""
			if minted {
				id = uuid.NewString()
			}
			http.SetCookie(w, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cfg.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})
			ctx := context.WithValue(r.Context(), sessionIDKey{}, id)
			if minted {
				ctx = context.WithValue(ctx, newSessionKey{}, true)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
