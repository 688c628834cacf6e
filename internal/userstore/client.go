// Package userstore is a client for the remote user store that handles
// login, registration and password reset.
package userstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MinPasswordLength is the shortest accepted new password.
const MinPasswordLength = 4

const maxResponseBytes = 1 << 20

// Identity is the authenticated user.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Grant is a short-lived permission to set a new password for Email.
type Grant struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Config configures the client.
type Config struct {
	URL     string        `default:"" usage:"base URL of the user store; empty disables account endpoints"`
	Timeout time.Duration `default:"5s"`
	// GrantTTL is used when the service does not report expires_in.
	GrantTTL time.Duration `default:"15m"`
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32        `default:"5"`
	OpenTimeout      time.Duration `default:"30s"`
}

type reply struct {
	OK        bool      `json:"ok"`
	Error     string    `json:"error"`
	User      *Identity `json:"user"`
	ExpiresIn int       `json:"expires_in"`
}

// Client calls the user store over HTTP. Transport failures trip a circuit
// breaker; domain error codes do not.
type Client struct {
	base     *url.URL
	http     *http.Client
	cb       *gobreaker.CircuitBreaker[*reply]
	grantTTL time.Duration
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock overrides the time source for grant expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client for cfg.URL.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse user store url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("user store url %q must be absolute", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.GrantTTL <= 0 {
		cfg.GrantTTL = 15 * time.Minute
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}

	c := &Client{
		base: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		grantTTL: cfg.GrantTTL,
		now:      time.Now,
	}
	c.cb = gobreaker.NewCircuitBreaker[*reply](gobreaker.Settings{
		Name:    "userstore",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	})
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Login verifies credentials.
func (c *Client) Login(ctx context.Context, email, password string) (Identity, error) {
	r, err := c.call(ctx, "login", url.Values{
		"email":    {strings.TrimSpace(email)},
		"password": {password},
	})
	if err != nil {
		return Identity{}, err
	}
	if r.User == nil {
		return Identity{}, errors.Wrap(ErrUnavailable, "login reply without user")
	}
	return *r.User, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	_, err := c.call(ctx, "register", url.Values{
		"name":     {strings.TrimSpace(name)},
		"email":    {strings.TrimSpace(email)},
		"password": {password},
	})
	return err
}

// RequestReset exchanges an email for a reset grant.
func (c *Client) RequestReset(ctx context.Context, email string) (Grant, error) {
	email = strings.TrimSpace(email)
	r, err := c.call(ctx, "password-reset", url.Values{"email": {email}})
	if err != nil {
		return Grant{}, err
	}
	ttl := c.grantTTL
	if r.ExpiresIn > 0 {
		ttl = time.Duration(r.ExpiresIn) * time.Second
	}
	return Grant{Email: email, ExpiresAt: c.now().Add(ttl)}, nil
}

// CompleteReset sets a new password. Mismatch, length and expiry are
// checked before the service is called.
func (c *Client) CompleteReset(ctx context.Context, g Grant, password, confirm string) error {
	if password != confirm {
		return ErrMismatch
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrTooShort
	}
	if !g.ExpiresAt.IsZero() && !c.now().Before(g.ExpiresAt) {
		return ErrGrantExpired
	}
	_, err := c.call(ctx, "password-reset/confirm", url.Values{
		"email":            {g.Email},
		"password":         {password},
		"confirm_password": {confirm},
	})
	return err
}

// call posts form to path. Domain errors are returned as successes to the
// breaker so only transport problems trip it.
func (c *Client) call(ctx context.Context, path string, form url.Values) (*reply, error) {
	r, err := c.cb.Execute(func() (*reply, error) {
		return c.post(ctx, path, form)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	case err != nil:
		return nil, err
	}
	if !r.OK {
		return nil, errorFor(r.Error)
	}
	return r, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (*reply, error) {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "post %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "read %s: %v", path, err)
	}
	var r reply
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "decode %s (status %d): %v", path, resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError && r.Error == "" {
		return nil, errors.Wrapf(ErrUnavailable, "post %s: status %d", path, resp.StatusCode)
	}
	return &r, nil
}
