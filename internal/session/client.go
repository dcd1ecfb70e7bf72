package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/marketplace/internal/auth"
)

// TokenDecoder turns a stored token back into claims.
type TokenDecoder interface {
	Decode(token string) (*auth.Claims, error)
}

// DecoderFunc adapts a function to TokenDecoder.
type DecoderFunc func(token string) (*auth.Claims, error)

// Decode calls f.
func (f DecoderFunc) Decode(token string) (*auth.Claims, error) { return f(token) }

// Client is the client-resident half of the session lifecycle. It restores
// the session from a TokenStore and discards tokens that are unreadable or
// expired.
type Client struct {
	store   TokenStore
	decoder TokenDecoder
	now     func() time.Time
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientClock overrides the time source used for expiry checks.
func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the logger used for store failures.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client over store.
func NewClient(store TokenStore, decoder TokenDecoder, opts ...ClientOption) *Client {
	c := &Client{store: store, decoder: decoder, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rehydrate rebuilds the authentication state from the stored token. Calling
// it again without a store change yields the same state.
func (c *Client) Rehydrate(ctx context.Context) AppContext {
	token, err := c.store.Load(ctx, TokenKey)
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			c.logger.WarnContext(ctx, "failed to read session token", slog.String("error", err.Error()))
		}
		return guest(false)
	}

	claims, err := c.decoder.Decode(token)
	if err != nil {
		c.clear(ctx)
		return guest(false)
	}

	if claims.Expired(c.now()) {
		c.clear(ctx)
		return guest(true)
	}

	return AppContext{Auth: AuthState{Status: Authorized, Claims: claims}}
}

// Login stores a freshly issued token, replacing any previous one, and
// returns the resulting state.
func (c *Client) Login(ctx context.Context, token string) (AppContext, error) {
	if err := c.store.Save(ctx, TokenKey, token); err != nil {
		return guest(false), fmt.Errorf("save session token: %w", err)
	}
	state := c.Rehydrate(ctx)
	if !state.IsAuthorized() {
		return state, fmt.Errorf("issued token was rejected")
	}
	return state, nil
}

// Logout forgets the stored token.
func (c *Client) Logout(ctx context.Context) AppContext {
	c.clear(ctx)
	return guest(false)
}

// Token returns the stored token, if any.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.store.Load(ctx, TokenKey)
}

func (c *Client) clear(ctx context.Context) {
	if err := c.store.Delete(ctx, TokenKey); err != nil {
		c.logger.WarnContext(ctx, "failed to clear session token", slog.String("error", err.Error()))
	}
}

func guest(expired bool) AppContext {
	return AppContext{Auth: AuthState{Status: Guest, Expired: expired}}
}
