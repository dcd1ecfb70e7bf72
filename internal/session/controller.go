package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// DefaultTTL is the lifetime of a session token.
const DefaultTTL = 7 * 24 * time.Hour

// AccountFinder looks accounts up by email.
type AccountFinder interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// TokenEncoder signs session claims.
type TokenEncoder interface {
	Encode(claims auth.Claims, ttl time.Duration) (string, error)
}

// Controller is the server half of the session lifecycle: it authenticates
// credentials and mints tokens.
type Controller struct {
	accounts AccountFinder
	codec    TokenEncoder
	ttl      time.Duration
	logger   *slog.Logger
}

// NewController creates a Controller. A non-positive ttl uses DefaultTTL.
func NewController(accounts AccountFinder, codec TokenEncoder, ttl time.Duration, logger *slog.Logger) *Controller {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Controller{accounts: accounts, codec: codec, ttl: ttl, logger: logger}
}

// Login checks credentials and returns a signed token. An unknown email and a
// wrong password yield the same InvalidCredentials error; an inactive account
// is reported as Inactive before the password is checked.
func (c *Controller) Login(ctx context.Context, email, password string) (string, *domain.Account, error) {
	account, err := c.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", nil, apperrors.InvalidCredentials()
		}
		return "", nil, fmt.Errorf("look up account: %w", err)
	}

	if !account.CanAuthenticate() {
		return "", nil, apperrors.Inactive()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperrors.InvalidCredentials()
	}

	token, err := c.Mint(account)
	if err != nil {
		return "", nil, err
	}

	c.logger.InfoContext(ctx, "account logged in", slog.String("account_id", account.ID))
	return token, account, nil
}

// Mint issues a token carrying the current snapshot of account.
func (c *Controller) Mint(account *domain.Account) (string, error) {
	token, err := c.codec.Encode(ClaimsFromAccount(account), c.ttl)
	if err != nil {
		return "", fmt.Errorf("mint session token: %w", err)
	}
	return token, nil
}

// ClaimsFromAccount copies the public account attributes into token claims.
func ClaimsFromAccount(a *domain.Account) auth.Claims {
	return auth.Claims{
		ID:           a.ID,
		Email:        a.Email,
		Username:     a.Username,
		Address:      a.Address,
		Phone:        a.Phone,
		ProfileImage: a.ProfileImage,
		State:        a.State,
		ZipCode:      a.ZipCode,
	}
}
