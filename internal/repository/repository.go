package repository

import (
	"context"
	"time"

	"github.com/utafrali/marketplace/internal/domain"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, a *domain.Account) error
	// ActivateByToken activates the account holding token if the token has
	// not expired at now, and returns the account id.
	ActivateByToken(ctx context.Context, token string, now time.Time) (string, error)
}

// ListingRepository defines persistence operations for listings.
type ListingRepository interface {
	Create(ctx context.Context, l *domain.Listing) error
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
	// Update replaces the mutable fields of l. It returns a NoChange error
	// when every stored column already equals the new value.
	Update(ctx context.Context, l *domain.Listing) error
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error)
	List(ctx context.Context, offset, limit int) ([]domain.Listing, int, error)
}

// ListingPageCache caches pages of the public listing feed.
type ListingPageCache interface {
	Get(ctx context.Context, page, limit int) (*domain.ListingPage, error)
	Set(ctx context.Context, page, limit int, p *domain.ListingPage) error
	Invalidate(ctx context.Context) error
}
