// Package memory provides map-backed repositories with the same error
// contract as the PostgreSQL ones. They hold copies, never caller pointers.
package memory

import (
	"context"
	"reflect"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// Accounts implements repository.AccountRepository.
type Accounts struct {
	mu   sync.RWMutex
	byID map[string]domain.Account
}

// NewAccounts creates an empty account repository.
func NewAccounts() *Accounts {
	return &Accounts{byID: make(map[string]domain.Account)}
}

func (r *Accounts) Create(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == a.Email {
			return apperrors.AlreadyExists("account", "email", a.Email)
		}
	}
	r.byID[a.ID] = *a
	return nil
}

func (r *Accounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NotFound("account", id)
	}
	return &a, nil
}

func (r *Accounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.byID {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, apperrors.NotFound("account", email)
}

// Update replaces the profile fields of a stored account.
func (r *Accounts) Update(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[a.ID]
	if !ok {
		return apperrors.NotFound("account", a.ID)
	}
	stored.Username = a.Username
	stored.Address = a.Address
	stored.State = a.State
	stored.ZipCode = a.ZipCode
	stored.Phone = a.Phone
	stored.ProfileImage = a.ProfileImage
	stored.UpdatedAt = a.UpdatedAt
	r.byID[a.ID] = stored
	return nil
}

// ActivateByToken activates the account holding token if it has not expired
// at now, and clears the token.
func (r *Accounts) ActivateByToken(_ context.Context, token string, now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.byID {
		if a.VerificationToken == nil || *a.VerificationToken != token {
			continue
		}
		if a.VerificationTokenExpiresAt == nil || !a.VerificationTokenExpiresAt.After(now) {
			break
		}
		a.IsActive = true
		a.VerificationToken = nil
		a.VerificationTokenExpiresAt = nil
		a.UpdatedAt = now
		r.byID[id] = a
		return id, nil
	}
	return "", apperrors.NotFound("verification token", "provided")
}

// Listings implements repository.ListingRepository.
type Listings struct {
	mu   sync.RWMutex
	byID map[string]domain.Listing
}

// NewListings creates an empty listing repository.
func NewListings() *Listings {
	return &Listings{byID: make(map[string]domain.Listing)}
}

func (r *Listings) Create(_ context.Context, l *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[l.ID]; ok {
		return apperrors.AlreadyExists("listing", "id", l.ID)
	}
	r.byID[l.ID] = cloneListing(*l)
	return nil
}

func (r *Listings) GetByID(_ context.Context, id string) (*domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NotFound("listing", id)
	}
	l = cloneListing(l)
	return &l, nil
}

// Update replaces the mutable fields of l, or returns NoChange when they all
// equal the stored values.
func (r *Listings) Update(_ context.Context, l *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[l.ID]
	if !ok {
		return apperrors.NotFound("listing", l.ID)
	}
	if stored.Name == l.Name && stored.Price == l.Price && stored.Category == l.Category &&
		stored.MainImage == l.MainImage && slices.Equal(stored.OtherImages, l.OtherImages) &&
		reflect.DeepEqual(nonNil(stored.Options), nonNil(l.Options)) {
		return apperrors.NoChange("listing")
	}

	l.UpdatedAt = time.Now().UTC()
	stored.Name = l.Name
	stored.Price = l.Price
	stored.Category = l.Category
	stored.MainImage = l.MainImage
	stored.OtherImages = l.OtherImages
	stored.Options = l.Options
	stored.UpdatedAt = l.UpdatedAt
	r.byID[l.ID] = cloneListing(stored)
	return nil
}

func (r *Listings) ListByOwner(_ context.Context, ownerID string) ([]domain.Listing, error) {
	out := []domain.Listing{}
	for _, l := range r.sorted() {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	return out, nil
}

// List returns newest listings first.
func (r *Listings) List(_ context.Context, offset, limit int) ([]domain.Listing, int, error) {
	all := r.sorted()
	if offset >= len(all) {
		return []domain.Listing{}, len(all), nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (r *Listings) sorted() []domain.Listing {
	r.mu.RLock()
	out := make([]domain.Listing, 0, len(r.byID))
	for _, l := range r.byID {
		out = append(out, cloneListing(l))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneListing(l domain.Listing) domain.Listing {
	l.OtherImages = slices.Clone(l.OtherImages)
	l.Options = slices.Clone(l.Options)
	return l
}

func nonNil(opts []domain.Option) []domain.Option {
	if opts == nil {
		return []domain.Option{}
	}
	return opts
}
