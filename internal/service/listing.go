package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/marketplace/internal/asset"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/repository"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
	"github.com/utafrali/marketplace/pkg/validator"
)

// ListingInput holds the submitted fields of a listing. OwnerID is the
// account the listing belongs to; on update it must match the stored owner.
type ListingInput struct {
	OwnerID     string               `json:"userId" validate:"required"`
	Name        string               `json:"name" validate:"required"`
	Price       float64              `json:"price" validate:"gt=0,lte=9999999999.99"`
	Category    string               `json:"category" validate:"required,oneof=electronics clothing accessories"`
	MainImage   *domain.AssetInput   `json:"mainImage"`
	OtherImages []*domain.AssetInput `json:"otherImages" validate:"max=5"`
	Options     []domain.Option      `json:"options"`
}

// ListingService implements listing creation, update and browsing.
type ListingService struct {
	listings repository.ListingRepository
	accounts repository.AccountRepository
	assets   *asset.Reconciler
	cache    repository.ListingPageCache
	producer *event.Producer
	logger   *slog.Logger
}

// NewListingService creates a new listing service. cache may be nil.
func NewListingService(
	listings repository.ListingRepository,
	accounts repository.AccountRepository,
	assets *asset.Reconciler,
	cache repository.ListingPageCache,
	producer *event.Producer,
	logger *slog.Logger,
) *ListingService {
	return &ListingService{
		listings: listings,
		accounts: accounts,
		assets:   assets,
		cache:    cache,
		producer: producer,
		logger:   logger,
	}
}

// Create validates and stores a new listing with its images.
func (s *ListingService) Create(ctx context.Context, input ListingInput) (*domain.Listing, error) {
	if err := validateListing(&input); err != nil {
		return nil, err
	}
	if input.MainImage == nil {
		return nil, apperrors.InvalidInput("mainImage is required")
	}
	images := append([]*domain.AssetInput{input.MainImage}, input.OtherImages...)
	if err := s.assets.Validate(images...); err != nil {
		return nil, err
	}
	if err := s.assets.CheckReferences(nil, images...); err != nil {
		return nil, err
	}

	if _, err := s.accounts.GetByID(ctx, input.OwnerID); err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}

	main, err := s.assets.Single(ctx, "", input.MainImage)
	if err != nil {
		return nil, err
	}
	others, err := s.assets.Sequence(ctx, nil, input.OtherImages)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	listing := &domain.Listing{
		ID:          uuid.New().String(),
		OwnerID:     input.OwnerID,
		Name:        input.Name,
		Price:       input.Price,
		Category:    input.Category,
		MainImage:   main.Ref,
		OtherImages: nonNilRefs(others.Refs),
		Options:     nonNilOptions(input.Options),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	if err := s.producer.PublishListingCreated(ctx, listing); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish listing.created event",
			slog.String("listing_id", listing.ID),
			slog.String("error", err.Error()),
		)
	}
	s.invalidate(ctx)

	s.logger.InfoContext(ctx, "listing created",
		slog.String("listing_id", listing.ID),
		slog.String("owner_id", listing.OwnerID),
	)
	return listing, nil
}

// Update replaces the listing's fields. Images are only replaced when new
// ones are submitted. Superseded images owned by the asset store are deleted
// after the row is written.
func (s *ListingService) Update(ctx context.Context, id string, input ListingInput) (*domain.Listing, error) {
	if err := validateListing(&input); err != nil {
		return nil, err
	}
	images := append([]*domain.AssetInput{input.MainImage}, input.OtherImages...)
	if err := s.assets.Validate(images...); err != nil {
		return nil, err
	}

	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if _, err := s.accounts.GetByID(ctx, input.OwnerID); err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	if listing.OwnerID != input.OwnerID {
		return nil, apperrors.Forbidden("listing belongs to another account")
	}
	// Images may move between the main slot and the gallery.
	held := append([]string{listing.MainImage}, listing.OtherImages...)
	if err := s.assets.CheckReferences(held, images...); err != nil {
		return nil, err
	}

	main, err := s.assets.Single(ctx, listing.MainImage, input.MainImage, listing.OtherImages...)
	if err != nil {
		return nil, err
	}
	others, err := s.assets.Sequence(ctx, listing.OtherImages, input.OtherImages, listing.MainImage)
	if err != nil {
		return nil, err
	}

	listing.Name = input.Name
	listing.Price = input.Price
	listing.Category = input.Category
	listing.Options = nonNilOptions(input.Options)
	listing.MainImage = main.Ref
	listing.OtherImages = nonNilRefs(others.Refs)

	if err := s.listings.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}

	s.assets.Purge(ctx, unreferenced(listing, append(main.Orphans, others.Orphans...)))

	if err := s.producer.PublishListingUpdated(ctx, listing); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish listing.updated event",
			slog.String("listing_id", listing.ID),
			slog.String("error", err.Error()),
		)
	}
	s.invalidate(ctx)

	s.logger.InfoContext(ctx, "listing updated", slog.String("listing_id", listing.ID))
	return listing, nil
}

// Get returns a listing by id.
func (s *ListingService) Get(ctx context.Context, id string) (*domain.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

// ListByOwner returns every listing of an account.
func (s *ListingService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error) {
	listings, err := s.listings.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list listings by owner: %w", err)
	}
	return listings, nil
}

// List returns one page of the public feed. Pages are served from the cache
// when possible; cache failures fall back to the database.
func (s *ListingService) List(ctx context.Context, page, limit int) (*domain.ListingPage, error) {
	params := pagination.New(page, limit)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, params.Page, params.Limit)
		switch {
		case err == nil:
			return cached, nil
		case !errors.Is(err, apperrors.ErrNotFound):
			s.logger.WarnContext(ctx, "listing cache read failed", slog.String("error", err.Error()))
		}
	}

	listings, total, err := s.listings.List(ctx, params.Offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}

	result := &domain.ListingPage{
		Products:      listings,
		TotalProducts: total,
		TotalPages:    pagination.TotalPages(total, params.Limit),
		CurrentPage:   params.Page,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, params.Page, params.Limit, result); err != nil {
			s.logger.WarnContext(ctx, "listing cache write failed", slog.String("error", err.Error()))
		}
	}
	return result, nil
}

func (s *ListingService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "listing cache invalidation failed", slog.String("error", err.Error()))
	}
}

func validateListing(input *ListingInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	if err := validator.Validate(input); err != nil {
		return err
	}
	if !domain.IsValidCategory(input.Category) {
		return apperrors.InvalidInput(fmt.Sprintf("category must be one of %s", strings.Join(domain.ValidCategories(), ", ")))
	}
	for i, opt := range input.Options {
		if strings.TrimSpace(opt.Key) == "" || strings.TrimSpace(opt.Value) == "" {
			return apperrors.InvalidInput(fmt.Sprintf("option %d must have a key and a value", i))
		}
	}
	return nil
}

// unreferenced drops refs the listing still points at, which happens when
// an image moves between the main slot and the gallery.
func unreferenced(l *domain.Listing, refs []string) []string {
	var out []string
	for _, ref := range refs {
		if ref == l.MainImage || slices.Contains(l.OtherImages, ref) || slices.Contains(out, ref) {
			continue
		}
		out = append(out, ref)
	}
	return out
}

func nonNilRefs(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}

func nonNilOptions(opts []domain.Option) []domain.Option {
	if opts == nil {
		return []domain.Option{}
	}
	return opts
}
