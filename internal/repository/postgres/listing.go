package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const listingColumns = `id, owner_id, name, price, category, main_image, other_images, options, created_at, updated_at`

// ListingRepository implements repository.ListingRepository using PostgreSQL.
type ListingRepository struct {
	db database.DBTX
}

// NewListingRepository creates a new PostgreSQL-backed listing repository.
func NewListingRepository(db database.DBTX) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create inserts a new listing.
func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) (err error) {
	optionsJSON, err := marshalOptions(l.Options)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	ctx, end := database.TraceQuery(ctx, "listings", "insert", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		l.ID,
		l.OwnerID,
		l.Name,
		l.Price,
		l.Category,
		l.MainImage,
		nonNil(l.OtherImages),
		optionsJSON,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetByID retrieves a listing by its ID.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (_ *domain.Listing, err error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "listings", "select_by_id", query)
	defer func() { end(err) }()

	l, err := scanListing(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("listing", id)
		}
		return nil, err
	}
	return l, nil
}

// Update replaces name, price, category, images and options. The row is only
// written when at least one column differs; otherwise NoChange is returned.
func (r *ListingRepository) Update(ctx context.Context, l *domain.Listing) (err error) {
	optionsJSON, err := marshalOptions(l.Options)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	query := `
		UPDATE listings
		SET name = $1, price = $2, category = $3, main_image = $4,
		    other_images = $5, options = $6, updated_at = $7
		WHERE id = $8
		  AND (name IS DISTINCT FROM $1
		    OR price IS DISTINCT FROM $2
		    OR category IS DISTINCT FROM $3
		    OR main_image IS DISTINCT FROM $4
		    OR other_images IS DISTINCT FROM $5
		    OR options IS DISTINCT FROM $6)`

	ctx, end := database.TraceQuery(ctx, "listings", "update", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		l.Name,
		l.Price,
		l.Category,
		l.MainImage,
		nonNil(l.OtherImages),
		optionsJSON,
		now,
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NoChange("listing")
	}
	l.UpdatedAt = now
	return nil
}

// ListByOwner returns every listing of an owner, newest first.
func (r *ListingRepository) ListByOwner(ctx context.Context, ownerID string) (_ []domain.Listing, err error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE owner_id = $1 ORDER BY created_at DESC`

	ctx, end := database.TraceQuery(ctx, "listings", "select_by_owner", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list listings by owner: %w", err)
	}
	defer rows.Close()

	listings := []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}
	return listings, nil
}

// List returns one page of listings, newest first, and the total count.
func (r *ListingRepository) List(ctx context.Context, offset, limit int) (_ []domain.Listing, total int, err error) {
	// count(*) OVER() gives the total in the same round trip.
	query := `
		SELECT ` + listingColumns + `, count(*) OVER() AS total_count
		FROM listings
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`

	ctx, end := database.TraceQuery(ctx, "listings", "select_page", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	listings := []domain.Listing{}
	for rows.Next() {
		var (
			l           domain.Listing
			optionsJSON []byte
		)
		if err := rows.Scan(
			&l.ID,
			&l.OwnerID,
			&l.Name,
			&l.Price,
			&l.Category,
			&l.MainImage,
			&l.OtherImages,
			&optionsJSON,
			&l.CreatedAt,
			&l.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan listing row: %w", err)
		}
		if err := unmarshalOptions(optionsJSON, &l); err != nil {
			return nil, 0, err
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate listing rows: %w", err)
	}

	// Past the last page the window count has no row to ride on.
	if len(listings) == 0 && offset > 0 {
		if err := r.db.QueryRow(ctx, `SELECT count(*) FROM listings`).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count listings: %w", err)
		}
	}
	return listings, total, nil
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var (
		l           domain.Listing
		optionsJSON []byte
	)
	err := row.Scan(
		&l.ID,
		&l.OwnerID,
		&l.Name,
		&l.Price,
		&l.Category,
		&l.MainImage,
		&l.OtherImages,
		&optionsJSON,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	if err := unmarshalOptions(optionsJSON, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func marshalOptions(opts []domain.Option) ([]byte, error) {
	if opts == nil {
		opts = []domain.Option{}
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	return b, nil
}

func unmarshalOptions(data []byte, l *domain.Listing) error {
	l.OtherImages = nonNil(l.OtherImages)
	l.Options = []domain.Option{}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &l.Options); err != nil {
		return fmt.Errorf("unmarshal options: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
