package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

func newListingFixture(t *testing.T) (*ListingRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewListingRepository(mock), mock
}

func sampleListing() *domain.Listing {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Listing{
		ID:          "0b8f5d2a-1c2e-4f70-8a55-3d6c1f2b9e01",
		OwnerID:     "7d0f6c1e-3a53-4c1f-9d7e-0c6b8e0f6a11",
		Name:        "Camera",
		Price:       249.99,
		Category:    domain.CategoryElectronics,
		MainImage:   "/images/1-camera.jpg",
		OtherImages: []string{"/images/1-side.jpg"},
		Options:     []domain.Option{{Key: "color", Value: "black"}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

var listingCols = []string{
	"id", "owner_id", "name", "price", "category", "main_image", "other_images", "options", "created_at", "updated_at",
}

func listingValues(l *domain.Listing) []any {
	return []any{
		l.ID, l.OwnerID, l.Name, l.Price, l.Category, l.MainImage, l.OtherImages,
		[]byte(`[{"key":"color","value":"black"}]`), l.CreatedAt, l.UpdatedAt,
	}
}

func TestListingRepository_Create(t *testing.T) {
	repo, mock := newListingFixture(t)
	l := sampleListing()

	mock.ExpectExec("INSERT INTO listings").
		WithArgs(l.ID, l.OwnerID, l.Name, l.Price, l.Category, l.MainImage, l.OtherImages,
			[]byte(`[{"key":"color","value":"black"}]`), l.CreatedAt, l.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), l))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_Create_NilSlicesStoredEmpty(t *testing.T) {
	repo, mock := newListingFixture(t)
	l := sampleListing()
	l.OtherImages = nil
	l.Options = nil

	mock.ExpectExec("INSERT INTO listings").
		WithArgs(l.ID, l.OwnerID, l.Name, l.Price, l.Category, l.MainImage, []string{},
			[]byte(`[]`), l.CreatedAt, l.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), l))
}

func TestListingRepository_GetByID(t *testing.T) {
	repo, mock := newListingFixture(t)
	l := sampleListing()

	mock.ExpectQuery("SELECT (.+) FROM listings WHERE id").
		WithArgs(l.ID).
		WillReturnRows(pgxmock.NewRows(listingCols).AddRow(listingValues(l)...))

	got, err := repo.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.Name, got.Name)
	assert.Equal(t, 249.99, got.Price)
	assert.Equal(t, []domain.Option{{Key: "color", Value: "black"}}, got.Options)
	assert.Equal(t, []string{"/images/1-side.jpg"}, got.OtherImages)
}

func TestListingRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newListingFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM listings WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestListingRepository_Update(t *testing.T) {
	repo, mock := newListingFixture(t)
	l := sampleListing()

	mock.ExpectExec("UPDATE listings (.+) IS DISTINCT FROM").
		WithArgs(l.Name, l.Price, l.Category, l.MainImage, l.OtherImages,
			[]byte(`[{"key":"color","value":"black"}]`), pgxmock.AnyArg(), l.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), l))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_Update_NothingDiffers(t *testing.T) {
	repo, mock := newListingFixture(t)
	l := sampleListing()
	before := l.UpdatedAt

	mock.ExpectExec("UPDATE listings").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), l.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), l)
	assert.True(t, errors.Is(err, apperrors.ErrNoChange))
	assert.Equal(t, before, l.UpdatedAt)
}

func TestListingRepository_ListByOwner(t *testing.T) {
	repo, mock := newListingFixture(t)
	l := sampleListing()

	mock.ExpectQuery("SELECT (.+) FROM listings WHERE owner_id").
		WithArgs(l.OwnerID).
		WillReturnRows(pgxmock.NewRows(listingCols).
			AddRow(listingValues(l)...).
			AddRow(listingValues(l)...))

	got, err := repo.ListByOwner(context.Background(), l.OwnerID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListingRepository_ListByOwner_Empty(t *testing.T) {
	repo, mock := newListingFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM listings WHERE owner_id").
		WithArgs("nobody").
		WillReturnRows(pgxmock.NewRows(listingCols))

	got, err := repo.ListByOwner(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListingRepository_List(t *testing.T) {
	repo, mock := newListingFixture(t)
	l := sampleListing()

	mock.ExpectQuery("SELECT (.+) count\\(\\*\\) OVER\\(\\)").
		WithArgs(10, 0).
		WillReturnRows(pgxmock.NewRows(append(listingCols, "total_count")).
			AddRow(append(listingValues(l), 23)...))

	got, total, err := repo.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 23, total)
}

func TestListingRepository_List_PastLastPageStillCounts(t *testing.T) {
	repo, mock := newListingFixture(t)

	mock.ExpectQuery("SELECT (.+) count\\(\\*\\) OVER\\(\\)").
		WithArgs(10, 100).
		WillReturnRows(pgxmock.NewRows(append(listingCols, "total_count")))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM listings").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(23))

	got, total, err := repo.List(context.Background(), 100, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 23, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
