package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

func newAccountFixture(t *testing.T) (*AccountRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewAccountRepository(mock), mock
}

func sampleAccount() *domain.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	token := "abc123"
	expires := now.Add(time.Hour)
	return &domain.Account{
		ID:                         "7d0f6c1e-3a53-4c1f-9d7e-0c6b8e0f6a11",
		Email:                      "ada@example.com",
		Username:                   "ada",
		PasswordHash:               "$2a$12$hash",
		Address:                    "1 Main St",
		State:                      "CA",
		ZipCode:                    "94000",
		Phone:                      "+15550100",
		ProfileImage:               "/images/1-ada.png",
		IsActive:                   false,
		VerificationToken:          &token,
		VerificationTokenExpiresAt: &expires,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
}

func accountRow(a *domain.Account) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "email", "username", "password_hash", "address", "state", "zip_code", "phone",
		"profile_image", "is_active", "verification_token", "verification_token_expires_at",
		"created_at", "updated_at",
	}).AddRow(
		a.ID, a.Email, a.Username, a.PasswordHash, a.Address, a.State, a.ZipCode, a.Phone,
		a.ProfileImage, a.IsActive, a.VerificationToken, a.VerificationTokenExpiresAt,
		a.CreatedAt, a.UpdatedAt,
	)
}

func TestAccountRepository_Create(t *testing.T) {
	repo, mock := newAccountFixture(t)
	a := sampleAccount()

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(
			a.ID, a.Email, a.Username, a.PasswordHash, a.Address, a.State, a.ZipCode, a.Phone,
			a.ProfileImage, a.IsActive, a.VerificationToken, a.VerificationTokenExpiresAt,
			a.CreatedAt, a.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newAccountFixture(t)
	a := sampleAccount()

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	err := repo.Create(context.Background(), a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
	assert.Equal(t, 409, apperrors.HTTPStatus(err))
}

func TestAccountRepository_GetByEmail(t *testing.T) {
	repo, mock := newAccountFixture(t)
	a := sampleAccount()

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email").
		WithArgs(a.Email).
		WillReturnRows(accountRow(a))

	got, err := repo.GetByEmail(context.Background(), a.Email)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.PasswordHash, got.PasswordHash)
	require.NotNil(t, got.VerificationToken)
	assert.Equal(t, "abc123", *got.VerificationToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newAccountFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAccountRepository_GetByID_DatabaseError(t *testing.T) {
	repo, mock := newAccountFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id").
		WithArgs("x").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAccountRepository_Update(t *testing.T) {
	repo, mock := newAccountFixture(t)
	a := sampleAccount()

	mock.ExpectExec("UPDATE accounts").
		WithArgs(a.Username, a.Address, a.State, a.ZipCode, a.Phone, a.ProfileImage, pgxmock.AnyArg(), a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Update_NotFound(t *testing.T) {
	repo, mock := newAccountFixture(t)
	a := sampleAccount()

	mock.ExpectExec("UPDATE accounts").
		WithArgs(a.Username, a.Address, a.State, a.ZipCode, a.Phone, a.ProfileImage, pgxmock.AnyArg(), a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.True(t, errors.Is(repo.Update(context.Background(), a), apperrors.ErrNotFound))
}

func TestAccountRepository_ActivateByToken(t *testing.T) {
	repo, mock := newAccountFixture(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE accounts (.+) WHERE verification_token = \\$1 AND verification_token_expires_at > \\$2").
		WithArgs("tok", now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("acc-1"))

	id, err := repo.ActivateByToken(context.Background(), "tok", now)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_ActivateByToken_UnknownOrExpired(t *testing.T) {
	repo, mock := newAccountFixture(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE accounts").
		WithArgs("stale", now).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.ActivateByToken(context.Background(), "stale", now)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
