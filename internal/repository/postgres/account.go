package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const accountColumns = `id, email, username, password_hash, address, state, zip_code, phone, profile_image,
		is_active, verification_token, verification_token_expires_at, created_at, updated_at`

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db database.DBTX
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(db database.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account. A duplicate email maps to AlreadyExists.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (err error) {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	ctx, end := database.TraceQuery(ctx, "accounts", "insert", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		a.ID,
		a.Email,
		a.Username,
		a.PasswordHash,
		a.Address,
		a.State,
		a.ZipCode,
		a.Phone,
		a.ProfileImage,
		a.IsActive,
		a.VerificationToken,
		a.VerificationTokenExpiresAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("account", "email", a.Email)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	a, err := r.scanAccount(ctx, "select_by_id", query, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("account", id)
	}
	return a, err
}

// GetByEmail retrieves an account by its email address.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	a, err := r.scanAccount(ctx, "select_by_email", query, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("account", email)
	}
	return a, err
}

// Update writes the profile fields of a.
func (r *AccountRepository) Update(ctx context.Context, a *domain.Account) (err error) {
	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE accounts
		SET username = $1, address = $2, state = $3, zip_code = $4, phone = $5,
		    profile_image = $6, updated_at = $7
		WHERE id = $8`

	ctx, end := database.TraceQuery(ctx, "accounts", "update", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		a.Username,
		a.Address,
		a.State,
		a.ZipCode,
		a.Phone,
		a.ProfileImage,
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", a.ID)
	}
	return nil
}

// ActivateByToken flips is_active for the account holding an unexpired
// verification token and clears the token.
func (r *AccountRepository) ActivateByToken(ctx context.Context, token string, now time.Time) (id string, err error) {
	query := `
		UPDATE accounts
		SET is_active = TRUE, verification_token = NULL, verification_token_expires_at = NULL, updated_at = $2
		WHERE verification_token = $1 AND verification_token_expires_at > $2
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "accounts", "activate", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query, token, now.UTC()).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound("verification token", "provided")
		}
		return "", fmt.Errorf("activate account: %w", err)
	}
	return id, nil
}

func (r *AccountRepository) scanAccount(ctx context.Context, operation, query string, args ...any) (_ *domain.Account, err error) {
	ctx, end := database.TraceQuery(ctx, "accounts", operation, query)
	defer func() {
		if errors.Is(err, pgx.ErrNoRows) {
			end(nil)
			return
		}
		end(err)
	}()

	var a domain.Account
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Email,
		&a.Username,
		&a.PasswordHash,
		&a.Address,
		&a.State,
		&a.ZipCode,
		&a.Phone,
		&a.ProfileImage,
		&a.IsActive,
		&a.VerificationToken,
		&a.VerificationTokenExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}
