package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/marketplace/internal/asset"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/mail"
	"github.com/utafrali/marketplace/internal/repository"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/validator"
)

const (
	// DefaultBcryptCost is the cost factor for password hashes.
	DefaultBcryptCost = 12
	// DefaultVerificationTTL is how long an emailed activation link works.
	DefaultVerificationTTL = time.Hour

	verificationTokenBytes = 32
)

// TokenMinter issues a session token for an account.
type TokenMinter interface {
	Mint(account *domain.Account) (string, error)
}

// AccountService implements account registration, activation and profile
// updates.
type AccountService struct {
	repo     repository.AccountRepository
	assets   *asset.Reconciler
	mailer   mail.Sender
	sessions TokenMinter
	producer *event.Producer
	logger   *slog.Logger

	baseURL         string
	bcryptCost      int
	verificationTTL time.Duration
	now             func() time.Time
	newToken        func() (string, error)
}

// AccountOption configures an AccountService.
type AccountOption func(*AccountService)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) AccountOption {
	return func(s *AccountService) { s.bcryptCost = cost }
}

// WithVerificationTTL overrides the activation link lifetime.
func WithVerificationTTL(ttl time.Duration) AccountOption {
	return func(s *AccountService) {
		if ttl > 0 {
			s.verificationTTL = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) AccountOption {
	return func(s *AccountService) { s.now = now }
}

// NewAccountService creates a new account service. baseURL is the public
// origin used in activation links.
func NewAccountService(
	repo repository.AccountRepository,
	assets *asset.Reconciler,
	mailer mail.Sender,
	sessions TokenMinter,
	producer *event.Producer,
	baseURL string,
	logger *slog.Logger,
	opts ...AccountOption,
) *AccountService {
	s := &AccountService{
		repo:            repo,
		assets:          assets,
		mailer:          mailer,
		sessions:        sessions,
		producer:        producer,
		logger:          logger,
		baseURL:         baseURL,
		bcryptCost:      DefaultBcryptCost,
		verificationTTL: DefaultVerificationTTL,
		now:             time.Now,
		newToken:        randomToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput holds the fields submitted on sign-up.
type RegisterInput struct {
	Username     string             `json:"username" validate:"required"`
	Email        string             `json:"email" validate:"required,email"`
	Password     string             `json:"password" validate:"required"`
	Address      string             `json:"address" validate:"required"`
	Phone        string             `json:"phoneNumber" validate:"required"`
	State        string             `json:"selectedState" validate:"required"`
	ZipCode      string             `json:"zipCode" validate:"required"`
	ProfileImage *domain.AssetInput `json:"profileImage" validate:"required"`
}

// UpdateAccountInput holds a partial profile update. Nil or empty fields
// keep their stored value.
type UpdateAccountInput struct {
	Username     *string
	Address      *string
	Phone        *string
	State        *string
	ZipCode      *string
	ProfileImage *domain.AssetInput
}

// Register creates an inactive account, stores its profile image and mails
// an activation link.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if err := s.assets.Validate(input.ProfileImage); err != nil {
		return nil, err
	}
	if err := s.assets.CheckReferences(nil, input.ProfileImage); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.AlreadyExists("account", "email", input.Email)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	image, err := s.assets.Single(ctx, "", input.ProfileImage)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	token, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	now := s.now().UTC()
	expires := now.Add(s.verificationTTL)
	account := &domain.Account{
		ID:                         uuid.New().String(),
		Email:                      input.Email,
		Username:                   input.Username,
		PasswordHash:               string(hash),
		Address:                    input.Address,
		State:                      input.State,
		ZipCode:                    input.ZipCode,
		Phone:                      input.Phone,
		ProfileImage:               image.Ref,
		IsActive:                   false,
		VerificationToken:          &token,
		VerificationTokenExpiresAt: &expires,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	if err := s.sendVerification(ctx, account, token); err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.producer.PublishAccountRegistered(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.registered event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID),
		slog.String("email", account.Email),
	)
	return account, nil
}

// Activate consumes an unexpired verification token.
func (s *AccountService) Activate(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.InvalidInput("verification token is required")
	}

	id, err := s.repo.ActivateByToken(ctx, token, s.now().UTC())
	if err != nil {
		return fmt.Errorf("activate account: %w", err)
	}

	if err := s.producer.PublishAccountActivated(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.activated event",
			slog.String("account_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account activated", slog.String("account_id", id))
	return nil
}

// GetAccount returns an account by id.
func (s *AccountService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// PartialUpdate merges the supplied fields into the account, replaces the
// profile image if one was sent and returns a token carrying the new
// profile.
func (s *AccountService) PartialUpdate(ctx context.Context, id string, input UpdateAccountInput) (*domain.Account, string, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get account: %w", err)
	}

	if err := s.assets.Validate(input.ProfileImage); err != nil {
		return nil, "", err
	}

	image, err := s.assets.Single(ctx, account.ProfileImage, input.ProfileImage)
	if err != nil {
		return nil, "", err
	}

	merge(&account.Username, input.Username)
	merge(&account.Address, input.Address)
	merge(&account.Phone, input.Phone)
	merge(&account.State, input.State)
	merge(&account.ZipCode, input.ZipCode)
	account.ProfileImage = image.Ref

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, "", fmt.Errorf("update account: %w", err)
	}

	s.assets.Purge(ctx, image.Orphans)

	token, err := s.sessions.Mint(account)
	if err != nil {
		return nil, "", err
	}

	if err := s.producer.PublishAccountUpdated(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.updated event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account updated",
		slog.String("account_id", account.ID),
		slog.Bool("image_changed", image.Changed),
	)
	return account, token, nil
}

func (s *AccountService) sendVerification(ctx context.Context, account *domain.Account, token string) error {
	link := mail.VerificationLink(s.baseURL, token)
	msg, err := mail.VerificationMessage(account.Email, account.Username, link, humanDuration(s.verificationTTL))
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email",
			slog.String("account_id", account.ID),
			slog.String("mailer", s.mailer.Name()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

// merge overwrites dst when v carries a non-blank value.
func merge(dst *string, v *string) {
	if v == nil {
		return
	}
	if trimmed := strings.TrimSpace(*v); trimmed != "" {
		*dst = trimmed
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}

func randomToken() (string, error) {
	b := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
