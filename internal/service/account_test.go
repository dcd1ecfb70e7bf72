package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/marketplace/internal/asset"
	"github.com/utafrali/marketplace/internal/asset/memory"
	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/mail"
	"github.com/utafrali/marketplace/internal/session"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/logger"
	"github.com/utafrali/marketplace/pkg/validator"
)

const testSecret = "service-test-secret-0123456789abcdef"

type failingMailer struct{}

func (failingMailer) Name() string { return "failing" }
func (failingMailer) Send(context.Context, *mail.Message) error {
	return errors.New("smtp: 550 mailbox unavailable")
}

type accountFixture struct {
	repo   *mockAccountRepository
	store  *memory.Store
	mailer *mail.LogSender
	codec  *auth.Codec
	svc    *AccountService
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	repo := new(mockAccountRepository)
	assets, store := newTestAssets()
	mailer := mail.NewLogSender(logger.Discard())
	codec := auth.NewCodec(testSecret)
	sessions := session.NewController(repo, codec, 0, logger.Discard())

	svc := NewAccountService(repo, assets, mailer, sessions, noEvents(), "http://localhost:3000", logger.Discard(),
		WithBcryptCost(bcrypt.MinCost),
		WithClock(func() time.Time { return testNow }),
	)
	return &accountFixture{repo: repo, store: store, mailer: mailer, codec: codec, svc: svc}
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Username:     "ada",
		Email:        "ada@example.com",
		Password:     "correct horse",
		Address:      "1 Main St",
		Phone:        "+15550100",
		State:        "CA",
		ZipCode:      "94000",
		ProfileImage: freshPNG("me.png"),
	}
}

func TestRegister_Success(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.repo.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, apperrors.NotFound("account", "ada@example.com"))
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.Account) bool {
		return !a.IsActive &&
			a.VerificationToken != nil && len(*a.VerificationToken) == 64 &&
			a.VerificationTokenExpiresAt != nil && a.VerificationTokenExpiresAt.Equal(testNow.Add(time.Hour)) &&
			a.PasswordHash != "correct horse"
	})).Return(nil)

	account, err := f.svc.Register(ctx, validRegisterInput())
	require.NoError(t, err)

	assert.False(t, account.IsActive)
	assert.Equal(t, "/images/1741944413000-me.png", account.ProfileImage)
	assert.True(t, f.store.Has(account.ProfileImage))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("correct horse")))

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ada@example.com", sent[0].To)
	assert.Contains(t, sent[0].Text, "http://localhost:3000/verify-email?token="+*account.VerificationToken)
	f.repo.AssertExpectations(t)
}

func TestRegister_DuplicateEmailStoresNoImage(t *testing.T) {
	f := newAccountFixture(t)

	f.repo.On("GetByEmail", mock.Anything, "ada@example.com").Return(&domain.Account{ID: "existing"}, nil)

	_, err := f.svc.Register(context.Background(), validRegisterInput())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
	assert.Equal(t, 409, apperrors.HTTPStatus(err))
	assert.Zero(t, f.store.Writes())
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_MissingFields(t *testing.T) {
	f := newAccountFixture(t)
	input := validRegisterInput()
	input.Username = ""
	input.Email = "not-an-email"
	input.ProfileImage = nil

	_, err := f.svc.Register(context.Background(), input)

	var valErr *validator.ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "profileImage")
	f.repo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestRegister_OversizedImageWritesNothing(t *testing.T) {
	f := newAccountFixture(t)
	input := validRegisterInput()
	input.ProfileImage = domain.FreshAsset(pngOf(6<<20), "huge.png", "image/png")

	_, err := f.svc.Register(context.Background(), input)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidAsset))
	assert.Zero(t, f.store.Writes())
	f.repo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_ReferenceImageIsNotStored(t *testing.T) {
	f := newAccountFixture(t)
	input := validRegisterInput()
	input.ProfileImage = domain.ReferenceAsset(asset.DefaultPlaceholder)

	f.repo.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, apperrors.NotFound("account", "x"))
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	account, err := f.svc.Register(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, asset.DefaultPlaceholder, account.ProfileImage)
	assert.Zero(t, f.store.Writes())
}

func TestRegister_MailFailureIsInternalButAccountPersists(t *testing.T) {
	f := newAccountFixture(t)
	f.svc.mailer = failingMailer{}

	f.repo.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, apperrors.NotFound("account", "x"))
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Register(context.Background(), validRegisterInput())
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
	f.repo.AssertCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_LookupFailure(t *testing.T) {
	f := newAccountFixture(t)
	f.repo.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := f.svc.Register(context.Background(), validRegisterInput())
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
	assert.Zero(t, f.store.Writes())
}

func TestActivate(t *testing.T) {
	f := newAccountFixture(t)
	f.repo.On("ActivateByToken", mock.Anything, "tok", testNow).Return("acc-1", nil)

	require.NoError(t, f.svc.Activate(context.Background(), "tok"))
	f.repo.AssertExpectations(t)
}

func TestActivate_UnknownOrExpiredToken(t *testing.T) {
	f := newAccountFixture(t)
	f.repo.On("ActivateByToken", mock.Anything, "stale", testNow).
		Return("", apperrors.NotFound("verification token", "provided"))

	err := f.svc.Activate(context.Background(), "stale")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestActivate_EmptyToken(t *testing.T) {
	f := newAccountFixture(t)
	err := f.svc.Activate(context.Background(), "  ")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	f.repo.AssertNotCalled(t, "ActivateByToken", mock.Anything, mock.Anything, mock.Anything)
}

func storedAccount() *domain.Account {
	return &domain.Account{
		ID:           "acc-1",
		Email:        "ada@example.com",
		Username:     "ada",
		Address:      "1 Main St",
		Phone:        "+15550100",
		State:        "CA",
		ZipCode:      "94000",
		ProfileImage: asset.DefaultPlaceholder,
		IsActive:     true,
	}
}

func TestPartialUpdate_MergesOnlySuppliedFields(t *testing.T) {
	f := newAccountFixture(t)
	account := storedAccount()
	f.repo.On("GetByID", mock.Anything, "acc-1").Return(account, nil)
	f.repo.On("Update", mock.Anything, account).Return(nil)

	updated, token, err := f.svc.PartialUpdate(context.Background(), "acc-1", UpdateAccountInput{
		Username: strPtr("ada.l"),
		Address:  strPtr(""),
		ZipCode:  strPtr("  "),
	})
	require.NoError(t, err)

	assert.Equal(t, "ada.l", updated.Username)
	assert.Equal(t, "1 Main St", updated.Address)
	assert.Equal(t, "94000", updated.ZipCode)
	assert.Equal(t, "+15550100", updated.Phone)
	assert.Equal(t, asset.DefaultPlaceholder, updated.ProfileImage)

	claims, err := f.codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "ada.l", claims.Username)
	assert.Equal(t, "acc-1", claims.ID)
}

func TestPartialUpdate_ReplacingImageTwiceDeletesBothPredecessors(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := storedAccount()
	f.repo.On("GetByID", mock.Anything, "acc-1").Return(account, nil)
	f.repo.On("Update", mock.Anything, account).Return(nil)

	first, _, err := f.svc.PartialUpdate(ctx, "acc-1", UpdateAccountInput{ProfileImage: freshPNG("one.png")})
	require.NoError(t, err)
	firstRef := first.ProfileImage
	assert.Zero(t, f.store.Deletes(), "placeholder is never deleted")

	second, _, err := f.svc.PartialUpdate(ctx, "acc-1", UpdateAccountInput{ProfileImage: freshPNG("two.png")})
	require.NoError(t, err)
	secondRef := second.ProfileImage
	assert.False(t, f.store.Has(firstRef))

	third, _, err := f.svc.PartialUpdate(ctx, "acc-1", UpdateAccountInput{ProfileImage: freshPNG("three.png")})
	require.NoError(t, err)
	assert.False(t, f.store.Has(secondRef))
	assert.True(t, f.store.Has(third.ProfileImage))
	assert.Equal(t, 2, f.store.Deletes())
	assert.Equal(t, 1, f.store.Len())
}

func TestPartialUpdate_InvalidImageLeavesAccountUntouched(t *testing.T) {
	f := newAccountFixture(t)
	account := storedAccount()
	f.repo.On("GetByID", mock.Anything, "acc-1").Return(account, nil)

	_, _, err := f.svc.PartialUpdate(context.Background(), "acc-1", UpdateAccountInput{
		Username:     strPtr("changed"),
		ProfileImage: domain.FreshAsset([]byte("GIF89a not allowed"), "x.gif", "image/gif"),
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidAsset))
	assert.Equal(t, "ada", account.Username)
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestPartialUpdate_NotFound(t *testing.T) {
	f := newAccountFixture(t)
	f.repo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NotFound("account", "missing"))

	_, _, err := f.svc.PartialUpdate(context.Background(), "missing", UpdateAccountInput{Username: strPtr("x")})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestPartialUpdate_PersistFailureKeepsOldImage(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	old, err := f.store.Put(ctx, "old.png", "image/png", pngOf(64))
	require.NoError(t, err)

	account := storedAccount()
	account.ProfileImage = old
	f.repo.On("GetByID", mock.Anything, "acc-1").Return(account, nil)
	f.repo.On("Update", mock.Anything, account).Return(errors.New("deadlock detected"))

	_, _, err = f.svc.PartialUpdate(ctx, "acc-1", UpdateAccountInput{ProfileImage: freshPNG("new.png")})
	require.Error(t, err)
	assert.True(t, f.store.Has(old), "superseded image is only deleted after a successful write")
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "24 hours", humanDuration(24*time.Hour))
	assert.Equal(t, "30 minutes", humanDuration(30*time.Minute))
	assert.True(t, strings.HasSuffix(humanDuration(1500*time.Millisecond), "s"))
}
