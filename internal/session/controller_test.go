package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const testSecret = "session-test-secret-0123456789abcdef"

type mockAccountFinder struct {
	mock.Mock
}

func (m *mockAccountFinder) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestLogin_Success(t *testing.T) {
	finder := new(mockAccountFinder)
	codec := auth.NewCodec(testSecret)
	ctrl := NewController(finder, codec, 0, newTestLogger())

	account := &domain.Account{ID: "acc-1", Email: "ada@example.com", Username: "ada", IsActive: true, PasswordHash: hashed(t, "s3cret")}
	finder.On("GetByEmail", mock.Anything, "ada@example.com").Return(account, nil)

	token, got, err := ctrl.Login(context.Background(), "ada@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, account, got)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.ID)
	assert.Equal(t, "ada", claims.Username)
	assert.Equal(t, DefaultTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestLogin_UnknownEmailAndWrongPasswordLookTheSame(t *testing.T) {
	finder := new(mockAccountFinder)
	ctrl := NewController(finder, auth.NewCodec(testSecret), time.Hour, newTestLogger())

	finder.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, apperrors.NotFound("account", "ghost@example.com"))
	finder.On("GetByEmail", mock.Anything, "ada@example.com").
		Return(&domain.Account{ID: "acc-1", IsActive: true, PasswordHash: hashed(t, "right")}, nil)

	_, _, errUnknown := ctrl.Login(context.Background(), "ghost@example.com", "x")
	_, _, errWrong := ctrl.Login(context.Background(), "ada@example.com", "wrong")

	require.Error(t, errUnknown)
	require.Error(t, errWrong)
	assert.True(t, errors.Is(errUnknown, apperrors.ErrInvalidCredentials))
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLogin_InactiveAccount(t *testing.T) {
	finder := new(mockAccountFinder)
	ctrl := NewController(finder, auth.NewCodec(testSecret), time.Hour, newTestLogger())

	finder.On("GetByEmail", mock.Anything, "new@example.com").
		Return(&domain.Account{ID: "acc-2", IsActive: false, PasswordHash: hashed(t, "pw")}, nil)

	_, _, err := ctrl.Login(context.Background(), "new@example.com", "pw")
	assert.True(t, errors.Is(err, apperrors.ErrInactive))
	assert.Equal(t, 403, apperrors.HTTPStatus(err))
}

func TestLogin_RepositoryFailure(t *testing.T) {
	finder := new(mockAccountFinder)
	ctrl := NewController(finder, auth.NewCodec(testSecret), time.Hour, newTestLogger())

	finder.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, errors.New("connection reset"))

	_, _, err := ctrl.Login(context.Background(), "ada@example.com", "pw")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrInvalidCredentials))
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
}

func TestLogin_EmptySecretIsConfigError(t *testing.T) {
	finder := new(mockAccountFinder)
	ctrl := NewController(finder, auth.NewCodec(""), time.Hour, newTestLogger())

	finder.On("GetByEmail", mock.Anything, "ada@example.com").
		Return(&domain.Account{ID: "acc-1", IsActive: true, PasswordHash: hashed(t, "pw")}, nil)

	_, _, err := ctrl.Login(context.Background(), "ada@example.com", "pw")
	assert.True(t, errors.Is(err, apperrors.ErrConfig))
}
