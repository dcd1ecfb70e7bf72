package service

import (
	"bytes"
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/marketplace/internal/asset"
	"github.com/utafrali/marketplace/internal/asset/memory"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/pkg/logger"
)

// --- Mock Account Repository ---

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Create(ctx context.Context, a *domain.Account) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *mockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) Update(ctx context.Context, a *domain.Account) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *mockAccountRepository) ActivateByToken(ctx context.Context, token string, now time.Time) (string, error) {
	args := m.Called(ctx, token, now)
	return args.String(0), args.Error(1)
}

// --- Mock Listing Repository ---

type mockListingRepository struct {
	mock.Mock
}

func (m *mockListingRepository) Create(ctx context.Context, l *domain.Listing) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *mockListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *mockListingRepository) Update(ctx context.Context, l *domain.Listing) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *mockListingRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Listing), args.Error(1)
}

func (m *mockListingRepository) List(ctx context.Context, offset, limit int) ([]domain.Listing, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Listing), args.Int(1), args.Error(2)
}

// --- Mock Listing Page Cache ---

type mockPageCache struct {
	mock.Mock
}

func (m *mockPageCache) Get(ctx context.Context, page, limit int) (*domain.ListingPage, error) {
	args := m.Called(ctx, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ListingPage), args.Error(1)
}

func (m *mockPageCache) Set(ctx context.Context, page, limit int, p *domain.ListingPage) error {
	args := m.Called(ctx, page, limit, p)
	return args.Error(0)
}

func (m *mockPageCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- Helpers ---

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func pngOf(size int) []byte {
	sig := []byte("\x89PNG\r\n\x1a\n")
	return append(sig, bytes.Repeat([]byte{0}, size-len(sig))...)
}

func freshPNG(name string) *domain.AssetInput {
	return domain.FreshAsset(pngOf(256), name, "image/png")
}

func newTestAssets() (*asset.Reconciler, *memory.Store) {
	store := memory.New("/images")
	r := asset.NewReconciler(store, asset.NewValidator(0, nil), "",
		asset.WithClock(func() time.Time { return testNow }),
		asset.WithLogger(logger.Discard()),
	)
	return r, store
}

func noEvents() *event.Producer {
	return event.NewProducer(nil, logger.Discard())
}

func strPtr(s string) *string { return &s }
