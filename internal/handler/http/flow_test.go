package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/marketplace/internal/asset"
	assetmemory "github.com/utafrali/marketplace/internal/asset/memory"
	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/mail"
	"github.com/utafrali/marketplace/internal/repository/memory"
	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/internal/session"
	"github.com/utafrali/marketplace/pkg/health"
	"github.com/utafrali/marketplace/pkg/logger"
	"github.com/utafrali/marketplace/pkg/middleware"
)

// marketplace wires the real services over in-memory backends.
type marketplace struct {
	handler http.Handler
	mailer  *mail.LogSender
	store   *assetmemory.Store
}

func newMarketplace(t *testing.T) *marketplace {
	t.Helper()
	l := logger.Discard()
	accounts := memory.NewAccounts()
	listings := memory.NewListings()
	store := assetmemory.New("/images")
	assets := asset.NewReconciler(store, asset.NewValidator(0, nil), "", asset.WithLogger(l))
	mailer := mail.NewLogSender(l)
	codec := auth.NewCodec(testSecret)
	sessions := session.NewController(accounts, codec, 0, l)
	events := event.NewProducer(nil, l)

	return &marketplace{
		handler: NewRouter(RouterConfig{
			Accounts: service.NewAccountService(accounts, assets, mailer, sessions, events, "https://market.test", l,
				service.WithBcryptCost(bcrypt.MinCost)),
			Sessions: sessions,
			Listings: service.NewListingService(listings, accounts, assets, nil, events, l),
			Tokens:   codec,
			Health:   health.NewHandler(),
			CORS:     middleware.CORSConfig{AllowedOrigins: []string{"*"}},
			Limits:   UploadLimits{MaxBody: 1 << 20, MaxFile: 1 << 10},
			Logger:   l,
		}),
		mailer: mailer,
		store:  store,
	}
}

func (m *marketplace) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	m.handler.ServeHTTP(rec, req)
	return rec
}

func (m *marketplace) verificationToken(t *testing.T) string {
	t.Helper()
	sent := m.mailer.Sent()
	require.NotEmpty(t, sent)
	for _, line := range strings.Split(sent[len(sent)-1].Text, "\n") {
		if strings.Contains(line, "/verify-email?") {
			u, err := url.Parse(strings.TrimSpace(line))
			require.NoError(t, err)
			return u.Query().Get("token")
		}
	}
	t.Fatal("no verification link in email")
	return ""
}

func bearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func bobParts() []formPart {
	parts := registerParts(textPart("profileImage", "https://cdn.example.com/bob.png"))
	parts[0] = textPart("username", "bob")
	parts[1] = textPart("email", "bob@example.com")
	return parts
}

// TestMarketplaceFlow walks a seller from sign-up to editing a listing.
func TestMarketplaceFlow(t *testing.T) {
	m := newMarketplace(t)

	// Register
	rec := m.do(multipartRequest(t, http.MethodPost, "/api/v1/auth/register", "",
		registerParts(filePart("profileImage", "me.png", pngBytes))...))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var registered registerResponse
	decodeResponse(t, rec, &registered)
	require.NotNil(t, registered.Account)
	accountID := registered.Account.ID
	assert.False(t, registered.Account.IsActive)
	assert.True(t, m.store.Has(registered.Account.ProfileImage))

	rec = m.do(loginRequest(`{"email":"alice@example.com","password":" pw with spaces "}`))
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACCOUNT_INACTIVE", errorCode(t, rec))

	// Verify
	verify := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token="+m.verificationToken(t), nil)
	rec = m.do(verify)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Login
	rec = m.do(loginRequest(`{"email":"alice@example.com","password":" pw with spaces "}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var loggedIn loginResponse
	decodeResponse(t, rec, &loggedIn)
	token := loggedIn.Token
	require.NotEmpty(t, token)

	rec = m.do(bearer(httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil), token))
	require.Equal(t, http.StatusOK, rec.Code)
	var sess sessionResponse
	decodeResponse(t, rec, &sess)
	assert.Equal(t, accountID, sess.Claims.ID)

	// Create listing
	rec = m.do(multipartRequest(t, http.MethodPost, "/api/v1/listings", token,
		listingParts(accountID,
			filePart("mainImage", "front.png", pngBytes),
			filePart("otherImages", "side.png", pngBytes),
		)...))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created domain.Listing
	decodeResponse(t, rec, &created)
	assert.Equal(t, accountID, created.OwnerID)
	require.Len(t, created.OtherImages, 1)
	assert.True(t, m.store.Has(created.MainImage))
	assert.Equal(t, 3, m.store.Len())

	// Browse
	rec = m.do(httptest.NewRequest(http.MethodGet, "/api/v1/listings?page=1&limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page domain.ListingPage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, 1, page.TotalProducts)
	require.Len(t, page.Products, 1)
	assert.Equal(t, created.ID, page.Products[0].ID)

	rec = m.do(httptest.NewRequest(http.MethodGet, "/api/v1/accounts/"+accountID+"/listings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var owned []domain.Listing
	decodeResponse(t, rec, &owned)
	assert.Len(t, owned, 1)

	// Update keeps images passed back by reference
	update := func() *httptest.ResponseRecorder {
		parts := listingParts(accountID,
			textPart("mainImage", created.MainImage),
			textPart("otherImages", created.OtherImages[0]),
		)
		parts[2] = textPart("price", "199.99")
		return m.do(multipartRequest(t, http.MethodPut, "/api/v1/listings/"+created.ID, token, parts...))
	}
	rec = update()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated domain.Listing
	decodeResponse(t, rec, &updated)
	assert.Equal(t, 199.99, updated.Price)
	assert.Equal(t, created.MainImage, updated.MainImage)
	assert.Equal(t, created.OtherImages, updated.OtherImages)
	assert.Equal(t, 3, m.store.Len())

	rec = update()
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NO_CHANGE", errorCode(t, rec))

	// Profile update returns a refreshed token
	rec = m.do(multipartRequest(t, http.MethodPut, "/api/v1/accounts/"+accountID, token,
		textPart("username", "alice2")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile updateAccountResponse
	decodeResponse(t, rec, &profile)
	assert.Equal(t, "alice2", profile.Account.Username)
	assert.NotEmpty(t, profile.Token)

	// Another seller cannot edit the listing
	rec = m.do(multipartRequest(t, http.MethodPost, "/api/v1/auth/register", "",
		bobParts()...))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = m.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token="+m.verificationToken(t), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = m.do(loginRequest(`{"email":"bob@example.com","password":" pw with spaces "}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bob loginResponse
	decodeResponse(t, rec, &bob)

	rec = m.do(multipartRequest(t, http.MethodPut, "/api/v1/listings/"+created.ID, bob.Token,
		listingParts("", textPart("mainImage", created.MainImage))...))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
