package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/service"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/middleware"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accounts AccountService
	listings ListingService
	limits   UploadLimits
	logger   *slog.Logger
}

// NewAccountHandler creates a new account HTTP handler.
func NewAccountHandler(accounts AccountService, listings ListingService, limits UploadLimits, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, listings: listings, limits: limits, logger: logger}
}

type updateAccountResponse struct {
	Message string          `json:"message"`
	Token   string          `json:"token"`
	Account *domain.Account `json:"account"`
}

// GetAccount handles GET /api/v1/accounts/{id}. Callers may only read their
// own account.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.self(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: account})
}

// UpdateAccount handles PUT /api/v1/accounts/{id} (multipart/form-data).
// Only the fields present in the form are changed. The response carries a
// fresh token reflecting the new profile.
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.self(w, r)
	if !ok {
		return
	}

	form, err := readMultipart(w, r, h.limits.MaxBody, h.limits.MaxFile, "profileImage")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	account, token, err := h.accounts.PartialUpdate(r.Context(), id, service.UpdateAccountInput{
		Username:     form.optional("username"),
		Address:      form.optional("address"),
		Phone:        form.optional("phoneNumber"),
		State:        form.optional("selectedState"),
		ZipCode:      form.optional("zipCode"),
		ProfileImage: form.asset("profileImage"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: updateAccountResponse{Message: "Profile updated", Token: token, Account: account},
	})
}

// ListListings handles GET /api/v1/accounts/{id}/listings.
func (h *AccountHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	listings, err := h.listings.ListByOwner(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: listings})
}

// self parses the {id} parameter and checks it names the caller.
func (h *AccountHandler) self(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return "", false
	}
	if middleware.AccountIDFromContext(r.Context()) != id {
		httputil.WriteError(w, r, apperrors.Forbidden("cannot access another account"), h.logger)
		return "", false
	}
	return id, true
}
