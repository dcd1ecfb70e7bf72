package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/service"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// ListingService is the listing registry used by the HTTP layer.
type ListingService interface {
	Create(ctx context.Context, input service.ListingInput) (*domain.Listing, error)
	Update(ctx context.Context, id string, input service.ListingInput) (*domain.Listing, error)
	Get(ctx context.Context, id string) (*domain.Listing, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error)
	List(ctx context.Context, page, limit int) (*domain.ListingPage, error)
}

// ListingHandler handles HTTP requests for listing endpoints.
type ListingHandler struct {
	service ListingService
	limits  UploadLimits
	logger  *slog.Logger
}

// NewListingHandler creates a new listing HTTP handler.
func NewListingHandler(svc ListingService, limits UploadLimits, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{service: svc, limits: limits, logger: logger}
}

// CreateListing handles POST /api/v1/listings (multipart/form-data).
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	input, err := h.readListing(w, r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	caller := middleware.AccountIDFromContext(r.Context())
	if input.OwnerID != "" && input.OwnerID != caller {
		httputil.WriteError(w, r, apperrors.Forbidden("cannot create listings for another account"), h.logger)
		return
	}

	listing, err := h.service.Create(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: listing})
}

// UpdateListing handles PUT /api/v1/listings/{id} (multipart/form-data).
// Images are replaced only when new ones are sent.
func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	input, err := h.readListing(w, r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	caller := middleware.AccountIDFromContext(r.Context())
	if input.OwnerID != "" && input.OwnerID != caller {
		httputil.WriteError(w, r, apperrors.Forbidden("cannot move a listing to another account"), h.logger)
		return
	}
	input.OwnerID = caller

	listing, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: listing})
}

// GetListing handles GET /api/v1/listings/{id}.
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	listing, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: listing})
}

// ListListings handles GET /api/v1/listings?page=&limit=. The page is written
// without the data envelope.
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	page, err := h.service.List(r.Context(), params.Page, params.Limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *ListingHandler) readListing(w http.ResponseWriter, r *http.Request) (service.ListingInput, error) {
	form, err := readMultipart(w, r, h.limits.MaxBody, h.limits.MaxFile, "mainImage", "otherImages")
	if err != nil {
		return service.ListingInput{}, err
	}

	var price float64
	if raw := form.value("price"); raw != "" {
		price, err = strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
			return service.ListingInput{}, apperrors.InvalidInput("price must be a number")
		}
		if price > domain.MaxPrice {
			return service.ListingInput{}, apperrors.InvalidInput("price must not exceed 9999999999.99")
		}
	}

	var options []domain.Option
	if raw := form.value("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &options); err != nil {
			return service.ListingInput{}, apperrors.InvalidInput("options must be a JSON array of {key, value} objects")
		}
	}

	return service.ListingInput{
		OwnerID:     form.value("userId"),
		Name:        form.value("name"),
		Price:       price,
		Category:    form.value("category"),
		MainImage:   form.asset("mainImage"),
		OtherImages: form.assetList("otherImages"),
		Options:     options,
	}, nil
}
