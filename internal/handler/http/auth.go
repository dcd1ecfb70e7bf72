package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/service"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/validator"
)

// AccountService is the account registry used by the HTTP layer.
type AccountService interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.Account, error)
	Activate(ctx context.Context, token string) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	PartialUpdate(ctx context.Context, id string, input service.UpdateAccountInput) (*domain.Account, string, error)
}

// SessionIssuer exchanges credentials for a session token.
type SessionIssuer interface {
	Login(ctx context.Context, email, password string) (string, *domain.Account, error)
}

// ClaimsDecoder verifies a token and returns its claims.
type ClaimsDecoder interface {
	Decode(token string) (*auth.Claims, error)
}

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	accounts AccountService
	sessions SessionIssuer
	decoder  ClaimsDecoder
	limits   UploadLimits
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(accounts AccountService, sessions SessionIssuer, decoder ClaimsDecoder, limits UploadLimits, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		decoder:  decoder,
		limits:   limits,
		logger:   logger,
	}
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerResponse struct {
	Message string          `json:"message"`
	Account *domain.Account `json:"account"`
}

type loginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type sessionResponse struct {
	Claims *auth.Claims `json:"claims"`
}

// Register handles POST /api/v1/auth/register (multipart/form-data).
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	form, err := readMultipart(w, r, h.limits.MaxBody, h.limits.MaxFile, "profileImage")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	account, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Username:     form.value("username"),
		Email:        form.value("email"),
		Password:     form.values["password"],
		Address:      form.value("address"),
		Phone:        form.value("phoneNumber"),
		State:        form.value("selectedState"),
		ZipCode:      form.value("zipCode"),
		ProfileImage: form.asset("profileImage"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: registerResponse{
			Message: "Registration successful. Check your email to verify your account.",
			Account: account,
		},
	})
}

// VerifyEmail handles GET /api/v1/auth/verify-email?token=
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Activate(r.Context(), r.URL.Query().Get("token")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: httputil.MessageResponse{Message: "Email verified successfully"},
	})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	token, _, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: loginResponse{Message: "Login successful", Token: token},
	})
}

// Session handles GET /api/v1/auth/session and echoes the caller's claims.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}
	claims, err := h.decoder.Decode(p.Token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sessionResponse{Claims: claims}})
}
