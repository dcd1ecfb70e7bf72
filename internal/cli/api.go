// Package cli implements marketctl, a terminal client that keeps the
// client half of a marketplace session on disk.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/pkg/httpclient"
)

// API calls the marketplace HTTP API.
type API struct {
	baseURL string
	client  *httpclient.CircuitBreakerClient
}

// NewAPI creates an API client for baseURL. A nil transport uses the
// default one.
func NewAPI(baseURL string, transport http.RoundTripper, logger *slog.Logger) *API {
	client := httpclient.New(httpclient.DefaultConfig(), transport)
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.NewCircuitBreakerClient(client, httpclient.DefaultCircuitBreakerConfig("marketplace-api"), logger),
	}
}

// Login exchanges credentials for a session token.
func (a *API) Login(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", fmt.Errorf("encode login request: %w", err)
	}

	req, err := httpclient.NewRequest(ctx, http.MethodPost, a.baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := a.do(ctx, req, &out); err != nil {
		return "", err
	}
	if out.Data.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return out.Data.Token, nil
}

// Session asks the server to verify token and returns its claims.
func (a *API) Session(ctx context.Context, token string) (*auth.Claims, error) {
	req, err := httpclient.NewRequest(ctx, http.MethodGet, a.baseURL+"/api/v1/auth/session", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var out struct {
		Data struct {
			Claims *auth.Claims `json:"claims"`
		} `json:"data"`
	}
	if err := a.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Data.Claims, nil
}

func (a *API) do(ctx context.Context, req *http.Request, dst any) error {
	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return httpclient.ParseResponseError(resp, "marketplace-api")
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
