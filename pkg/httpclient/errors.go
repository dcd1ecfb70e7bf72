package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// errorEnvelope mirrors httputil.Response for decoding error bodies.
type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes a non-2xx response body and returns
// the matching AppError. Known error codes map back to their constructors so
// callers can use errors.Is against the sentinels.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", service, resp.StatusCode, err)
	}

	var env errorEnvelope
	if json.Unmarshal(body, &env) != nil || env.Error == nil {
		return fmt.Errorf("%s returned status %d: %s", service, resp.StatusCode, string(body))
	}

	code, msg := env.Error.Code, env.Error.Message
	switch code {
	case "INVALID_CREDENTIALS":
		return apperrors.InvalidCredentials()
	case "ACCOUNT_INACTIVE":
		return apperrors.Inactive()
	case "INVALID_TOKEN":
		return apperrors.InvalidToken(nil)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &apperrors.AppError{Code: code, Message: msg, Status: resp.StatusCode, Err: apperrors.ErrNotFound}
	case http.StatusBadRequest:
		return &apperrors.AppError{Code: code, Message: msg, Status: resp.StatusCode, Err: apperrors.ErrInvalidInput}
	case http.StatusConflict:
		return &apperrors.AppError{Code: code, Message: msg, Status: resp.StatusCode, Err: apperrors.ErrAlreadyExists}
	case http.StatusUnauthorized:
		return apperrors.Unauthorized(msg)
	case http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return &apperrors.AppError{Code: code, Message: msg, Status: resp.StatusCode, Err: apperrors.ErrServiceUnavail}
	default:
		return &apperrors.AppError{Code: code, Message: fmt.Sprintf("%s: %s", service, msg), Status: resp.StatusCode}
	}
}
