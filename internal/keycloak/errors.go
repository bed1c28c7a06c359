package keycloak

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Sentinel causes carried inside normalized envelopes. Callers detect them
// with errors.Is through the APIError cause chain.
var (
	ErrAdminAuth           = errors.New("admin token request rejected")
	ErrCreateRejected      = errors.New("provider rejected user create")
	ErrCreatedIDNotFound   = errors.New("user created but id not found")
	ErrClientNotFound      = errors.New("client not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// APIError is the uniform error envelope every failed provider operation
// resolves to. Errors optionally carries the original structured failure.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Errors     any    `json:"errors,omitempty"`

	cause error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.cause }

// NewAPIError builds an envelope around a cause.
func NewAPIError(status int, message string, cause error) *APIError {
	return &APIError{StatusCode: status, Message: message, cause: cause}
}

// httpError is a provider-originated HTTP failure: a non-2xx admin API or
// token endpoint response, with the parsed error body when one was present.
type httpError struct {
	status   int
	body     string
	provider *providerError
	cause    error
}

func (e *httpError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.status, e.body)
}

func (e *httpError) Unwrap() error { return e.cause }

// errorMessages translates recognized provider error codes into
// human-readable messages parameterized by the provider's params list.
var errorMessages = map[string]func(params []string) string{
	"error-invalid-value": func(params []string) string {
		if len(params) == 0 {
			return "The value of the field is invalid."
		}
		return fmt.Sprintf("The value of the field %s is invalid.", params[0])
	},
}

// normalize maps any operation failure into a uniform envelope:
//   - an APIError is re-wrapped under the supplied message and status, with
//     the original envelope preserved in Errors;
//   - a provider HTTP failure is translated through the message dictionary,
//     keeping the provider's status (500 when absent);
//   - anything else becomes a generic envelope with the supplied defaults.
//
// The result is never nil and the original error stays reachable via
// errors.Is/errors.As.
func normalize(logger *slog.Logger, message string, status int, err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		wrapped := &APIError{
			StatusCode: status,
			Message:    message,
			Errors:     apiErr,
			cause:      err,
		}
		logger.Error(message,
			slog.Int("status", wrapped.StatusCode),
			slog.String("error", err.Error()),
		)
		return wrapped
	}

	var httpErr *httpError
	if errors.As(err, &httpErr) {
		translated := "Unknown error"
		if p := httpErr.provider; p != nil && p.ErrorMessage != "" {
			if translator, ok := errorMessages[p.ErrorMessage]; ok {
				translated = translator(p.Params)
			} else {
				translated = p.ErrorMessage
			}
		}

		providerStatus := httpErr.status
		if providerStatus == 0 {
			providerStatus = http.StatusInternalServerError
		}

		wrapped := &APIError{
			StatusCode: providerStatus,
			Message:    translated,
			cause:      err,
		}
		logger.Error(message,
			slog.Int("status", wrapped.StatusCode),
			slog.String("provider_error", httpErr.body),
		)
		return wrapped
	}

	// Unmatched error kinds still resolve to an envelope.
	wrapped := &APIError{
		StatusCode: status,
		Message:    message,
		cause:      err,
	}
	logger.Error(message,
		slog.Int("status", wrapped.StatusCode),
		slog.String("error", err.Error()),
	)
	return wrapped
}
