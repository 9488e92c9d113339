package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind categorizes a transport failure. The retry wrapper and the
// orchestrator branch on it rather than on error strings.
type ErrorKind string

const (
	// KindNetwork indicates a connection-level failure or a 5xx from the
	// provider.
	KindNetwork ErrorKind = "API_NETWORK_ERROR"

	// KindTimeout indicates the request deadline elapsed.
	KindTimeout ErrorKind = "API_TIMEOUT"

	// KindAborted indicates the caller canceled the request. Never retried.
	KindAborted ErrorKind = "API_ABORTED"

	// KindRateLimit indicates HTTP 429. Retryable unless the provider
	// reports exhausted quota.
	KindRateLimit ErrorKind = "API_RATE_LIMIT"

	// KindAuth indicates rejected credentials (HTTP 401, 403).
	KindAuth ErrorKind = "API_AUTH_FAILED"

	// KindEmpty indicates the provider returned no content at all.
	KindEmpty ErrorKind = "API_EMPTY_RESPONSE"

	// KindBlank indicates content was returned but is whitespace-only.
	KindBlank ErrorKind = "API_BLANK_CONTENT"

	// KindMalformed indicates a response body that could not be decoded.
	KindMalformed ErrorKind = "API_MALFORMED_RESPONSE"
)

// APIError is a structured transport error. It captures the classification,
// the provider that produced it, and whatever protocol detail was available.
type APIError struct {
	Kind     ErrorKind
	Provider string

	// Status is the HTTP status code, if one was observed.
	Status int

	// Code is the provider-specific error code (e.g. "insufficient_quota").
	Code string

	Message string
	Cause   error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))

	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// NewAPIError creates an APIError with the given kind and provider. The
// cause's text becomes the message when one is supplied.
func NewAPIError(kind ErrorKind, provider string, cause error) *APIError {
	e := &APIError{Kind: kind, Provider: provider, Cause: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

// WithStatus records the HTTP status and reclassifies the kind when the
// status implies a more specific one.
func (e *APIError) WithStatus(status int) *APIError {
	e.Status = status
	if kind := kindForStatus(status); kind != "" {
		e.Kind = kind
	}
	return e
}

// WithCode records the provider-specific error code.
func (e *APIError) WithCode(code string) *APIError {
	e.Code = code
	return e
}

// WithMessage replaces the human-readable message.
func (e *APIError) WithMessage(msg string) *APIError {
	e.Message = msg
	return e
}

// AsAPIError extracts an APIError from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Classify wraps an arbitrary transport error into an APIError. Errors that
// already carry a classification pass through unchanged.
func Classify(provider string, err error) *APIError {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr
	}
	if errors.Is(err, context.Canceled) {
		return NewAPIError(KindAborted, provider, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewAPIError(KindTimeout, provider, err)
	}
	return NewAPIError(classifyText(err.Error()), provider, err)
}

// classifyText maps raw error text onto a kind. Connection-level failures
// and anything unrecognized land on KindNetwork, which is retryable.
func classifyText(msg string) ErrorKind {
	msg = strings.ToLower(msg)

	if strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "etimedout") {
		return KindTimeout
	}

	if strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests") {
		return KindRateLimit
	}

	if strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "invalid_api_key") ||
		strings.Contains(msg, "authentication") {
		return KindAuth
	}

	return KindNetwork
}

// kindForStatus maps an HTTP status onto a kind, or "" when the status is
// not conclusive on its own.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindNetwork
	default:
		return ""
	}
}

// IsRetryable reports whether retrying the request may succeed. Cancellation,
// auth failures, malformed responses and exhausted quota never qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	apiErr, ok := AsAPIError(err)
	if !ok {
		return IsRetryable(Classify("", err))
	}

	switch apiErr.Kind {
	case KindNetwork, KindTimeout, KindEmpty, KindBlank:
		return true
	case KindRateLimit:
		return !quotaExhausted(apiErr)
	case KindAborted, KindAuth, KindMalformed:
		return false
	}
	return apiErr.Status >= 500
}

// quotaExhausted distinguishes a hard quota 429 (retrying is pointless) from
// a concurrency 429 (backing off helps).
func quotaExhausted(e *APIError) bool {
	if strings.EqualFold(e.Code, "insufficient_quota") {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "quota")
}
