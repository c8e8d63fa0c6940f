package errors

import (
	"fmt"
	"strings"
)

// ErrorType classifies failures from the enrichment engine and its providers
type ErrorType string

const (
	// ErrTypeAuth represents token issuance or refresh failures
	ErrTypeAuth ErrorType = "auth"
	// ErrTypeUpstream represents provider 5xx and network failures
	ErrTypeUpstream ErrorType = "upstream"
	// ErrTypeRateLimit represents provider 429 responses
	ErrTypeRateLimit ErrorType = "rate_limit"
	// ErrTypeNotFound represents a search that matched no parcel
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeMultiMatch represents an ambiguous match the resolver could not settle
	ErrTypeMultiMatch ErrorType = "multi_match"
	// ErrTypeTimeout represents an exceeded wait budget or call timeout
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeParse represents a malformed or unexpectedly shaped payload
	ErrTypeParse ErrorType = "parse"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeValidation represents invalid caller input
	ErrTypeValidation ErrorType = "validation"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// AuthError creates a token issuance/refresh error
func AuthError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
		Cause:   cause,
	}
}

// UpstreamError creates a provider 5xx/network error
func UpstreamError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeUpstream,
		Message: msg,
		Cause:   cause,
	}
}

// RateLimitError creates a provider 429 error
func RateLimitError(provider string) *AppError {
	return &AppError{
		Type:    ErrTypeRateLimit,
		Message: fmt.Sprintf("rate limited by %s", provider),
	}
}

// NotFoundError creates an error for a search with no candidates
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// MultiMatchError creates an error for an unresolved ambiguous match
func MultiMatchError(count int) *AppError {
	return &AppError{
		Type:    ErrTypeMultiMatch,
		Message: fmt.Sprintf("%d candidates remain after tie-break", count),
	}
}

// TimeoutError creates a wait-budget or call timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// ParseError creates an error for a malformed payload. A short sample of the
// raw payload goes into the error context so it lands in the logs.
func ParseError(msg string, sample string) *AppError {
	if len(sample) > 256 {
		sample = sample[:256]
	}
	return &AppError{
		Type:    ErrTypeParse,
		Message: msg,
		Context: map[string]interface{}{"payload_sample": sample},
	}
}

// ConfigError creates a configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// ValidationError creates an invalid-input error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise ErrTypeUpstream
// since unclassified failures from provider calls are network-shaped.
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return ErrTypeUpstream
	}

	return appErr.Type
}

// IsTransient reports whether the error class is eligible for retry.
// Only upstream and rate-limit failures are; auth, parse and 4xx-shaped
// classes surface immediately.
func IsTransient(err error) bool {
	switch GetType(err) {
	case ErrTypeUpstream, ErrTypeRateLimit:
		return true
	default:
		return false
	}
}
