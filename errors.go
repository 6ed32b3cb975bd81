package main

import (
	"errors"
	"fmt"
)

// AuthenticationError means the provider rejected our credentials.
// Non-retryable.
type AuthenticationError struct {
	Provider string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v (check the API key in config.yaml or the environment)", e.Provider, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RateLimitError means the provider throttled the request. Retryable within
// the backoff budget; surfaced once the budget is exhausted.
type RateLimitError struct {
	Provider string
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s is rate limiting requests: %v (service busy, try again shortly)", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// AccessDeniedError means the account cannot use the requested model.
// Triggers model substitution, never backoff.
type AccessDeniedError struct {
	Provider string
	Model    string
	Err      error
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s denied access to model %s: %v", e.Provider, e.Model, e.Err)
}

func (e *AccessDeniedError) Unwrap() error { return e.Err }

// ModelNotFoundError means the requested model id does not exist for this
// account. Triggers model substitution, never backoff.
type ModelNotFoundError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("%s does not recognize model %s: %v (check the model fallback list in config)", e.Provider, e.Model, e.Err)
}

func (e *ModelNotFoundError) Unwrap() error { return e.Err }

// NetworkError wraps transport-level failures and timeouts. Retryable.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("could not reach %s: %v (check network connectivity)", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means the model response could not be interpreted as either
// JSON or segmentable prose. Hard failure for that pipeline run.
type ParseError struct {
	Detail   string
	Response string // truncated raw response for diagnostics
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse model response: %s (response: %s)", e.Detail, truncateForError(e.Response))
}

// ProvidersExhaustedError means every configured provider and model failed.
type ProvidersExhaustedError struct {
	Attempted []string // "provider/model" in the order tried
	LastErr   error
}

func (e *ProvidersExhaustedError) Error() string {
	return fmt.Sprintf("all model providers exhausted (tried %v): %v", e.Attempted, e.LastErr)
}

func (e *ProvidersExhaustedError) Unwrap() error { return e.LastErr }

func truncateForError(s string) string {
	if len(s) > 256 {
		return s[:256] + fmt.Sprintf("... [truncated, total_length=%d]", len(s))
	}
	return s
}

// isRetryable reports whether err should be retried with backoff.
func isRetryable(err error) bool {
	var rle *RateLimitError
	var ne *NetworkError
	return errors.As(err, &rle) || errors.As(err, &ne)
}

// needsModelSubstitution reports whether err calls for trying the next
// model in the fallback list instead of backing off.
func needsModelSubstitution(err error) bool {
	var ade *AccessDeniedError
	var mnf *ModelNotFoundError
	return errors.As(err, &ade) || errors.As(err, &mnf)
}
