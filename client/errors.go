package client

import (
	"errors"
	"fmt"

	"github.com/secureproxy/secureproxy-go/pkg/llm"
)

var (
	// ErrAuthenticationFailed indicates bad credentials or an auth-endpoint
	// failure.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrTokenExpired indicates a 401 from a downstream call. The cached
	// token has been invalidated; the caller may retry once.
	ErrTokenExpired = errors.New("token expired")

	// ErrRateLimitExceeded indicates a 429 from the proxy.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidResponse indicates a malformed body or missing required
	// fields. Alias of the codec sentinel so both packages match.
	ErrInvalidResponse = llm.ErrInvalidResponse

	// ErrNoChoices indicates a well-formed response carrying zero choices.
	// It wraps ErrInvalidResponse, so errors.Is against either matches.
	ErrNoChoices = fmt.Errorf("%w: response contains no choices", llm.ErrInvalidResponse)
)

// NetworkError indicates a non-success status outside the dedicated
// taxonomy, or a transport-level failure (StatusCode zero).
type NetworkError struct {
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
