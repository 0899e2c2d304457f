package llm

import "errors"

// ErrInvalidResponse indicates a response body that is not valid JSON or is
// missing required fields.
var ErrInvalidResponse = errors.New("invalid response")

// ErrorResponse represents an error payload from the proxy API.
type ErrorResponse struct {
	Error string `json:"error"`
}
