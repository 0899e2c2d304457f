package client

import "github.com/secureproxy/secureproxy-go/pkg/llm"

// Option adjusts an optional generation parameter of a chat completion
// request. Parameters left unset are omitted from the payload entirely,
// which tells the provider to use its default.
type Option func(*llm.ChatRequest)

// WithMaxTokens caps the number of tokens the provider may generate.
func WithMaxTokens(n int) Option {
	return func(req *llm.ChatRequest) {
		req.MaxTokens = &n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(req *llm.ChatRequest) {
		req.Temperature = &t
	}
}
