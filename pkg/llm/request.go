// Package llm provides the typed representations of the proxy service's
// chat completion wire contract: messages, multimodal content, requests and
// responses.
package llm

// ChatRequest represents a chat completion request in the proxy's
// OpenAI-compatible wire shape. Optional generation knobs are pointers so
// that absent values are omitted from the payload entirely rather than sent
// as null; omission signals "use the provider default".
type ChatRequest struct {
	Model    string    `json:"model"`    // Model name (e.g., "gpt-4o")
	Messages []Message `json:"messages"` // Conversation history, oldest first

	MaxTokens   *int     `json:"max_tokens,omitempty"`  // Max tokens to generate
	Temperature *float64 `json:"temperature,omitempty"` // Sampling temperature
}
