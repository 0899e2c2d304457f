package llm

import (
	"encoding/json"
	"fmt"
)

// ChatResponse represents a decoded chat completion response.
type ChatResponse struct {
	ID      string   // Response identifier assigned by the proxy
	Choices []Choice // Candidate completions, provider order preserved
	Usage   *Usage   // Token accounting, nil when absent or malformed
}

// Choice is a single candidate completion.
type Choice struct {
	Message      Message
	FinishReason string // Empty when the provider omitted it
}

// Usage records token accounting for a completed request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Wire shapes for decoding. Required fields are pointers so their absence is
// distinguishable from zero values.
type wireResponse struct {
	ID      *string         `json:"id"`
	Choices *[]wireChoice   `json:"choices"`
	Usage   json.RawMessage `json:"usage"`
}

type wireChoice struct {
	Message      *wireChoiceMessage `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

type wireChoiceMessage struct {
	Role    *string `json:"role"`
	Content *string `json:"content"`
}

type wireUsage struct {
	PromptTokens     *int `json:"prompt_tokens"`
	CompletionTokens *int `json:"completion_tokens"`
	TotalTokens      *int `json:"total_tokens"`
}

// DecodeChatResponse parses a completion response body. A body missing `id`
// or `choices`, or a choice whose message lacks a role or a scalar string
// content, fails with ErrInvalidResponse. Providers only ever return plain
// text, so choices always decode to text content. A malformed `usage` block
// is dropped rather than failing the whole decode.
func DecodeChatResponse(data []byte) (*ChatResponse, error) {
	var raw wireResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if raw.ID == nil {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidResponse)
	}
	if raw.Choices == nil {
		return nil, fmt.Errorf("%w: missing choices", ErrInvalidResponse)
	}

	choices := make([]Choice, 0, len(*raw.Choices))
	for i, wc := range *raw.Choices {
		if wc.Message == nil {
			return nil, fmt.Errorf("%w: choice %d missing message", ErrInvalidResponse, i)
		}
		if wc.Message.Role == nil {
			return nil, fmt.Errorf("%w: choice %d missing message role", ErrInvalidResponse, i)
		}
		if wc.Message.Content == nil {
			return nil, fmt.Errorf("%w: choice %d missing message content", ErrInvalidResponse, i)
		}
		choices = append(choices, Choice{
			Message: Message{
				Role:    Role(*wc.Message.Role),
				Content: Text(*wc.Message.Content),
			},
			FinishReason: wc.FinishReason,
		})
	}

	resp := &ChatResponse{
		ID:      *raw.ID,
		Choices: choices,
		Usage:   decodeUsage(raw.Usage),
	}
	return resp, nil
}

// decodeUsage parses the optional usage block. All three counters must be
// present and parse as integers; otherwise the block is treated as absent.
func decodeUsage(data json.RawMessage) *Usage {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var raw wireUsage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	if raw.PromptTokens == nil || raw.CompletionTokens == nil || raw.TotalTokens == nil {
		return nil
	}
	return &Usage{
		PromptTokens:     *raw.PromptTokens,
		CompletionTokens: *raw.CompletionTokens,
		TotalTokens:      *raw.TotalTokens,
	}
}
