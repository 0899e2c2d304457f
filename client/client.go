// Package client implements the authenticated request pipeline of the
// secureproxy SDK: token lifecycle, request signing and encoding, and typed
// response decoding. The proxy service maps model names to providers; the
// client only speaks the proxy's wire contract.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/secureproxy/secureproxy-go/pkg/llm"
)

// Client issues chat, completion and vision requests through the proxy
// service. It is safe for concurrent use; the cached access token is the
// only shared mutable state and is owned by the token manager.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *signer
	logger     *zap.Logger
	tokens     *tokenManager
}

// New creates a Client from cfg. ProxyKey is required.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ProxyKey) == "" {
		return nil, errors.New("proxy key must not be empty")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sig := newSigner(cfg.SecretKey)

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		signer:     sig,
		logger:     logger,
		tokens: &tokenManager{
			httpClient: httpClient,
			baseURL:    baseURL,
			proxyKey:   cfg.ProxyKey,
			signer:     sig,
			logger:     logger,
		},
	}, nil
}

// ChatCompletion sends the full message history to the proxy and returns the
// decoded response. A 401 invalidates the cached token and fails with
// ErrTokenExpired; the client never retries internally, so each call is a
// single attempt and the caller decides whether to retry.
func (c *Client) ChatCompletion(ctx context.Context, model string, messages []llm.Message, opts ...Option) (*llm.ChatResponse, error) {
	token, err := c.tokens.ensureValidToken(ctx)
	if err != nil {
		return nil, err
	}

	req := llm.ChatRequest{Model: model, Messages: messages}
	for _, opt := range opts {
		opt(&req)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if c.signer != nil {
		c.signer.sign(httpReq, body, time.Now())
	}

	c.logger.Debug("sending chat completion",
		zap.String("model", model),
		zap.Int("message_count", len(messages)),
	)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("chat request: %w", err)}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read chat response: %w", err)}
	}

	switch httpResp.StatusCode {
	case http.StatusOK:
		resp, err := llm.DecodeChatResponse(raw)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("received chat completion",
			zap.String("id", resp.ID),
			zap.Int("choice_count", len(resp.Choices)),
		)
		return resp, nil
	case http.StatusUnauthorized:
		c.tokens.invalidate()
		return nil, ErrTokenExpired
	case http.StatusTooManyRequests:
		return nil, ErrRateLimitExceeded
	default:
		c.logger.Debug("proxy returned error",
			zap.Int("status", httpResp.StatusCode),
			zap.String("body_preview", truncate(string(raw), 200)),
		)
		return nil, &NetworkError{StatusCode: httpResp.StatusCode}
	}
}

// Complete sends prompt as a single user message and returns the text of the
// first choice.
func (c *Client) Complete(ctx context.Context, prompt, model string) (string, error) {
	resp, err := c.ChatCompletion(ctx, model, []llm.Message{llm.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return firstChoiceText(resp)
}

// Vision sends a single user message combining prompt and an image reference,
// in that order, and returns the text of the first choice.
func (c *Client) Vision(ctx context.Context, prompt, imageURL, model string) (string, error) {
	msg := llm.Message{
		Role:    llm.RoleUser,
		Content: llm.Multimodal(llm.TextPart(prompt), llm.ImagePart(imageURL)),
	}
	resp, err := c.ChatCompletion(ctx, model, []llm.Message{msg})
	if err != nil {
		return "", err
	}
	return firstChoiceText(resp)
}

func firstChoiceText(resp *llm.ChatResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	content := resp.Choices[0].Message.Content
	if !content.IsText() {
		return "", fmt.Errorf("%w: first choice content is not plain text", ErrInvalidResponse)
	}
	return content.Text(), nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
