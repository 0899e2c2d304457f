package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// tokenExpiryBuffer is the safety window before expiry within which a cached
// token is treated as stale.
const tokenExpiryBuffer = 300 * time.Second

type tokenRequest struct {
	ProxyKey string `json:"proxyKey"`
}

type tokenResponse struct {
	Token     *string  `json:"token"`
	ExpiresIn *float64 `json:"expiresIn"` // seconds
}

// tokenManager owns the single cached access token slot. The token never
// leaves the request pipeline. Refresh is serialized behind the mutex, so
// concurrent callers racing past an expired check wait for one refresh
// instead of each issuing their own.
type tokenManager struct {
	httpClient *http.Client
	baseURL    string
	proxyKey   string
	signer     *signer
	logger     *zap.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// ensureValidToken returns the cached token if it is still comfortably
// inside its validity window, refreshing it via the auth endpoint otherwise.
// The manager never retries on its own; callers decide whether to retry
// after invalidation.
func (m *tokenManager) ensureValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && time.Now().Before(m.expiresAt.Add(-tokenExpiryBuffer)) {
		return m.token, nil
	}
	return m.refreshLocked(ctx)
}

// invalidate clears the cached token slot. Called on a 401 from any
// downstream call.
func (m *tokenManager) invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()

	m.logger.Debug("access token invalidated")
}

// refreshLocked issues the auth request. Caller holds m.mu.
func (m *tokenManager) refreshLocked(ctx context.Context) (string, error) {
	body, err := json.Marshal(tokenRequest{ProxyKey: m.proxyKey})
	if err != nil {
		return "", fmt.Errorf("marshal auth request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create auth request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.signer != nil {
		m.signer.sign(httpReq, body, time.Now())
	}

	m.logger.Debug("refreshing access token", zap.String("url", httpReq.URL.String()))

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return "", &NetworkError{Err: fmt.Errorf("auth request: %w", err)}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", &NetworkError{Err: fmt.Errorf("read auth response: %w", err)}
	}

	if httpResp.StatusCode != http.StatusOK {
		m.logger.Debug("auth endpoint returned error", zap.Int("status", httpResp.StatusCode))
		return "", fmt.Errorf("%w: auth endpoint returned %d", ErrAuthenticationFailed, httpResp.StatusCode)
	}

	var resp tokenResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: auth body: %v", ErrInvalidResponse, err)
	}
	if resp.Token == nil || *resp.Token == "" {
		return "", fmt.Errorf("%w: auth body missing token", ErrInvalidResponse)
	}
	if resp.ExpiresIn == nil {
		return "", fmt.Errorf("%w: auth body missing expiresIn", ErrInvalidResponse)
	}

	m.token = *resp.Token
	m.expiresAt = time.Now().Add(time.Duration(*resp.ExpiresIn * float64(time.Second)))

	m.logger.Debug("access token refreshed", zap.Time("expires_at", m.expiresAt))

	return m.token, nil
}
