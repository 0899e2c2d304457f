package proxytest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	srv, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func postJSON(t *testing.T, url, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, raw
}

func obtainToken(t *testing.T, srv *Server, proxyKey string) string {
	t.Helper()
	resp, raw := postJSON(t, srv.URL()+"/api/auth/token", `{"proxyKey":"`+proxyKey+`"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token     string  `json:"token"`
		ExpiresIn float64 `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestHealthEndpoint(t *testing.T) {
	srv := startServer(t, Config{})

	resp, err := http.Get(srv.URL() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var result map[string]string
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "ok", result["status"])
}

func TestTokenEndpointIssuesExpiringToken(t *testing.T) {
	srv := startServer(t, Config{ProxyKey: "pk_test", TokenTTL: 30 * time.Minute})

	resp, raw := postJSON(t, srv.URL()+"/api/auth/token", `{"proxyKey":"pk_test"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token     string  `json:"token"`
		ExpiresIn float64 `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, float64(1800), body.ExpiresIn)
	assert.Equal(t, 1, srv.AuthCalls())
}

func TestTokenEndpointRejectsUnknownKey(t *testing.T) {
	srv := startServer(t, Config{ProxyKey: "pk_test"})

	resp, _ := postJSON(t, srv.URL()+"/api/auth/token", `{"proxyKey":"pk_other"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatEndpointRequiresBearer(t *testing.T) {
	srv := startServer(t, Config{})

	resp, _ := postJSON(t, srv.URL()+"/api/v1/chat/completions", `{"model":"m","messages":[]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatEndpointRejectsForeignToken(t *testing.T) {
	srv := startServer(t, Config{})
	other := startServer(t, Config{})

	// A token issued by a different stub is signed with a different secret.
	token := obtainToken(t, other, "pk")
	resp, _ := postJSON(t, srv.URL()+"/api/v1/chat/completions", `{"model":"m","messages":[]}`, map[string]string{
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatEndpointServesCannedReply(t *testing.T) {
	srv := startServer(t, Config{})
	srv.SetReply("canned")

	token := obtainToken(t, srv, "pk")
	body := `{"model":"gpt-4o","messages":[{"role":"user","content":"hello"}]}`
	resp, raw := postJSON(t, srv.URL()+"/api/v1/chat/completions", body, map[string]string{
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		ID      string `json:"id"`
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded.ID, "chatcmpl-")
	require.Len(t, decoded.Choices, 1)
	assert.Equal(t, "assistant", decoded.Choices[0].Message.Role)
	assert.Equal(t, "canned", decoded.Choices[0].Message.Content)
	assert.Equal(t, "stop", decoded.Choices[0].FinishReason)

	req := srv.LastChatRequest()
	require.NotNil(t, req)
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, 1, srv.ChatCalls())
}

func TestSignatureVerification(t *testing.T) {
	srv := startServer(t, Config{SecretKey: "sk_test"})

	resp, _ := postJSON(t, srv.URL()+"/api/auth/token", `{"proxyKey":"pk"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "unsigned request must be rejected")

	resp, _ = postJSON(t, srv.URL()+"/api/auth/token", `{"proxyKey":"pk"}`, map[string]string{
		"X-Proxy-Timestamp": "12345",
		"X-Proxy-Signature": "deadbeef",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "bad signature must be rejected")
}

func TestForcedFailures(t *testing.T) {
	srv := startServer(t, Config{})

	srv.FailAuth(http.StatusServiceUnavailable)
	resp, _ := postJSON(t, srv.URL()+"/api/auth/token", `{"proxyKey":"pk"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	srv.FailAuth(0)
	token := obtainToken(t, srv, "pk")

	srv.FailChat(http.StatusTooManyRequests)
	resp, _ = postJSON(t, srv.URL()+"/api/v1/chat/completions", `{"model":"m","messages":[]}`, map[string]string{
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestChatHandlerOverride(t *testing.T) {
	srv := startServer(t, Config{})

	srv.SetChatHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	resp, _ := postJSON(t, srv.URL()+"/api/v1/chat/completions", `{}`, nil)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, 1, srv.ChatCalls(), "override still counts calls")

	srv.SetChatHandler(nil)
	resp, _ = postJSON(t, srv.URL()+"/api/v1/chat/completions", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "normal behavior restored")
}
