// Package proxytest provides an in-process stub of the secureproxy service
// implementing its wire contract: the token endpoint issues short-lived HS256
// bearer tokens, the completions endpoint verifies them and serves canned
// replies. It backs the SDK's tests and the stubproxy binary for local
// development.
package proxytest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/secureproxy/secureproxy-go/pkg/llm"
)

// Config is the stub service configuration.
type Config struct {
	// ListenAddr to bind. Defaults to "127.0.0.1:0" (ephemeral port).
	ListenAddr string

	// ProxyKey accepted by the token endpoint. Empty accepts any key.
	ProxyKey string

	// SecretKey for HMAC signature verification. Empty skips verification.
	SecretKey string

	// TokenTTL of issued bearer tokens. Defaults to one hour.
	TokenTTL time.Duration
}

// Server is a running stub proxy service.
type Server struct {
	config    Config
	app       *fiber.App
	ln        net.Listener
	logger    *zap.Logger
	jwtSecret []byte

	mu           sync.Mutex
	authCalls    int
	chatCalls    int
	authStatus   int // forced auth status, 0 means normal behavior
	chatStatus   int // forced completions status, 0 means normal behavior
	reply        string
	lastChatReq  *llm.ChatRequest
	authOverride fiber.Handler
	chatOverride fiber.Handler
}

// New starts a stub service. Close must be called to release the listener.
func New(config Config, logger *zap.Logger) (*Server, error) {
	if config.ListenAddr == "" {
		config.ListenAddr = "127.0.0.1:0"
	}
	if config.TokenTTL == 0 {
		config.TokenTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		app:       app,
		logger:    logger,
		jwtSecret: []byte(uuid.NewString()),
		reply:     "Hello! How can I help you today?",
	}

	app.Post("/api/auth/token", s.handleToken)
	app.Post("/api/v1/chat/completions", s.handleChat)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	ln, err := net.Listen("tcp", config.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", config.ListenAddr, err)
	}
	s.ln = ln

	go func() {
		if err := app.Listener(ln); err != nil {
			logger.Debug("stub server stopped", zap.Error(err))
		}
	}()

	logger.Info("stub proxy listening", zap.String("addr", ln.Addr().String()))

	return s, nil
}

// URL returns the base URL of the running stub.
func (s *Server) URL() string {
	return "http://" + s.ln.Addr().String()
}

// Close shuts the stub down.
func (s *Server) Close() error {
	return s.app.Shutdown()
}

// AuthCalls reports how many times the token endpoint was hit.
func (s *Server) AuthCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCalls
}

// ChatCalls reports how many times the completions endpoint was hit.
func (s *Server) ChatCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatCalls
}

// SetReply changes the canned assistant reply.
func (s *Server) SetReply(text string) {
	s.mu.Lock()
	s.reply = text
	s.mu.Unlock()
}

// FailAuth forces the token endpoint to return status. Zero restores normal
// behavior.
func (s *Server) FailAuth(status int) {
	s.mu.Lock()
	s.authStatus = status
	s.mu.Unlock()
}

// FailChat forces the completions endpoint to return status. Zero restores
// normal behavior.
func (s *Server) FailChat(status int) {
	s.mu.Lock()
	s.chatStatus = status
	s.mu.Unlock()
}

// SetAuthHandler replaces the token endpoint with a standard http.Handler.
// The call counter still runs. Pass nil to restore normal behavior.
func (s *Server) SetAuthHandler(h http.Handler) {
	s.mu.Lock()
	if h == nil {
		s.authOverride = nil
	} else {
		s.authOverride = adaptor.HTTPHandler(h)
	}
	s.mu.Unlock()
}

// SetChatHandler replaces the completions endpoint with a standard
// http.Handler. The call counter still runs; everything else (auth, canned
// reply) is bypassed. Pass nil to restore normal behavior.
func (s *Server) SetChatHandler(h http.Handler) {
	s.mu.Lock()
	if h == nil {
		s.chatOverride = nil
	} else {
		s.chatOverride = adaptor.HTTPHandler(h)
	}
	s.mu.Unlock()
}

// LastChatRequest returns the most recent decoded completions request, or
// nil if none arrived yet.
func (s *Server) LastChatRequest() *llm.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastChatReq
}

func (s *Server) handleToken(c *fiber.Ctx) error {
	s.mu.Lock()
	s.authCalls++
	forced := s.authStatus
	ttl := s.config.TokenTTL
	override := s.authOverride
	s.mu.Unlock()

	if override != nil {
		return override(c)
	}

	if forced != 0 {
		return c.Status(forced).JSON(llm.ErrorResponse{Error: "forced failure"})
	}

	if err := s.verifySignature(c); err != nil {
		s.logger.Debug("rejecting unsigned auth request", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: "invalid signature"})
	}

	var req struct {
		ProxyKey string `json:"proxyKey"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if s.config.ProxyKey != "" && req.ProxyKey != s.config.ProxyKey {
		s.logger.Debug("rejecting unknown proxy key")
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: "unknown proxy key"})
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": req.ProxyKey,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "token signing failed"})
	}

	s.logger.Debug("issued bearer token", zap.Duration("ttl", ttl))

	return c.JSON(map[string]any{
		"token":     signed,
		"expiresIn": ttl.Seconds(),
	})
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	s.mu.Lock()
	s.chatCalls++
	forced := s.chatStatus
	reply := s.reply
	override := s.chatOverride
	s.mu.Unlock()

	if override != nil {
		return override(c)
	}

	if forced != 0 {
		return c.Status(forced).JSON(llm.ErrorResponse{Error: "forced failure"})
	}

	if err := s.verifyBearer(c); err != nil {
		s.logger.Debug("rejecting completions request", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: "invalid or expired token"})
	}
	if err := s.verifySignature(c); err != nil {
		s.logger.Debug("rejecting unsigned completions request", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: "invalid signature"})
	}

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	s.mu.Lock()
	s.lastChatReq = &req
	s.mu.Unlock()

	s.logger.Debug("serving canned completion",
		zap.String("model", req.Model),
		zap.Int("message_count", len(req.Messages)),
	)

	promptTokens := 0
	for _, msg := range req.Messages {
		promptTokens += len(msg.Content.Text()) / 4
		for _, part := range msg.Content.Parts() {
			promptTokens += len(part.Text)/4 + len(part.ImageURL)/16
		}
	}
	completionTokens := len(reply) / 4

	return c.JSON(map[string]any{
		"id": "chatcmpl-" + uuid.NewString(),
		"choices": []map[string]any{
			{
				"message": map[string]any{
					"role":    "assistant",
					"content": reply,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	})
}

// verifyBearer checks the Authorization header against tokens this stub
// issued, including their expiry.
func (s *Server) verifyBearer(c *fiber.Ctx) error {
	auth := c.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return fmt.Errorf("missing bearer token")
	}

	tok, err := jwt.Parse(auth[len(prefix):], func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return fmt.Errorf("parse bearer token: %w", err)
	}
	if !tok.Valid {
		return fmt.Errorf("bearer token is not valid")
	}
	return nil
}

// verifySignature checks the split-key HMAC headers when a secret key is
// configured.
func (s *Server) verifySignature(c *fiber.Ctx) error {
	if s.config.SecretKey == "" {
		return nil
	}

	ts := c.Get("X-Proxy-Timestamp")
	sig := c.Get("X-Proxy-Signature")
	if ts == "" || sig == "" {
		return fmt.Errorf("missing signature headers")
	}

	mac := hmac.New(sha256.New, []byte(s.config.SecretKey))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(c.Body())
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
