package client

import (
	"net/http"

	"go.uber.org/zap"
)

// DefaultBaseURL is the production endpoint of the proxy service.
const DefaultBaseURL = "https://api.secureproxy.com"

// Config is the client configuration.
type Config struct {
	// ProxyKey is the public half-key identifying the caller's project.
	// Required.
	ProxyKey string

	// SecretKey is the optional private half-key. When set, every request
	// carries an HMAC-SHA256 signature; the key itself is never sent.
	SecretKey string

	// BaseURL of the proxy service. Defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient used for all calls. Defaults to a plain http.Client;
	// timeout policy belongs to the transport, the SDK sets none.
	HTTPClient *http.Client

	// Logger for debug output. Defaults to a no-op logger.
	Logger *zap.Logger
}
