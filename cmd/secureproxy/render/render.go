// Package render formats assistant replies for terminal output.
package render

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/secureproxy/secureproxy-go/client"
)

const maxWidth = 100

// Markdown renders text as terminal markdown, falling back to the raw text
// when stdout is not a terminal or rendering fails (e.g. piped output).
func Markdown(text string) string {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return text
	}

	width := 80
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		width = w
		if width > maxWidth {
			width = maxWidth
		}
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// ErrorMessage maps SDK errors to actionable user-facing text. Each error
// kind gets its own message so the user knows whether to fix credentials,
// wait, or just retry.
func ErrorMessage(err error) string {
	var netErr *client.NetworkError
	switch {
	case errors.Is(err, client.ErrAuthenticationFailed):
		return "Authentication failed. Check your proxy key and secret key."
	case errors.Is(err, client.ErrTokenExpired):
		return "Your session token expired. Try the request again."
	case errors.Is(err, client.ErrRateLimitExceeded):
		return "Rate limit exceeded. Wait a moment and try again."
	case errors.Is(err, client.ErrNoChoices):
		return "The provider returned no reply. Try again."
	case errors.Is(err, client.ErrInvalidResponse):
		return "The service returned an unexpected response."
	case errors.As(err, &netErr):
		if netErr.StatusCode != 0 {
			return fmt.Sprintf("Service error (status %d). Try again later.", netErr.StatusCode)
		}
		return "Network error. Check your connection."
	default:
		return err.Error()
	}
}
