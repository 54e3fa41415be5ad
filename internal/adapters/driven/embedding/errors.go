// Package embedding holds helpers shared by the HTTP embedding adapters.
package embedding

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/tome/internal/core/domain"
)

// maxErrorBody bounds how much of an error response is quoted.
const maxErrorBody = 512

// StatusError maps a non-200 response to a domain error: 429 is
// ErrRateLimited, 5xx is ErrEmbeddingUnavailable and any other status
// is ErrInvalidInput, which callers do not retry.
func StatusError(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}

	var kind error
	switch {
	case status == http.StatusTooManyRequests:
		kind = domain.ErrRateLimited
	case status >= 500:
		kind = domain.ErrEmbeddingUnavailable
	default:
		kind = domain.ErrInvalidInput
	}
	return fmt.Errorf("%s: %w (status %d): %s", provider, kind, status, msg)
}

// TransportError wraps a failed round trip as ErrEmbeddingUnavailable.
func TransportError(provider string, err error) error {
	return fmt.Errorf("%s: %w: %v", provider, domain.ErrEmbeddingUnavailable, err)
}

// ToFloat32 converts a JSON-decoded vector.
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
