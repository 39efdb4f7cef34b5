package api

import (
	"fmt"
	"net/http"
	"strings"

	"hearingvault/internal/auth"
)

// caller identifies who is making a request: a gateway-authenticated staff
// actor, or a sharee resolved from a share token.
type caller struct {
	actor  string
	sharee bool
	email  string
}

// requireAPIKey authenticates the upstream gateway. The staff actor name is
// taken from the X-Actor header the gateway forwards.
func (h *Handler) requireAPIKey(r *http.Request) (caller, error) {
	actor := strings.TrimSpace(r.Header.Get("X-Actor"))
	if actor == "" {
		actor = "gateway"
	}
	if h.APIKeyHash == "" {
		return caller{actor: actor}, nil
	}
	key := strings.TrimSpace(r.Header.Get("X-Api-Key"))
	if key == "" {
		return caller{}, fmt.Errorf("api key required")
	}
	if err := auth.VerifyAPIKey(h.APIKeyHash, key); err != nil {
		return caller{}, fmt.Errorf("invalid api key")
	}
	return caller{actor: actor}, nil
}

// resolveCaller authenticates retrieval requests. A bearer token marks the
// sharee access path; otherwise the gateway key applies.
func (h *Handler) resolveCaller(r *http.Request) (caller, error) {
	if token := bearerToken(r); token != "" {
		if h.Shares == nil {
			return caller{}, fmt.Errorf("share access is not enabled")
		}
		email, err := h.Shares.Verify(token)
		if err != nil {
			return caller{}, fmt.Errorf("invalid share token")
		}
		return caller{actor: email, sharee: true, email: email}, nil
	}
	return h.requireAPIKey(r)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
