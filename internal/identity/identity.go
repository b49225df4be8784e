// Package identity resolves a connection's credentials into a player
// identity through the external verification service.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrUnauthorized is returned when a token is rejected and guests are
	// not allowed.
	ErrUnauthorized = errors.New("identity: unauthorized")
	// ErrMissingToken is returned for an empty token when guests are not
	// allowed.
	ErrMissingToken = errors.New("identity: missing token")
)

// GuestPrefix starts every guest id.
const GuestPrefix = "guest-"

const maxNameRunes = 24

// Identity is who a connection plays as.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Guest       bool   `json:"guest,omitempty"`
}

// Verifier checks a credential token.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (Identity, error) {
	return f(ctx, token)
}

// NewGuest mints a fresh guest identity.
func NewGuest(displayName string) Identity {
	id := GuestPrefix + uuid.NewString()
	name := SanitizeName(displayName)
	if name == "" {
		name = "Guest-" + id[len(GuestPrefix):len(GuestPrefix)+4]
	}
	return Identity{ID: id, DisplayName: name, Guest: true}
}

// SanitizeName trims whitespace and control characters and caps the
// length.
func SanitizeName(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if utf8.RuneCountInString(cleaned) <= maxNameRunes {
		return cleaned
	}
	runes := []rune(cleaned)
	return string(runes[:maxNameRunes])
}

// Service turns handshake credentials into an identity. A missing token, or
// one the verifier rejects, falls back to a guest identity when guests are
// allowed.
type Service struct {
	Verifier    Verifier
	AllowGuests bool
}

// Resolve verifies token, falling back to a guest named displayName.
func (s *Service) Resolve(ctx context.Context, token, displayName string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" || s.Verifier == nil {
		if !s.AllowGuests {
			return Identity{}, ErrMissingToken
		}
		return NewGuest(displayName), nil
	}
	id, err := s.Verifier.Verify(ctx, token)
	if err != nil {
		if s.AllowGuests {
			return NewGuest(displayName), nil
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if id.ID == "" {
		return Identity{}, fmt.Errorf("%w: verifier returned an empty id", ErrUnauthorized)
	}
	if id.DisplayName == "" {
		id.DisplayName = SanitizeName(displayName)
	}
	id.DisplayName = SanitizeName(id.DisplayName)
	return id, nil
}

// HTTPVerifier asks a remote service to verify tokens. It sends
// "GET {BaseURL}/verify" with a bearer token and expects a JSON identity.
type HTTPVerifier struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPVerifier builds a verifier with a bounded request timeout.
func NewHTTPVerifier(baseURL string) *HTTPVerifier {
	return &HTTPVerifier{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.BaseURL+"/verify", nil)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: verify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Identity{}, ErrUnauthorized
	}
	if resp.StatusCode/100 != 2 {
		return Identity{}, fmt.Errorf("identity: verify returned %s", resp.Status)
	}
	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return Identity{}, fmt.Errorf("identity: decode response: %w", err)
	}
	id.Guest = false
	return id, nil
}
