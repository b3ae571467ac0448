// Package auth verifies the init data Telegram passes to the mini-app.
package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/pkg/validator"
)

// Verification modes.
const (
	ModeSigned    = "signed"
	ModeDevBypass = "dev_bypass"
)

// Verifier turns an init data payload into a trusted identity. Every
// rejection wraps domain.ErrUnauthenticated.
type Verifier interface {
	Verify(initData string) (*domain.PlatformIdentity, error)
	Mode() string
}

// NewVerifier selects the verifier for mode. It is called once at startup.
func NewVerifier(mode, botToken string, maxAge time.Duration) (Verifier, error) {
	switch mode {
	case ModeSigned:
		if botToken == "" {
			return nil, fmt.Errorf("signed verifier requires a bot token")
		}
		return NewSignedVerifier(botToken, maxAge), nil
	case ModeDevBypass:
		return NewDevBypassVerifier(), nil
	default:
		return nil, fmt.Errorf("unknown verification mode %q", mode)
	}
}

type pair struct {
	key, value string
}

// parsePairs splits a query string into decoded pairs, keeping their order.
func parsePairs(initData string) ([]pair, error) {
	parts := strings.Split(initData, "&")
	pairs := make([]pair, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed key encoding", domain.ErrUnauthenticated)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed value encoding for %q", domain.ErrUnauthenticated, key)
		}
		pairs = append(pairs, pair{key: key, value: value})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: empty init data", domain.ErrUnauthenticated)
	}
	return pairs, nil
}

func lookup(pairs []pair, key string) (string, bool) {
	for _, p := range pairs {
		if p.key == key {
			return p.value, true
		}
	}
	return "", false
}

// identityJSON mirrors the user object; ID stays raw so only a JSON integer
// is accepted.
type identityJSON struct {
	ID           json.RawMessage `json:"id"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Username     string          `json:"username"`
	LanguageCode string          `json:"language_code"`
	PhotoURL     string          `json:"photo_url"`
}

// decodeIdentity strictly decodes the user field.
func decodeIdentity(pairs []pair) (*domain.PlatformIdentity, error) {
	raw, ok := lookup(pairs, "user")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: user field missing", domain.ErrUnauthenticated)
	}

	var in identityJSON
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: user field is not valid: %v", domain.ErrUnauthenticated, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after user object", domain.ErrUnauthenticated)
	}

	idText := string(bytes.TrimSpace(in.ID))
	if idText == "" || idText == "null" {
		return nil, fmt.Errorf("%w: user id missing", domain.ErrUnauthenticated)
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: user id %s is not an integer", domain.ErrUnauthenticated, idText)
	}

	identity := &domain.PlatformIdentity{
		ID:           id,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Username:     strings.TrimSpace(in.Username),
		LanguageCode: in.LanguageCode,
		PhotoURL:     in.PhotoURL,
	}
	if err := validator.Validate(identity); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	return identity, nil
}
