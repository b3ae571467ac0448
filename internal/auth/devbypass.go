package auth

import (
	"fmt"
	"strings"

	"github.com/evotags/evotags/internal/domain"
)

// DevBypassVerifier trusts the user field without checking the hash. It is
// only constructed when AUTH_MODE=dev_bypass, which config refuses in
// production or alongside a bot token.
type DevBypassVerifier struct{}

// NewDevBypassVerifier creates a DevBypassVerifier.
func NewDevBypassVerifier() *DevBypassVerifier {
	return &DevBypassVerifier{}
}

// Mode implements Verifier.
func (DevBypassVerifier) Mode() string { return ModeDevBypass }

// Verify implements Verifier.
func (DevBypassVerifier) Verify(initData string) (*domain.PlatformIdentity, error) {
	if strings.TrimSpace(initData) == "" {
		return nil, fmt.Errorf("%w: empty init data", domain.ErrUnauthenticated)
	}
	pairs, err := parsePairs(initData)
	if err != nil {
		return nil, err
	}
	return decodeIdentity(pairs)
}
