package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/evotags/evotags/internal/domain"
)

const webAppDataKey = "WebAppData"

// SignedVerifier checks the init data hash against the bot token.
type SignedVerifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewSignedVerifier creates a verifier for botToken. A positive maxAge also
// rejects payloads whose auth_date is older than maxAge.
func NewSignedVerifier(botToken string, maxAge time.Duration) *SignedVerifier {
	return &SignedVerifier{
		secret: secretKey(botToken),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Mode implements Verifier.
func (v *SignedVerifier) Mode() string { return ModeSigned }

// Verify implements Verifier.
func (v *SignedVerifier) Verify(initData string) (*domain.PlatformIdentity, error) {
	if strings.TrimSpace(initData) == "" {
		return nil, fmt.Errorf("%w: empty init data", domain.ErrUnauthenticated)
	}
	pairs, err := parsePairs(initData)
	if err != nil {
		return nil, err
	}

	hashHex, rest := splitHash(pairs)
	if hashHex == "" {
		return nil, fmt.Errorf("%w: hash missing", domain.ErrUnauthenticated)
	}
	got, err := hex.DecodeString(hashHex)
	if err != nil {
		return nil, fmt.Errorf("%w: hash is not hex", domain.ErrUnauthenticated)
	}
	if !hmac.Equal(got, checkHash(v.secret, rest)) {
		return nil, fmt.Errorf("%w: hash mismatch", domain.ErrUnauthenticated)
	}

	if v.maxAge > 0 {
		if err := v.checkFreshness(rest); err != nil {
			return nil, err
		}
	}
	return decodeIdentity(rest)
}

func (v *SignedVerifier) checkFreshness(pairs []pair) error {
	raw, ok := lookup(pairs, "auth_date")
	if !ok {
		return fmt.Errorf("%w: auth_date missing", domain.ErrUnauthenticated)
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: auth_date is not a unix time", domain.ErrUnauthenticated)
	}
	if age := v.now().Sub(time.Unix(sec, 0)); age > v.maxAge {
		return fmt.Errorf("%w: init data expired %s ago", domain.ErrUnauthenticated, (age - v.maxAge).Round(time.Second))
	}
	return nil
}

// secretKey derives HMAC-SHA256(key "WebAppData", msg botToken).
func secretKey(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte(webAppDataKey))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

// splitHash removes every hash pair and returns the last hash value.
func splitHash(pairs []pair) (string, []pair) {
	var hash string
	rest := make([]pair, 0, len(pairs))
	for _, p := range pairs {
		if p.key == "hash" {
			hash = p.value
			continue
		}
		rest = append(rest, p)
	}
	return hash, rest
}

// dataCheckString joins the pairs sorted by key as key=value lines.
func dataCheckString(pairs []pair) string {
	sorted := make([]pair, len(pairs))
	copy(sorted, pairs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].key < sorted[j].key })

	lines := make([]string, len(sorted))
	for i, p := range sorted {
		lines[i] = p.key + "=" + p.value
	}
	return strings.Join(lines, "\n")
}

func checkHash(secret []byte, pairs []pair) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(dataCheckString(pairs)))
	return mac.Sum(nil)
}
