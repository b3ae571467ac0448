package auth

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/evotags/evotags/internal/domain"
)

// Sign returns fields encoded as init data with a valid hash for botToken.
func Sign(botToken string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	pairs := make([]pair, 0, len(fields))
	for k := range fields {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, pair{key: k, value: fields[k]})
	}

	hash := hex.EncodeToString(checkHash(secretKey(botToken), pairs))

	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
		b.WriteByte('&')
	}
	b.WriteString("hash=")
	b.WriteString(hash)
	return b.String()
}

// SignIdentity builds signed init data for identity as of authDate.
func SignIdentity(botToken string, identity *domain.PlatformIdentity, authDate time.Time) (string, error) {
	user, err := json.Marshal(identity)
	if err != nil {
		return "", fmt.Errorf("marshal user: %w", err)
	}
	return Sign(botToken, map[string]string{
		"auth_date": strconv.FormatInt(authDate.Unix(), 10),
		"user":      string(user),
	}), nil
}
