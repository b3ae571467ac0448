package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evotags/evotags/internal/domain"
)

const testToken = "123456:AAExampleBotToken"

func signedAnna(t *testing.T) string {
	t.Helper()
	payload, err := SignIdentity(testToken, &domain.PlatformIdentity{
		ID:        42,
		FirstName: "Anna",
		LastName:  "Ivanova",
		Username:  "anna",
	}, time.Now())
	require.NoError(t, err)
	return payload
}

func TestSignedVerifier_RoundTrip(t *testing.T) {
	v := NewSignedVerifier(testToken, 0)

	id, err := v.Verify(signedAnna(t))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.ID)
	assert.Equal(t, "Anna", id.FirstName)
	assert.Equal(t, "Ivanova", id.LastName)
	assert.Equal(t, "anna", id.Username)
	assert.Equal(t, ModeSigned, v.Mode())
}

func TestSignedVerifier_KnownHash(t *testing.T) {
	user := `{"id":7,"first_name":"Mikhail"}`
	check := "auth_date=1700000000\nquery_id=AAF\nuser=" + user

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(testToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(check))
	hash := hex.EncodeToString(mac.Sum(nil))

	// Fields arrive unsorted; the check string sorts them.
	payload := "user=" + url.QueryEscape(user) + "&hash=" + hash + "&query_id=AAF&auth_date=1700000000"

	id, err := NewSignedVerifier(testToken, 0).Verify(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id.ID)
	assert.Equal(t, "Mikhail", id.FirstName)
}

func TestSignedVerifier_AnyFlippedCharacterFails(t *testing.T) {
	v := NewSignedVerifier(testToken, 0)
	payload := signedAnna(t)

	for i := range payload {
		repl := byte('x')
		if payload[i] == 'x' {
			repl = 'y'
		}
		tampered := payload[:i] + string(repl) + payload[i+1:]

		_, err := v.Verify(tampered)
		require.Error(t, err, "flipping byte %d (%q) must fail", i, payload[i])
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	}
}

func TestSignedVerifier_WrongToken(t *testing.T) {
	_, err := NewSignedVerifier("other:token", 0).Verify(signedAnna(t))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "hash mismatch")
}

func TestSignedVerifier_Rejections(t *testing.T) {
	v := NewSignedVerifier(testToken, 0)

	tests := []struct {
		name    string
		payload string
		reason  string
	}{
		{"empty", "", "empty init data"},
		{"blank", "   ", "empty init data"},
		{"only separators", "&&", "empty init data"},
		{"missing hash", "user=" + url.QueryEscape(`{"id":1,"first_name":"A"}`), "hash missing"},
		{"non hex hash", "user=x&hash=zz", "hash is not hex"},
		{"bad escape", "user=%zz&hash=00", "malformed value encoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUnauthenticated)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestSignedVerifier_StrictUserDecode(t *testing.T) {
	v := NewSignedVerifier(testToken, 0)

	tests := []struct {
		name string
		user string
		ok   bool
	}{
		{"valid", `{"id":42,"first_name":"Anna"}`, true},
		{"unknown fields ignored", `{"id":42,"first_name":"Anna","is_premium":true,"allows_write_to_pm":true}`, true},
		{"string id", `{"id":"42","first_name":"Anna"}`, false},
		{"float id", `{"id":42.5,"first_name":"Anna"}`, false},
		{"exponent id", `{"id":4e1,"first_name":"Anna"}`, false},
		{"zero id", `{"id":0,"first_name":"Anna"}`, false},
		{"negative id", `{"id":-5,"first_name":"Anna"}`, false},
		{"null id", `{"id":null,"first_name":"Anna"}`, false},
		{"missing id", `{"first_name":"Anna"}`, false},
		{"missing first name", `{"id":42}`, false},
		{"blank first name", `{"id":42,"first_name":"  "}`, false},
		{"numeric first name", `{"id":42,"first_name":5}`, false},
		{"numeric username", `{"id":42,"first_name":"Anna","username":7}`, false},
		{"not an object", `[42]`, false},
		{"not json", `id=42`, false},
		{"trailing data", `{"id":42,"first_name":"Anna"}{}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := Sign(testToken, map[string]string{"auth_date": "1700000000", "user": tt.user})
			id, err := v.Verify(payload)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, int64(42), id.ID)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestSignedVerifier_MissingUser(t *testing.T) {
	payload := Sign(testToken, map[string]string{"auth_date": "1700000000"})
	_, err := NewSignedVerifier(testToken, 0).Verify(payload)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "user field missing")
}

func TestSignedVerifier_MaxAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	v := NewSignedVerifier(testToken, time.Hour)
	v.now = func() time.Time { return now }

	user := `{"id":42,"first_name":"Anna"}`

	fresh := Sign(testToken, map[string]string{"auth_date": "1767265200", "user": user}) // 11:00 UTC
	_, err := v.Verify(fresh)
	require.NoError(t, err)

	stale := Sign(testToken, map[string]string{"auth_date": "1767261600", "user": user}) // 10:00 UTC
	_, err = v.Verify(stale)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")

	noDate := Sign(testToken, map[string]string{"user": user})
	_, err = v.Verify(noDate)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	badDate := Sign(testToken, map[string]string{"auth_date": "yesterday", "user": user})
	_, err = v.Verify(badDate)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	// Disabled when maxAge is zero.
	_, err = NewSignedVerifier(testToken, 0).Verify(stale)
	assert.NoError(t, err)
}

func TestDataCheckString_SortsByKey(t *testing.T) {
	got := dataCheckString([]pair{{"user", "u"}, {"auth_date", "1"}, {"query_id", "q"}})
	assert.Equal(t, "auth_date=1\nquery_id=q\nuser=u", got)
}

func TestParsePairs_DecodesPlusAsSpace(t *testing.T) {
	pairs, err := parsePairs("a=hello+world&b=%D0%90&c")
	require.NoError(t, err)
	assert.Equal(t, []pair{{"a", "hello world"}, {"b", "А"}, {"c", ""}}, pairs)
}

func TestSign_IgnoresHashField(t *testing.T) {
	payload := Sign(testToken, map[string]string{"hash": "forged", "user": `{"id":1,"first_name":"A"}`})
	assert.Equal(t, 1, strings.Count(payload, "hash="))
	_, err := NewSignedVerifier(testToken, 0).Verify(payload)
	assert.NoError(t, err)
}

func TestDevBypassVerifier(t *testing.T) {
	v := NewDevBypassVerifier()
	assert.Equal(t, ModeDevBypass, v.Mode())

	id, err := v.Verify("user=" + url.QueryEscape(`{"id":99,"first_name":"Dev"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(99), id.ID)

	// A signed payload is accepted as well; the hash is just ignored.
	id, err = v.Verify(signedAnna(t))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.ID)

	_, err = v.Verify("")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = v.Verify("user=" + url.QueryEscape(`{"id":"99","first_name":"Dev"}`))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier(ModeSigned, testToken, 0)
	require.NoError(t, err)
	assert.IsType(t, &SignedVerifier{}, v)

	_, err = NewVerifier(ModeSigned, "", 0)
	assert.Error(t, err)

	v, err = NewVerifier(ModeDevBypass, "", 0)
	require.NoError(t, err)
	assert.IsType(t, &DevBypassVerifier{}, v)

	_, err = NewVerifier("open", "", 0)
	assert.Error(t, err)
}
