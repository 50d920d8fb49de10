// Package credentials implements app key/secret generation and the HMAC-SHA256 channel authentication scheme used to
// authorize subscriptions to private and presence channels.
package credentials

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keyLength   = 24
	secretBytes = 16
)

// GenerateKey returns a fresh 24-character alphanumeric app key.
func GenerateKey() string {
	var sb strings.Builder
	sb.Grow(keyLength)
	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		panic("credentials: failed to read random bytes: " + err.Error())
	}
	for _, b := range buf {
		sb.WriteByte(keyAlphabet[int(b)%len(keyAlphabet)])
	}
	return sb.String()
}

// GenerateSecret returns a fresh 32-character hex-encoded app secret.
func GenerateSecret() string {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		panic("credentials: failed to read random bytes: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// Sign joins parts with ":" and returns the hex-encoded HMAC-SHA256 of the resulting message, keyed by secret. Callers
// use this to build the auth string a client is expected to present: "<key>:<Sign(secret, parts...)>".
func Sign(secret string, parts ...string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is a valid "<key>:<hex mac>" string for the message formed by joining parts with
// ":", keyed by secret. The comparison is constant-time; malformed input (wrong shape, non-hex digest, wrong key)
// returns false rather than erroring, since from the caller's perspective a malformed signature is simply invalid.
func Verify(key, secret, signature string, parts ...string) bool {
	components := strings.SplitN(signature, ":", 2)
	if len(components) != 2 {
		return false
	}
	if components[0] != key {
		return false
	}
	given, err := hex.DecodeString(components[1])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts, ":")))
	want := mac.Sum(nil)

	return hmac.Equal(given, want)
}
