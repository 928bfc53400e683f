// Package csrf implements the double-submit token pair: a value placed in a
// JS-readable cookie that the caller must echo back in a header or form field
// on every state-changing request.
//
// Tokens are not guessable strings compared for equality alone: each token is
// a random nonce plus an HMAC-SHA256 tag over the nonce, so a forged cookie
// pair fails tag verification even when both submitted values match.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

const nonceBytes = 32

// Guard issues and verifies double-submit CSRF tokens. It is safe for
// concurrent use.
type Guard struct {
	key []byte
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(key []byte) (*Guard, error) {
	if len(key) < 32 {
		return nil, errors.New("csrf key must be at least 32 bytes")
	}

	k := make([]byte, len(key))
	copy(k, key)

	return &Guard{key: k}, nil
}

// Issue mints a fresh token: base64url(nonce) "." base64url(hmac(nonce)).
// The same value goes into the csrf cookie and is echoed by the caller.
func (g *Guard) Issue() (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	tag := g.tag(nonce)
	return base64.RawURLEncoding.EncodeToString(nonce) + "." + base64.RawURLEncoding.EncodeToString(tag), nil
}

// Verify reports whether the cookie value and the caller-submitted value form
// a valid pair. It fails on a missing cookie, a missing submitted value, a
// mismatch between the two, or an invalid tag.
func (g *Guard) Verify(cookieValue, submittedValue string) bool {
	if cookieValue == "" || submittedValue == "" {
		return false
	}
	if !hmac.Equal([]byte(cookieValue), []byte(submittedValue)) {
		return false
	}

	encodedNonce, encodedTag, found := strings.Cut(cookieValue, ".")
	if !found {
		return false
	}

	nonce, err := base64.RawURLEncoding.DecodeString(encodedNonce)
	if err != nil || len(nonce) != nonceBytes {
		return false
	}
	tag, err := base64.RawURLEncoding.DecodeString(encodedTag)
	if err != nil {
		return false
	}

	return hmac.Equal(tag, g.tag(nonce))
}

func (g *Guard) tag(nonce []byte) []byte {
	h := hmac.New(sha256.New, g.key)
	h.Write(nonce)
	return h.Sum(nil)
}
