package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var (
	// ErrCookieMissing is an exported constant or variable used by the session security engine.
	ErrCookieMissing = errors.New("cookie missing")
	// ErrBadSignature is an exported constant or variable used by the session security engine.
	ErrBadSignature = errors.New("cookie signature invalid")
)

// Signed wire format: base64url(value) "." base64url(hmac(name NUL value)).
// The cookie name participates in the MAC so a value cannot be replayed
// under a different cookie.
func (e *Engine) sign(name, value string) string {
	mac := e.mac(name, value)
	return base64.RawURLEncoding.EncodeToString([]byte(value)) + "." + base64.RawURLEncoding.EncodeToString(mac)
}

func (e *Engine) open(name, wire string) (string, error) {
	encoded, tag, found := strings.Cut(wire, ".")
	if !found {
		return "", ErrBadSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrBadSignature
	}
	got, err := base64.RawURLEncoding.DecodeString(tag)
	if err != nil {
		return "", ErrBadSignature
	}

	if !hmac.Equal(got, e.mac(name, string(raw))) {
		return "", ErrBadSignature
	}

	return string(raw), nil
}

func (e *Engine) mac(name, value string) []byte {
	h := hmac.New(sha256.New, e.config.SigningKey)
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(value))
	return h.Sum(nil)
}
