package cryptox

import (
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// MinHMACKeySize is the smallest symmetric signing key accepted, 512 bits.
const MinHMACKeySize = 64

// Labels used to derive independent signing keys from one master secret.
// Knowing one derived key reveals nothing about the other.
const (
	LabelAccessKey       = "authority/access-token/hs512"
	LabelConfirmationKey = "authority/confirmation-token/hs512"
)

var ErrKeyTooShort = errors.New("cryptox: key shorter than 512 bits")

// GenerateKey returns size random bytes suitable as an HMAC key.
func GenerateKey(size int) ([]byte, error) {
	if size < MinHMACKeySize {
		return nil, ErrKeyTooShort
	}
	return randomBytes(size)
}

// DecodeKey parses a base64 (std or url, padded or not) encoded key and
// enforces the minimum size.
func DecodeKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)

	var (
		key []byte
		err error
	)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		key, err = enc.DecodeString(encoded)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: decode key: %w", err)
	}
	if len(key) < MinHMACKeySize {
		return nil, ErrKeyTooShort
	}
	return key, nil
}

// DeriveKey expands master into a MinHMACKeySize key bound to label using
// HKDF-SHA-512.
func DeriveKey(master []byte, label string) ([]byte, error) {
	if len(master) < MinHMACKeySize {
		return nil, ErrKeyTooShort
	}

	out := make([]byte, MinHMACKeySize)
	r := hkdf.New(sha512.New, master, nil, []byte(label))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("cryptox: derive %q: %w", label, err)
	}
	return out, nil
}
