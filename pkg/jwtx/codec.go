package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinKeySize is the minimum HS512 key length in bytes (512 bits).
const MinKeySize = 64

var (
	ErrMalformed        = errors.New("jwtx: malformed token")
	ErrInvalidSignature = errors.New("jwtx: invalid signature")
	ErrWeakKey          = errors.New("jwtx: signing key shorter than 512 bits")
)

// Codec signs claims into a compact token and parses them back. Parse
// only proves the token was signed with the codec's key; time-based
// checks are left to the caller, who owns the clock.
type Codec interface {
	Sign(Claims) (string, error)
	Parse(token string) (Claims, error)
}

// HS512Codec is a Codec using HMAC-SHA-512 over a server-held key.
type HS512Codec struct {
	key    []byte
	parser *jwt.Parser
}

// NewHS512Codec returns a codec bound to key. The key is copied.
func NewHS512Codec(key []byte) (*HS512Codec, error) {
	if len(key) < MinKeySize {
		return nil, ErrWeakKey
	}

	return &HS512Codec{
		key: append([]byte(nil), key...),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithJSONNumber(),
			jwt.WithStrictDecoding(),
		),
	}, nil
}

// Sign encodes header and claims and appends the HS512 signature. The
// output depends only on the claims and the key.
func (c *HS512Codec) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS512, claims.mapClaims())
	signed, err := t.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature of token and returns its claims. Failures
// are reported as ErrMalformed or ErrInvalidSignature.
func (c *HS512Codec) Parse(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMalformed
	}

	parsed, err := c.parser.Parse(token, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}

	m, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrMalformed
	}

	return claimsFromMap(m), nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
