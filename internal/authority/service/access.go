package service

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/aussiebroadwan/authority/pkg/idx"
	"github.com/aussiebroadwan/authority/pkg/jwtx"
)

// ClaimsCache holds claims of tokens that already passed signature
// verification, keyed by the token string.
type ClaimsCache = ristretto.Cache[string, *jwtx.Claims]

// NewClaimsCache returns a ClaimsCache sized for roughly maxEntries tokens.
func NewClaimsCache(maxEntries int64) (*ClaimsCache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("claims cache: size must be positive, got %d", maxEntries)
	}
	return ristretto.NewCache(&ristretto.Config[string, *jwtx.Claims]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
}

// Principal is an identity some other layer already authenticated, described
// by its name and claim-shaped attributes.
type Principal struct {
	Name       string
	Attributes map[string]any
}

// AccessTokenManager builds and checks access tokens.
type AccessTokenManager struct {
	codec jwtx.Codec
	ids   idx.Source
	cache *ClaimsCache // nil disables caching
}

// NewAccessTokenManager wires an access token manager. cache may be nil.
func NewAccessTokenManager(codec jwtx.Codec, ids idx.Source, cache *ClaimsCache) (*AccessTokenManager, error) {
	if codec == nil || ids == nil {
		return nil, fmt.Errorf("%w: access token manager needs a codec and an id source", ErrMissingDependency)
	}
	return &AccessTokenManager{codec: codec, ids: ids, cache: cache}, nil
}

// Generate signs an access token for the given identity, valid for lifetime
// from issuedAt.
func (m *AccessTokenManager) Generate(
	roles []string,
	clientID, userID, subject string,
	issuedAt time.Time,
	lifetime jwtx.Lifetime,
) (string, error) {
	issued, expires, err := lifetime.Window(issuedAt)
	if err != nil {
		return "", err
	}

	// The roles claim is always present, even when nothing is granted.
	granted := slices.Clone(roles)
	if granted == nil {
		granted = []string{}
	}

	return m.codec.Sign(jwtx.Claims{
		Subject:   subject,
		Roles:     granted,
		UserID:    userID,
		ClientID:  clientID,
		IssuedAt:  issued,
		ExpiresAt: expires,
		ID:        m.ids.New().String(),
	})
}

// Validate returns the token's claims, or nil when the token does not
// authenticate anyone at now: it fails to parse, has expired, or lacks a
// subject or client id. Callers must not distinguish between these.
func (m *AccessTokenManager) Validate(token string, now time.Time) *jwtx.Claims {
	if m.cache != nil {
		if cached, ok := m.cache.Get(token); ok {
			if cached.ExpiredAt(now) {
				return nil
			}
			return cached.Clone()
		}
	}

	claims := m.ExtractClaims(token)
	if claims == nil || claims.ExpiredAt(now) {
		return nil
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.ClientID) == "" {
		return nil
	}

	if m.cache != nil {
		m.cache.SetWithTTL(token, claims.Clone(), 1, claims.ExpiresAt.Sub(now))
	}
	return claims
}

// ExtractClaims verifies the signature and returns the claims without any
// time or presence checks, or nil if the token does not parse.
func (m *AccessTokenManager) ExtractClaims(token string) *jwtx.Claims {
	claims, err := m.codec.Parse(token)
	if err != nil {
		return nil
	}
	return &claims
}

func (m *AccessTokenManager) Roles(token string) []string {
	if c := m.ExtractClaims(token); c != nil {
		return c.Roles
	}
	return nil
}

func (m *AccessTokenManager) UserID(token string) string {
	if c := m.ExtractClaims(token); c != nil {
		return c.UserID
	}
	return ""
}

func (m *AccessTokenManager) ClientID(token string) string {
	if c := m.ExtractClaims(token); c != nil {
		return c.ClientID
	}
	return ""
}

func (m *AccessTokenManager) Subject(token string) string {
	if c := m.ExtractClaims(token); c != nil {
		return c.Subject
	}
	return ""
}

// ClaimsFromPrincipal converts an already-authenticated principal into
// claims without going through a token string. The principal's name is the
// subject. Returns nil for an anonymous principal.
func (m *AccessTokenManager) ClaimsFromPrincipal(p Principal) *jwtx.Claims {
	if strings.TrimSpace(p.Name) == "" {
		return nil
	}
	claims := jwtx.FromMap(p.Attributes)
	claims.Subject = p.Name
	return &claims
}
