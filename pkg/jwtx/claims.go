package jwtx

import (
	"encoding/json"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Wire names of the claims this service understands. Anything else in a
// token payload is carried through untouched in Claims.Extra.
const (
	ClaimSubject   = "sub"
	ClaimExpiresAt = "exp"
	ClaimIssuedAt  = "iat"
	ClaimID        = "jti"
	ClaimRoles     = "ROLES"
	ClaimUserID    = "USER_ID"
	ClaimClientID  = "CLIENT_ID"
)

// Claims is the typed payload of a signed token. Zero values mean the
// claim is absent (or was present with the wrong type).
type Claims struct {
	// Subject is the account email for access tokens; empty for
	// confirmation tokens.
	Subject string

	// Roles granted to the user, order preserved.
	Roles []string

	UserID string

	// ClientID identifies the device or application the session is bound to.
	ClientID string

	IssuedAt  time.Time
	ExpiresAt time.Time

	// ID is the token identifier (jti). It keeps two tokens minted for the
	// same identity in the same second distinct.
	ID string

	// Extra holds claims with unknown keys so they survive a round trip.
	Extra map[string]any
}

// ExpiredAt reports whether the token is no longer valid at now. A token
// without an expiry is treated as expired.
func (c *Claims) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(c.ExpiresAt)
}

// HasRole reports whether role is among the granted roles.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of c so cached claims can be handed out
// without callers sharing the role slice or Extra map.
func (c *Claims) Clone() *Claims {
	if c == nil {
		return nil
	}
	out := *c
	out.Roles = slices.Clone(c.Roles)
	out.Extra = maps.Clone(c.Extra)
	return &out
}

// FromMap converts claim-shaped attributes, such as those carried by an
// identity some other layer authenticated, into typed Claims using the same
// rules as Parse.
func FromMap(m map[string]any) Claims {
	return claimsFromMap(jwt.MapClaims(m))
}

// mapClaims flattens c into the generic claim map handed to the signer.
// Known keys always win over colliding Extra entries.
func (c Claims) mapClaims() jwt.MapClaims {
	m := make(jwt.MapClaims, len(c.Extra)+7)
	maps.Copy(m, c.Extra)

	setString(m, ClaimSubject, c.Subject)
	setString(m, ClaimUserID, c.UserID)
	setString(m, ClaimClientID, c.ClientID)
	setString(m, ClaimID, c.ID)

	if c.Roles != nil {
		m[ClaimRoles] = c.Roles
	} else {
		delete(m, ClaimRoles)
	}
	if !c.IssuedAt.IsZero() {
		m[ClaimIssuedAt] = c.IssuedAt.Unix()
	} else {
		delete(m, ClaimIssuedAt)
	}
	if !c.ExpiresAt.IsZero() {
		m[ClaimExpiresAt] = c.ExpiresAt.Unix()
	} else {
		delete(m, ClaimExpiresAt)
	}

	return m
}

func setString(m jwt.MapClaims, key, value string) {
	if value == "" {
		delete(m, key)
		return
	}
	m[key] = value
}

// claimsFromMap builds typed Claims out of a parsed payload. A known key
// holding the wrong type is dropped rather than failing the whole parse.
func claimsFromMap(m jwt.MapClaims) Claims {
	var c Claims

	for key, value := range m {
		switch key {
		case ClaimSubject:
			c.Subject, _ = value.(string)
		case ClaimUserID:
			c.UserID, _ = value.(string)
		case ClaimClientID:
			c.ClientID, _ = value.(string)
		case ClaimID:
			c.ID, _ = value.(string)
		case ClaimRoles:
			c.Roles = stringSlice(value)
		case ClaimIssuedAt:
			c.IssuedAt = unixTime(value)
		case ClaimExpiresAt:
			c.ExpiresAt = unixTime(value)
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]any)
			}
			c.Extra[key] = value
		}
	}

	return c
}

func stringSlice(v any) []string {
	if ss, ok := v.([]string); ok {
		return slices.Clone(ss)
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil
		}
		out = append(out, s)
	}
	return out
}

func unixTime(v any) time.Time {
	var secs int64
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return time.Time{}
			}
			i = int64(f)
		}
		secs = i
	case float64:
		secs = int64(n)
	case int64:
		secs = n
	case int:
		secs = int64(n)
	case time.Time:
		return n.UTC().Truncate(time.Second)
	default:
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
