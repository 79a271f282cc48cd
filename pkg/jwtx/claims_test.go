package jwtx

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestClaimsExpiredAt(t *testing.T) {
	exp := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	c := Claims{ExpiresAt: exp}

	require.False(t, c.ExpiredAt(exp.Add(-time.Second)))
	require.True(t, c.ExpiredAt(exp), "expiry instant itself is no longer valid")
	require.True(t, c.ExpiredAt(exp.Add(time.Minute)))

	var noExpiry Claims
	require.True(t, noExpiry.ExpiredAt(exp))
}

func TestClaimsHasRole(t *testing.T) {
	c := Claims{Roles: []string{"User", "Admin"}}
	require.True(t, c.HasRole("Admin"))
	require.False(t, c.HasRole("admin"))
}

func TestClaimsFromMapDropsWrongTypes(t *testing.T) {
	m := jwt.MapClaims{
		ClaimSubject:   42,
		ClaimRoles:     []any{"User", 7},
		ClaimUserID:    "u1",
		ClaimClientID:  []any{"dev1"},
		ClaimExpiresAt: "tomorrow",
		ClaimIssuedAt:  json.Number("1700000000"),
		"tenant":       "acme",
	}

	c := claimsFromMap(m)
	require.Empty(t, c.Subject)
	require.Nil(t, c.Roles)
	require.Equal(t, "u1", c.UserID)
	require.Empty(t, c.ClientID)
	require.True(t, c.ExpiresAt.IsZero())
	require.Equal(t, time.Unix(1700000000, 0).UTC(), c.IssuedAt)
	require.Equal(t, map[string]any{"tenant": "acme"}, c.Extra)
}

func TestMapClaimsKnownKeysWin(t *testing.T) {
	c := Claims{
		Subject: "a@x.com",
		Extra: map[string]any{
			ClaimSubject: "spoofed@x.com",
			ClaimRoles:   []string{"Admin"},
			"tenant":     "acme",
		},
	}

	m := c.mapClaims()
	require.Equal(t, "a@x.com", m[ClaimSubject])
	require.NotContains(t, m, ClaimRoles, "absent roles must not be smuggled in through Extra")
	require.Equal(t, "acme", m["tenant"])
}

func TestClone(t *testing.T) {
	c := &Claims{Subject: "a@x.com", Roles: []string{"User"}, Extra: map[string]any{"k": "v"}}
	cp := c.Clone()
	cp.Roles[0] = "Admin"
	cp.Extra["k"] = "changed"

	require.Equal(t, "User", c.Roles[0])
	require.Equal(t, "v", c.Extra["k"])
	require.Nil(t, (*Claims)(nil).Clone())
}

func TestFromMap(t *testing.T) {
	exp := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	c := FromMap(map[string]any{
		ClaimSubject:   "a@x.com",
		ClaimRoles:     []string{"User", "Admin"},
		ClaimUserID:    "u1",
		ClaimClientID:  "dev1",
		ClaimExpiresAt: exp,
		"tenant":       "acme",
	})

	require.Equal(t, "a@x.com", c.Subject)
	require.Equal(t, []string{"User", "Admin"}, c.Roles)
	require.Equal(t, "u1", c.UserID)
	require.Equal(t, "dev1", c.ClientID)
	require.True(t, exp.Equal(c.ExpiresAt))
	require.Equal(t, "acme", c.Extra["tenant"])
}
