package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/authority/internal/authority/store"
	"github.com/aussiebroadwan/authority/pkg/slogx"
)

const disabledTokensPrefix = "disabled_tokens:"

// disabledToken is one member of a client's revocation set. The expiry is
// kept next to the token so pruning needs no signature check.
type disabledToken struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"exp"`
}

// RevocationStore tracks, per client, access tokens that must be refused
// before they expire naturally.
//
// Revoke is a read-modify-write with no cross-process lock; two concurrent
// revocations for one client may lose one of the tokens.
type RevocationStore struct {
	cache  store.Cache
	access *AccessTokenManager
}

func NewRevocationStore(cache store.Cache, access *AccessTokenManager) (*RevocationStore, error) {
	if cache == nil || access == nil {
		return nil, fmt.Errorf("%w: revocation store needs a cache and an access token manager", ErrMissingDependency)
	}
	return &RevocationStore{cache: cache, access: access}, nil
}

func disabledTokensKey(clientID string) string {
	return disabledTokensPrefix + clientID
}

// IsRevoked reports whether token is in clientID's revocation set. Stale
// members are not filtered here; they expire on their own anyway.
func (r *RevocationStore) IsRevoked(ctx context.Context, clientID, token string) (bool, error) {
	set, err := r.load(ctx, clientID)
	if err != nil {
		return false, err
	}
	for _, e := range set {
		if e.Token == token {
			return true, nil
		}
	}
	return false, nil
}

// Revoke adds token to clientID's revocation set, dropping members that
// have expired by now. Tokens that are already invalid at now are not
// added. An empty result removes the set entirely.
func (r *RevocationStore) Revoke(ctx context.Context, clientID, token string, now time.Time) error {
	set, err := r.load(ctx, clientID)
	if err != nil {
		if !errors.Is(err, errCorruptSet) {
			return err
		}
		slogx.FromContext(ctx).Warn("discarding unreadable revocation set",
			"client_id", clientID, "err", err)
		set = nil
	}

	kept := set[:0]
	for _, e := range set {
		if e.Token == token || !now.Before(time.Unix(e.ExpiresAt, 0)) {
			continue
		}
		kept = append(kept, e)
	}

	if claims := r.access.Validate(token, now); claims != nil {
		kept = append(kept, disabledToken{Token: token, ExpiresAt: claims.ExpiresAt.Unix()})
	}

	key := disabledTokensKey(clientID)
	if len(kept) == 0 {
		if err := r.cache.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete revocation set: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	if err := r.cache.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("write revocation set: %w", err)
	}
	return nil
}

var errCorruptSet = errors.New("revocation set is not valid json")

func (r *RevocationStore) load(ctx context.Context, clientID string) ([]disabledToken, error) {
	raw, err := r.cache.Get(ctx, disabledTokensKey(clientID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read revocation set: %w", err)
	}

	var set []disabledToken
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("%w: %w", errCorruptSet, err)
	}
	return set, nil
}
