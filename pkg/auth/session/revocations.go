// Package session keeps the server-side list of access tokens that were
// signed out before they expired.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"

	redisclient "github.com/freshmarket/storefront-backend/pkg/redis"
)

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

type keyer interface {
	RevokedTokenKey(tokenID string) string
}

// Checker is the read side used by the auth middleware.
type Checker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

var errTokenIDRequired = errors.New("token id is required")

// Revocations stores one Redis key per revoked jti. Each key expires together
// with the token it blocks, so the list never outgrows the live token set.
type Revocations struct {
	store store
	keys  keyer
	now   func() time.Time
}

func NewRevocations(client *redisclient.Client) (*Revocations, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Revocations{store: client, keys: client, now: time.Now}, nil
}

// Revoke blocks tokenID until expiresAt. Tokens that already expired are ignored.
func (r *Revocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return errTokenIDRequired
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	// round up so the key never expires before the token does
	ttl = ttl.Truncate(time.Second) + time.Second
	return r.store.Set(ctx, r.keys.RevokedTokenKey(tokenID), "1", ttl)
}

func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return false, errTokenIDRequired
	}
	_, err := r.store.Get(ctx, r.keys.RevokedTokenKey(tokenID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redislib.Nil):
		return false, nil
	default:
		return false, err
	}
}
