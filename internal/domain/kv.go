package domain

import (
	"context"
	"time"
)

// KeyValueStore is the short-TTL cache every OTP, bridge-token and session
// marker rides on. Load and Take return ErrNotFound for absent or expired keys.
type KeyValueStore interface {
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Load(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, keys ...string) error
	// Take atomically reads and deletes key; concurrent callers see at most one success.
	Take(ctx context.Context, key string) ([]byte, error)
}
