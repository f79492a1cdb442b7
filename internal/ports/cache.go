package ports

import (
	"context"
	"time"
)

// IdempotencyStore is a shared key-value store with an atomic conditional set.
// Implementations must make SetIfAbsent a single store-side operation.
type IdempotencyStore interface {
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}
