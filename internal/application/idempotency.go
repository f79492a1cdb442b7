package application

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

var inFlightMarker = []byte("processing")

// settleTimeout bounds MarkProcessed and Release, which run detached from the caller's
// context: a delivery whose client hung up must still settle its key.
const settleTimeout = 3 * time.Second

// IdempotencyGuard is the fast-path duplicate gate in front of the persisted callback
// timestamp. Store failures fail open: TryAcquire reports true and IsProcessed false, so
// money movement keeps flowing and the database check decides.
type IdempotencyGuard struct {
	store ports.IdempotencyStore
}

func NewIdempotencyGuard(store ports.IdempotencyStore) *IdempotencyGuard {
	return &IdempotencyGuard{store: store}
}

func CollectionCallbackKey(checkoutRequestID string) string {
	return "callback:" + checkoutRequestID
}

func DisbursementCallbackKey(b2cRequestID string) string {
	return "b2c_callback:" + b2cRequestID
}

// TryAcquire claims key for ttl. Only one concurrent caller gets true.
func (g *IdempotencyGuard) TryAcquire(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := g.store.SetIfAbsent(ctx, key, inFlightMarker, ttl)
	if err != nil {
		logFailOpen(ctx, "try_acquire", key, err)
		return true
	}
	return ok
}

// IsProcessed reports whether a result has been recorded for key. An in-flight claim
// without a result is not processed.
func (g *IdempotencyGuard) IsProcessed(ctx context.Context, key string) bool {
	value, found, err := g.store.Get(ctx, key)
	if err != nil {
		logFailOpen(ctx, "is_processed", key, err)
		return false
	}
	return found && !bytes.Equal(value, inFlightMarker)
}

func (g *IdempotencyGuard) MarkProcessed(ctx context.Context, key string, result []byte, ttl time.Duration) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if len(result) == 0 {
		result = []byte(`{}`)
	}
	if err := g.store.Set(ctx, key, result, ttl); err != nil {
		logFailOpen(ctx, "mark_processed", key, err)
	}
}

// Result returns the stored payload for key. found is false for unknown keys and for
// keys still held by an in-flight delivery.
func (g *IdempotencyGuard) Result(ctx context.Context, key string) ([]byte, bool, error) {
	value, found, err := g.store.Get(ctx, key)
	if err != nil || !found || bytes.Equal(value, inFlightMarker) {
		return nil, false, err
	}
	return value, true, nil
}

// Release drops key so the next delivery is processed again. It still runs when ctx is
// already cancelled.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := g.store.Delete(ctx, key); err != nil {
		slog.Default().WarnContext(ctx, "idempotency key release failed",
			"service", serviceName,
			"module", "application.idempotency",
			"layer", "application",
			"operation", "release",
			"outcome", "failure",
			"key", key,
			"error", err,
		)
		return err
	}
	return nil
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

func logFailOpen(ctx context.Context, operation, key string, err error) {
	slog.Default().WarnContext(ctx, "idempotency store unavailable",
		"service", serviceName,
		"module", "application.idempotency",
		"layer", "application",
		"operation", operation,
		"outcome", "fail_open",
		"key", key,
		"error", err,
	)
}
