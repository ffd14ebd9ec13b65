package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates exclusive access across replicas. The debug
// session takes a lock per canvas so only one live run exists for a flow
// even when several workspace instances serve it.
type DistributedLocker interface {
	// Lock blocks until the lock for key is acquired, the context is
	// cancelled, or the TTL expires (implementation specific).
	// The returned UnlockFunc MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
