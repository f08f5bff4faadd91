package training

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
)

var ErrTurnInFlight = errors.New("another answer for this session is still being processed")

// Locker serializes turns per session. ok is false when the key is already
// held; the caller must not wait for it.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// MemoryLocker is a process-local Locker. Entries expire after ttl so a lost
// unlock cannot wedge a session forever.
type MemoryLocker struct {
	c   *cache.Cache
	ttl time.Duration
}

func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &MemoryLocker{c: cache.New(ttl, 2*ttl), ttl: ttl}
}

func (l *MemoryLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := l.c.Add(key, struct{}{}, l.ttl); err != nil {
		return nil, false, nil
	}
	return func() { l.c.Delete(key) }, true, nil
}

func lockKey(userID, scenarioID string) string {
	return "training:turn:" + userID + ":" + scenarioID
}
