package redisstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func Ping(ctx context.Context, rdb *redis.Client) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rdb.Ping(cctx).Err()
}

// release deletes the key only if it still holds our token, so an expired lock
// re-acquired by someone else is left alone.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TurnLocker is a non-blocking lock on SET NX PX.
type TurnLocker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewTurnLocker(rdb *redis.Client, ttl time.Duration) *TurnLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &TurnLocker{rdb: rdb, ttl: ttl, prefix: "cyberguide:lock:"}
}

func (l *TurnLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}
	k := l.prefix + key

	ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = release.Run(cctx, l.rdb, []string{k}, token).Err()
	}
	return unlock, true, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
