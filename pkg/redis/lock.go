package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrDisabled is returned by Redis-backed helpers when Redis is off
var ErrDisabled = errors.New("redis: disabled")

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Lock is a SET NX PX mutex shared by every process using the same key.
// The TTL bounds how long a crashed holder can block others.
type Lock struct {
	client *Client
	key    string
	ttl    time.Duration
}

// NewLock creates a lock on key
func NewLock(client *Client, key string, ttl time.Duration) *Lock {
	return &Lock{client: client, key: key, ttl: ttl}
}

// TryLock attempts to take the lock without blocking
func (l *Lock) TryLock(ctx context.Context) (func(), bool, error) {
	if !l.client.Enabled() {
		return nil, false, ErrDisabled
	}

	token := uuid.NewString()
	ok, err := l.client.Redis().SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client.Redis(), []string{l.key}, token).Err()
	}
	return unlock, true, nil
}

// Locked reports whether the key is held
func (l *Lock) Locked(ctx context.Context) (bool, error) {
	if !l.client.Enabled() {
		return false, ErrDisabled
	}

	n, err := l.client.Redis().Exists(ctx, l.key).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock %s: %w", l.key, err)
	}
	return n > 0, nil
}

// INCCRegenerationKey is the lock key guarding series regeneration
func INCCRegenerationKey(seriesPath string) string {
	return fmt.Sprintf("incc:lock:regenerate:%s", seriesPath)
}
