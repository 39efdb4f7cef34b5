// Package maintenance runs the cluster-wide scheduled tasks: retention
// migration against the case-management service and stale in-progress marker
// purging. Each task runs under a named distributed lock so only one node
// executes it at a time.
package maintenance

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker acquires a named lock for the duration of one task execution.
// Release is returned only when the lock was acquired.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(ctx context.Context) error, acquired bool, err error)
}

// releaseScript deletes the lock key only when it still holds this node's
// token, so an expired lock reacquired elsewhere is never released by us.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// RedisLocker implements Locker with SET NX PX on a shared redis.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLocker builds a locker on the given client. The prefix namespaces
// lock keys per deployment.
func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "hearingvault:lock"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(ctx context.Context) error, bool, error) {
	token, err := lockToken()
	if err != nil {
		return nil, false, err
	}
	key := l.prefix + ":" + name
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !acquired {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", name, err)
		}
		return nil
	}
	return release, true, nil
}

func lockToken() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// LocalLocker is a process-local Locker for single-node deployments and
// tests.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]struct{}
}

// NewLocalLocker builds an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]struct{}{}}
}

func (l *LocalLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(ctx context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[name]; taken {
		return nil, false, nil
	}
	l.held[name] = struct{}{}
	release := func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, name)
		return nil
	}
	return release, true, nil
}
