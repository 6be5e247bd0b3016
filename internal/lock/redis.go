package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a ScopeLock backed by SET NX PX leases, for deployments where
// several processes share the datastore. Each acquisition stores a random
// token so Release can never free a lease a slower holder lost to expiry.
type Redis struct {
	client *redis.Client
	prefix string
	lease  time.Duration
	poll   time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedis returns a Redis ScopeLock. The lease bounds how long a crashed
// holder can block others; it must comfortably exceed the count+insert
// critical section.
func NewRedis(client *redis.Client, prefix string, lease time.Duration) *Redis {
	if prefix == "" {
		prefix = "scopelock"
	}
	if lease <= 0 {
		lease = 10 * time.Second
	}
	return &Redis{
		client: client,
		prefix: prefix,
		lease:  lease,
		poll:   20 * time.Millisecond,
		tokens: make(map[string]string),
	}
}

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// Acquire polls SET NX until the lease is obtained or the timeout
// elapses.
func (r *Redis) Acquire(ctx context.Context, key string, timeout time.Duration) error {
	token, err := randomToken()
	if err != nil {
		return err
	}
	full := r.prefix + ":" + key
	deadline := time.Now().Add(timeout)
	for {
		ok, err := r.client.SetNX(ctx, full, token, r.lease).Result()
		if err != nil {
			return err
		}
		if ok {
			r.mu.Lock()
			r.tokens[key] = token
			r.mu.Unlock()
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		select {
		case <-time.After(r.poll):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release deletes the lease if this instance still owns it.
func (r *Redis) Release(key string) {
	r.mu.Lock()
	token, ok := r.tokens[key]
	if ok {
		delete(r.tokens, key)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, r.client, []string{r.prefix + ":" + key}, token).Err()
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
