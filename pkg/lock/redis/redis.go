// Package redis implements the distributed-lock seam on Redis.
//
// Each fingerprint maps to one Redis key acquired with SET NX PX and an
// owner token, so only the holder can release it. The adapter behaves as
// a mutex per fingerprint: Redis cannot express weighted permits, so the
// policy's MaxConcurrency is ignored.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/veloxcache/velox/pkg/velox"
)

// DefaultPrefix namespaces lock keys.
const DefaultPrefix = "velox:lock:"

// DefaultLockTTL bounds how long a crashed holder can keep a lock.
const DefaultLockTTL = 30 * time.Second

// DefaultRetryInterval is the polling interval while waiting for a held
// lock.
const DefaultRetryInterval = 10 * time.Millisecond

// releaseScript deletes the lock key only when the owner token matches.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Config configures the Redis lock adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string

	// Prefix namespaces lock keys (default: velox:lock:).
	Prefix string

	// LockTTL is the per-lock expiry guarding against crashed holders
	// (default 30s).
	LockTTL time.Duration

	// RetryInterval is the polling interval while a lock is held
	// elsewhere (default 10ms).
	RetryInterval time.Duration
}

// Locker acquires per-fingerprint locks on Redis.
type Locker struct {
	config Config
	client *goredis.Client
}

// New creates a Redis lock adapter from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Locker, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis locker requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis locker: invalid URL: %w", err)
	}

	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}

	return &Locker{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Acquire implements velox.Locker. It polls SET NX PX until the lock is
// obtained or timeout elapses; timeout failures wrap velox.ErrTimeout.
func (l *Locker) Acquire(ctx context.Context, fingerprint string, timeout time.Duration, _ int64) (func(), error) {
	key := l.config.Prefix + fingerprint
	token := uuid.NewString()

	acquireCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		ok, err := l.client.SetNX(acquireCtx, key, token, l.config.LockTTL).Result()
		if err == nil && ok {
			return func() { l.release(key, token) }, nil
		}
		if err != nil && acquireCtx.Err() == nil {
			return nil, fmt.Errorf("redis locker: %w", err)
		}

		select {
		case <-acquireCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("lock %q: %w", fingerprint, velox.ErrTimeout)
		case <-time.After(l.config.RetryInterval):
		}
	}
}

// release is detached from the caller's context so a canceled operation
// still frees the lock.
func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}

// Forget implements velox.Locker. Redis locks expire on their own; there
// is no per-fingerprint state to drop.
func (l *Locker) Forget(string) {}

// Close releases the underlying client.
func (l *Locker) Close() error {
	return l.client.Close()
}

// Verify Locker implements the lock seam.
var _ velox.Locker = (*Locker)(nil)
