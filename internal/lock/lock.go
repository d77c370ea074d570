package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"autoquote/internal/config"
)

// ErrLocked is returned when another holder owns the key.
var ErrLocked = errors.New("lock held elsewhere")

// Locker grants exclusive, expiring ownership of a key. The returned release
// func is safe to call more than once and never removes a lock that expired
// and was taken by someone else.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// MemoryLocker serializes holders inside one process.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]memoryEntry{}, clock: time.Now}
}

func (m *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if e, ok := m.held[key]; ok && now.Before(e.expires) {
		return nil, fmt.Errorf("%s: %w", key, ErrLocked)
	}
	token := uuid.NewString()
	m.held[key] = memoryEntry{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if e, ok := m.held[key]; ok && e.token == token {
				delete(m.held, key)
			}
		})
	}, nil
}

// RedisLocker shares locks across processes with SET NX PX.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	full := r.prefix + key
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", full, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", full, ErrLocked)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, r.client, []string{full}, token).Err()
		})
	}, nil
}

// NewRedisClient connects and pings with a 5s timeout.
func NewRedisClient(cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// New returns a redis locker when REDIS_ADDR is set, otherwise an in-process
// one. The close func releases the redis connection.
func New(cfg config.Config) (Locker, func() error, error) {
	if cfg.RedisAddr == "" {
		return NewMemoryLocker(), func() error { return nil }, nil
	}
	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewRedisLocker(client, "autoquote:lock:"), client.Close, nil
}
