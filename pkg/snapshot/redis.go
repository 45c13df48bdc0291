package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storedesk/notifykit/pkg/notification"
)

// RedisConfig configures the redis connection used by RedisStore.
type RedisConfig struct {
	ConnectionURL  string        `env:"SNAPSHOT_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"SNAPSHOT_REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"SNAPSHOT_REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"SNAPSHOT_REDIS_CONNECT_TIMEOUT" envDefault:"10s"`
	KeyPrefix      string        `env:"SNAPSHOT_KEY_PREFIX" envDefault:"notifykit:snapshot:"`
	TTL            time.Duration `env:"SNAPSHOT_TTL" envDefault:"24h"`
}

// ConnectRedis opens a client and pings it until it answers, retrying up to
// cfg.RetryAttempts times.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}

	var lastErr error
	for range max(cfg.RetryAttempts, 1) {
		client := redis.NewClient(opt)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, errors.Join(ErrRedisNotReady, lastErr)
}

// Healthcheck pings the client.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// RedisStore keeps snapshots as JSON strings under prefix+key.
type RedisStore struct {
	db     redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces keys (default "notifykit:snapshot:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithTTL expires snapshots; zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

func NewRedisStore(db redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		db:     db,
		prefix: "notifykit:snapshot:",
		ttl:    24 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRedisStoreFromConfig applies the prefix and TTL of cfg.
func NewRedisStoreFromConfig(db redis.UniversalClient, cfg RedisConfig) *RedisStore {
	return NewRedisStore(db, WithKeyPrefix(cfg.KeyPrefix), WithTTL(cfg.TTL))
}

func (s *RedisStore) Load(ctx context.Context, key string) (Snapshot, bool, error) {
	if err := validateKey(key); err != nil {
		return Snapshot{}, false, err
	}
	b, err := s.db.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	snap, err := decode(b)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, list []notification.Notification) error {
	if err := validateKey(key); err != nil {
		return err
	}
	b, err := encode(Snapshot{SavedAt: s.now().UTC(), Notifications: clone(list)})
	if err != nil {
		return err
	}
	return s.db.Set(ctx, s.prefix+key, b, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.db.Del(ctx, s.prefix+key).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.db.Close()
}
