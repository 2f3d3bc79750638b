package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the part of go-redis the session package uses.
// *redis.Client and *redis.ClusterClient satisfy it.
type RedisClient interface {
	redis.Scripter
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore stores sessions as JSON values that expire with the session.
type RedisStore struct {
	rdb    RedisClient
	prefix string
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a session store that keeps previews in Redis
// under prefix.
func NewRedisStore(rdb RedisClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix + "preview:", now: time.Now}
}

// Save writes s as JSON with its remaining lifetime as the key TTL.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("save preview %s: already expired", s.ID)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	if err := r.rdb.Set(ctx, r.prefix+s.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("save preview %s: %w", s.ID, err)
	}
	return nil
}

// Get loads the session with id. Missing and expired keys give ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.rdb.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load preview %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode preview %s: %w", id, err)
	}
	if s.Expired(r.now()) {
		return nil, ErrNotFound
	}
	return &s, nil
}

// Delete removes the session key.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.prefix+id).Err(); err != nil {
		return fmt.Errorf("delete preview %s: %w", id, err)
	}
	return nil
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker implements Locker with SET NX and a random token, so a
// commit that outlives its TTL cannot release a successor's lock.
type RedisLocker struct {
	rdb    RedisClient
	prefix string
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker returns a Locker shared by every instance using rdb.
func NewRedisLocker(rdb RedisClient, prefix string) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix + "lock:"}
}

// Acquire sets the lock key if it is absent. It returns ErrLocked when
// the key is held.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &redisLock{rdb: l.rdb, key: lockKey, token: token}, nil
}

type redisLock struct {
	rdb   RedisClient
	key   string
	token string
}

func (l *redisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
