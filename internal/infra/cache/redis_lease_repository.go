package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"spawn_warning_bot/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

const defaultLeaseKey = "spawnwarn:lease:sender"

// keyGrace keeps an expired record readable for a while so operators can see the last holder.
const keyGrace = time.Hour

// acquireScript applies the acquisition rule atomically on the server.
// KEYS[1] lease hash; ARGV[1] owner, ARGV[2] now ms, ARGV[3] expires ms, ARGV[4] key expiry ms.
var acquireScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'owner')
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at') or '0')
if owner and owner ~= ARGV[1] and expires > tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'owner', ARGV[1], 'expires_at', ARGV[3])
redis.call('PEXPIREAT', KEYS[1], ARGV[4])
return 1
`)

// RedisLeaseRepository stores the sender lease as a hash {owner, expires_at(ms)}.
type RedisLeaseRepository struct {
	client *redis.Client
	key    string
}

func NewRedisClient(redisURL string) (*redis.Client, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func NewRedisLeaseRepository(client *redis.Client) *RedisLeaseRepository {
	return &RedisLeaseRepository{client: client, key: defaultLeaseKey}
}

func (r *RedisLeaseRepository) GetLease(ctx context.Context) (*notification.Lease, error) {
	vals, err := r.client.HMGet(ctx, r.key, "owner", "expires_at").Result()
	if err != nil {
		return nil, fmt.Errorf("error reading lease: %w", err)
	}
	owner, _ := vals[0].(string)
	rawExp, _ := vals[1].(string)
	if owner == "" {
		return nil, notification.ErrLeaseNotFound
	}
	ms, err := strconv.ParseInt(rawExp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt lease expiry %q: %w", rawExp, err)
	}
	return &notification.Lease{Owner: owner, ExpiresAt: time.UnixMilli(ms)}, nil
}

func (r *RedisLeaseRepository) PutLease(ctx context.Context, l notification.Lease) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key, "owner", l.Owner, "expires_at", l.ExpiresAt.UnixMilli())
	pipe.PExpireAt(ctx, r.key, l.ExpiresAt.Add(keyGrace))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error writing lease: %w", err)
	}
	return nil
}

func (r *RedisLeaseRepository) AcquireLease(ctx context.Context, owner string, now, expiresAt time.Time) (bool, error) {
	res, err := acquireScript.Run(ctx, r.client, []string{r.key},
		owner, now.UnixMilli(), expiresAt.UnixMilli(), expiresAt.Add(keyGrace).UnixMilli(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("error acquiring lease: %w", err)
	}
	return res == 1, nil
}
