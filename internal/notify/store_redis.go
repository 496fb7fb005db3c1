package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	delayedIndexKey     = "notify:delayed"
	delayedPayloadKey   = "notify:delayed:payload:"
	delayedPullPageSize = 256
)

// pullDueScript pops every envelope id due <= now together with its payload,
// atomically, so concurrent sweeps (or multiple processes) never dispatch the
// same envelope twice.
var pullDueScript = redis.NewScript(`
-- KEYS[1] = sorted-set index (score = due unix ms)
-- ARGV[1] = now unix ms
-- ARGV[2] = payload key prefix
-- ARGV[3] = page size
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[3]))
local out = {}
for i, id in ipairs(ids) do
  local pkey = ARGV[2] .. id
  local payload = redis.call('GET', pkey)
  redis.call('ZREM', KEYS[1], id)
  redis.call('DEL', pkey)
  if payload then
    out[#out + 1] = payload
  end
end
return out
`)

// RedisDelayStore is the production DelayStore: a sorted set indexes envelope
// ids by due time, each payload lives under its own key. TTL expiry is not
// used for triggering anything; the scheduler's sweep pulls due entries
// explicitly.
type RedisDelayStore struct {
	rdb *redis.Client
}

func NewRedisDelayStore(rdb *redis.Client) *RedisDelayStore {
	return &RedisDelayStore{rdb: rdb}
}

func (s *RedisDelayStore) Put(ctx context.Context, key string, dueAt time.Time, env Envelope) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, delayedPayloadKey+key, raw, 0)
	pipe.ZAdd(ctx, delayedIndexKey, redis.Z{Score: float64(dueAt.UTC().UnixMilli()), Member: key})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisDelayStore) PullDue(ctx context.Context, now time.Time) ([]Envelope, error) {
	if s.rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	raws, err := pullDueScript.Run(ctx, s.rdb,
		[]string{delayedIndexKey},
		now.UTC().UnixMilli(), delayedPayloadKey, delayedPullPageSize,
	).StringSlice()
	if err != nil {
		return nil, err
	}

	out := make([]Envelope, 0, len(raws))
	for _, raw := range raws {
		var env Envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			// A corrupt entry is dropped rather than wedging the sweep.
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

func (s *RedisDelayStore) Delete(ctx context.Context, key string) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	pipe := s.rdb.TxPipeline()
	pipe.ZRem(ctx, delayedIndexKey, key)
	pipe.Del(ctx, delayedPayloadKey+key)
	_, err := pipe.Exec(ctx)
	return err
}
