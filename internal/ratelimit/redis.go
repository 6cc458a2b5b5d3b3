package ratelimit

import (
	"context"
	_ "embed"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed token_bucket.lua
var tokenBucketScript string

// RedisLimiter shares token buckets across gateway replicas through a Redis
// Lua script, so the refill-then-deduct sequence stays atomic server-side.
// Bucket staleness is handled by key TTLs instead of a sweeper.
type RedisLimiter struct {
	client    *redis.Client
	limits    map[Scope]Limit
	scriptSHA string
	keyTTL    time.Duration
}

// NewRedisLimiter pings the server and preloads the bucket script. keyTTL
// bounds how long an untouched bucket survives.
func NewRedisLimiter(client *redis.Client, limits map[Scope]Limit, keyTTL time.Duration) (*RedisLimiter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	sha, err := client.ScriptLoad(ctx, tokenBucketScript).Result()
	if err != nil {
		return nil, err
	}
	return &RedisLimiter{client: client, limits: limits, scriptSHA: sha, keyTTL: keyTTL}, nil
}

func (r *RedisLimiter) Allow(ctx context.Context, scope Scope, key string, cost float64) (Decision, error) {
	limit, ok := r.limits[scope]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	bucketKey := "ratelimit:" + string(scope) + ":" + key
	now := float64(time.Now().UnixMicro()) / 1e6

	result, err := r.client.EvalSha(ctx, r.scriptSHA, []string{bucketKey},
		limit.Rate,
		limit.Burst,
		now,
		cost,
		int(r.keyTTL.Seconds()),
	).Result()
	if err != nil {
		return Decision{}, err
	}

	values, ok := result.([]any)
	if !ok || len(values) != 2 {
		return Decision{}, errors.New("unexpected token bucket script reply")
	}

	allowed, _ := values[0].(int64)
	retryAfter := asFloat(values[1])

	return Decision{
		Allowed:    allowed == 1,
		RetryAfter: time.Duration(retryAfter * float64(time.Second)),
	}, nil
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}
