package ownership

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyFormat = "nereus:job:%s:owner"

// NewRedisStore returns a Store keeping owners in redis, each entry expiring after ttl.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis url")
	}
	return newRedisStore(ctx, redis.NewClient(opts), ttl)
}

func newRedisStore(ctx context.Context, cli *redis.Client, ttl time.Duration) (Store, error) {
	if err := cli.Ping(ctx).Err(); err != nil {
		cli.Close()
		return nil, errors.Wrap(err, "cannot ping redis")
	}
	return &redisStore{cli: cli, ttl: ttl}, nil
}

type redisStore struct {
	cli *redis.Client
	ttl time.Duration
}

func (r *redisStore) Record(ctx context.Context, jobID, userID string) error {
	if err := r.cli.Set(ctx, fmt.Sprintf(keyFormat, jobID), userID, r.ttl).Err(); err != nil {
		return errors.Wrapf(err, "cannot record owner of job %s", jobID)
	}
	return nil
}

func (r *redisStore) Owner(ctx context.Context, jobID string) (string, bool, error) {
	o, err := r.cli.Get(ctx, fmt.Sprintf(keyFormat, jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "cannot get owner of job %s", jobID)
	}
	return o, true, nil
}

func (r *redisStore) Close() error {
	return r.cli.Close()
}
