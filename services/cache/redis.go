// Package cache stores school search results in redis.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/studentpakistan/backend/core/school"
)

const (
	keyPrefix       = "studentpk:schools:search:"
	scanBatch       = 100
	pingTimeout     = 5 * time.Second
	defaultTTL      = time.Minute
	connectAttempts = 3
)

// Redis implements school.SearchCache.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ school.SearchCache = (*Redis)(nil)

// Open connects to the redis server at `url` (eg: redis://localhost:6379/0).
func Open(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	opts.MaxRetries = connectAttempts
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return New(client, ttl), nil
}

func New(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func (c *Redis) GetSchools(ctx context.Context, key string) ([]school.School, bool, error) {
	data, err := c.client.Get(ctx, searchKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "getting cached schools")
	}

	var schools []school.School
	if err = json.Unmarshal(data, &schools); err != nil {
		return nil, false, errors.Wrap(err, "decoding cached schools")
	}
	return schools, true, nil
}

func (c *Redis) SetSchools(ctx context.Context, key string, schools []school.School) error {
	if schools == nil {
		schools = []school.School{}
	}
	data, err := json.Marshal(schools)
	if err != nil {
		return errors.Wrap(err, "encoding schools")
	}
	return errors.Wrap(c.client.Set(ctx, searchKey(key), data, c.ttl).Err(), "caching schools")
}

// InvalidateSchools drops all the cached searches.
func (c *Redis) InvalidateSchools(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", scanBatch).Result()
		if err != nil {
			return errors.Wrap(err, "scanning cached searches")
		}
		if len(keys) > 0 {
			if err = c.client.Del(ctx, keys...).Err(); err != nil {
				return errors.Wrap(err, "deleting cached searches")
			}
		}
		if cursor = next; cursor == 0 {
			return nil
		}
	}
}

// searchKey hashes the search so user input never ends up in key patterns.
func searchKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return keyPrefix + hex.EncodeToString(sum[:])
}
