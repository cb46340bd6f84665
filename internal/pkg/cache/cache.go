package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/quicktoolshq/quicktools/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache connects to the Redis-compatible cache backing artifact
// metadata, API rate limiting, and write coalescing.
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	if pong, err := client.Ping(ctx).Result(); err != nil {
		log.Warnf("could not connect to cache at %s:%s: %v", host, port, err)
	} else {
		log.Infof("connected to cache: %s", pong)
	}
}

// GetClient returns the shared cache client, connecting lazily if needed.
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Set stores a value under key for the given expiry.
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a string value by key. A missing key surfaces as redis.Nil.
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes a key from the cache.
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}
