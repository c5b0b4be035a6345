package config

// Redis backs session snapshots, the user profile cache, rate limiting and
// the response cache.  All of them fall back to in-process behaviour when
// NewRedisClient returns nil.

import (
	"context"
	"crypto/tls"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects using environment variables:
//   REDIS_URL - redis:// or rediss:// URL (takes precedence)
//   REDIS_ADDR or REDIS_HOST/REDIS_PORT - server address
//   REDIS_PASSWORD, REDIS_DB - credentials and database number
//   REDIS_TLS - enable TLS when true
// REDIS_DISABLED=true skips Redis entirely.  The returned client is nil when
// Redis is disabled or does not answer a ping.
func NewRedisClient() *redis.Client {
	if envBool("REDIS_DISABLED", false) {
		return nil
	}
	opts, err := redisOptions()
	if err != nil {
		log.Printf("redis: %v", err)
		return nil
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis: ping %s failed, continuing without redis: %v", opts.Addr, err)
		_ = client.Close()
		return nil
	}
	return client
}

func redisOptions() (*redis.Options, error) {
	if u := os.Getenv("REDIS_URL"); u != "" {
		return redis.ParseURL(u)
	}
	addr := getenv("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	opts := &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
	}
	if envBool("REDIS_TLS", false) {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
