package database

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// RedisOptions builds client options from redis.url when set, otherwise from
// the host/port/password/db keys.
func RedisOptions() (*redis.Options, error) {
	if url := viper.GetString("redis.url"); url != "" {
		return redis.ParseURL(url)
	}

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.db", 0)

	return &redis.Options{
		Addr:     viper.GetString("redis.host") + ":" + viper.GetString("redis.port"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}, nil
}

// InitRedis connects to Redis. Drafts, sessions and QR codes live there, so
// callers treat a nil client as fatal.
func InitRedis() *redis.Client {
	opts, err := RedisOptions()
	if err != nil {
		log.Printf("Invalid Redis URL: %v", err)
		return nil
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Redis connection to %s failed: %v", opts.Addr, err)
		rdb.Close()
		return nil
	}

	log.Printf("Redis connection established (%s, db %d)", opts.Addr, opts.DB)
	return rdb
}
