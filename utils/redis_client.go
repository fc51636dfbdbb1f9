package utils

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/perkclaims/config"
)

var redisClient *redis.Client

// InitRedis creates the shared Redis client. A failed ping is returned but the
// client is kept, so Redis can come up after the API does.
func InitRedis(cfg config.AppConfig) (*redis.Client, error) {
	redisClient = redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return redisClient, redisClient.Ping(ctx).Err()
}

// GetRedis returns the shared client, or nil when Redis was never initialized.
// Callers fall back to uncached or in-memory behaviour on nil.
func GetRedis() *redis.Client {
	return redisClient
}
