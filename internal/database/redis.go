package database

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"github.com/tokensim/backend/internal/logger"
)

// InitRedis initializes the Redis client. It returns nil when Redis is unreachable;
// callers treat Redis features as optional.
func InitRedis() *redis.Client {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	addr := viper.GetString("redis.host") + ":" + viper.GetString("redis.port")
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warnf("[REDIS] Connection to %s failed, continuing without Redis: %v", addr, err)
		_ = rdb.Close()
		return nil
	}

	logger.Infof("[REDIS] Connection established to %s", addr)
	return rdb
}
