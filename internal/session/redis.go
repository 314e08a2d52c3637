package session

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-console/internal/config"
)

const (
	redisCredentialKey = "console:credential"
	redisLastGuildKey  = "console:last_guild_id"
)

// RedisStore keeps client state in Redis for deployments where console
// state must survive the host (shared operator boxes, ephemeral CI runs).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis using the provided configuration.
func NewRedisStore(cfg config.SessionConfig, logger *zap.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &RedisStore{client: client}
}

// Credential returns the stored bearer credential, empty when signed out.
func (s *RedisStore) Credential() (string, error) {
	val, err := s.client.Get(context.Background(), redisCredentialKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// SetCredential persists the bearer credential.
func (s *RedisStore) SetCredential(credential string) error {
	return s.client.Set(context.Background(), redisCredentialKey, credential, 0).Err()
}

// ClearCredential deletes the bearer credential.
func (s *RedisStore) ClearCredential() error {
	return s.client.Del(context.Background(), redisCredentialKey).Err()
}

// LastGuildID returns the last-active guild persisted by a previous run.
func (s *RedisStore) LastGuildID() (string, error) {
	val, err := s.client.Get(context.Background(), redisLastGuildKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// SetLastGuildID persists the active guild for the next run.
func (s *RedisStore) SetLastGuildID(guildID string) error {
	return s.client.Set(context.Background(), redisLastGuildKey, guildID, 0).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() {
	if s != nil && s.client != nil {
		_ = s.client.Close()
	}
}
