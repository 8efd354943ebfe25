package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"support-router/logger"
	"support-router/models"
)

// RedisHistoryStore keeps onboarding conversations in Redis lists so
// several instances can share them. Keys expire ttl after the last append.
type RedisHistoryStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisHistoryStore(client redis.Cmdable, ttl time.Duration) *RedisHistoryStore {
	return &RedisHistoryStore{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and waits up to maxWait for the
// server to answer a ping.
func NewRedisClient(ctx context.Context, redisURL string, maxWait time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxWait
	ping := func() error {
		return client.Ping(ctx).Err()
	}
	notify := func(err error, next time.Duration) {
		logger.Log.Warn("Redis not reachable, retrying", zap.Error(err), zap.Duration("next", next))
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(bo, ctx), notify); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func historyKey(psid string) string {
	return "history:" + psid
}

func (s *RedisHistoryStore) Load(ctx context.Context, psid string) ([]models.Turn, error) {
	raw, err := s.client.LRange(ctx, historyKey(psid), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	turns := make([]models.Turn, 0, len(raw))
	for _, item := range raw {
		var turn models.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode history turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *RedisHistoryStore) Append(ctx context.Context, psid string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return err
		}
		values = append(values, data)
	}

	key := historyKey(psid)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, -MaxHistoryTurns, -1)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) Clear(ctx context.Context, psid string) error {
	if err := s.client.Del(ctx, historyKey(psid)).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
