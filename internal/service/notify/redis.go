package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ifuryst/repurpose/internal/config"
)

const (
	defaultKey   = "repurpose:jobs:wake"
	defaultBlock = 5 * time.Second
	// keep at most this many unconsumed signals
	maxBacklog = 1000
)

// RedisNotifier carries "a job is pending" signals between the API and
// worker processes over a Redis list
type RedisNotifier struct {
	client *redis.Client
	key    string
	block  time.Duration
	logger *zap.Logger
}

func NewRedisNotifier(cfg *config.RedisConfig, logger *zap.Logger) (*RedisNotifier, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisNotifierWithClient(client, cfg.Key, defaultBlock, logger), nil
}

func NewRedisNotifierWithClient(client *redis.Client, key string, block time.Duration, logger *zap.Logger) *RedisNotifier {
	if strings.TrimSpace(key) == "" {
		key = defaultKey
	}
	if block <= 0 {
		block = defaultBlock
	}
	return &RedisNotifier{
		client: client,
		key:    key,
		block:  block,
		logger: logger,
	}
}

// Notify publishes a wake-up signal for jobID
func (n *RedisNotifier) Notify(ctx context.Context, jobID uuid.UUID) error {
	_, err := n.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, n.key, jobID.String())
		pipe.LTrim(ctx, n.key, 0, maxBacklog-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish job notification: %w", err)
	}
	return nil
}

// Wait blocks until a signal arrives or ctx ends
func (n *RedisNotifier) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := n.client.BLPop(ctx, n.block, n.key).Result()
		if err == nil {
			if len(res) == 2 {
				n.logger.Debug("Received job notification", zap.String("job_id", res[1]))
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		return fmt.Errorf("failed to wait for job notification: %w", err)
	}
}

func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
