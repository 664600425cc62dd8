package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/config"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {

	redisURL := cfg.RedisConnect.GetDSN()
	slog.Info("Connecting to Redis", slog.String("url", fmt.Sprintf("redis://%s:<password>@%s:%s", cfg.RedisConnect.Username, cfg.RedisConnect.Host, cfg.RedisConnect.Port)))

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Error("Failed to parse Redis URL", slog.Any("error", err))
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.DB = cfg.RedisConnect.DB

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", slog.Any("error", err))
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("✅ Successfully connected to Redis")
	return client, nil

}

type RateLimitRepository interface {
	CheckRateLimit(ctx context.Context, userName string) (bool, int, int, error)
}

type rateLimitRepository struct {
	client *redis.Client
	cfg    *config.RateConfig
}

func NewRateLimitRepo(client *redis.Client, cfg *config.RateConfig) RateLimitRepository {
	return &rateLimitRepository{client: client, cfg: cfg}
}

func rateLimitKey(userName string) string {
	return "basket_updates:" + userName
}

// CheckRateLimit records one basket write for userName and returns isAllowed,
// requests left and seconds to wait.
func (r *rateLimitRepository) CheckRateLimit(ctx context.Context, userName string) (bool, int, int, error) {

	cacheCtx, cancel := utils.WithCacheTimeout(ctx)
	defer cancel()

	key := rateLimitKey(userName)

	now := time.Now().UnixMilli()
	windowStart := now - r.cfg.WindowSize.Milliseconds()

	pipe := r.client.Pipeline()

	// drop writes that fell out of the window
	pipe.ZRemRangeByScore(cacheCtx, key, "0", strconv.FormatInt(windowStart, 10))

	// members are unique so writes within the same millisecond all count
	pipe.ZAdd(cacheCtx, key, redis.Z{Score: float64(now), Member: uuid.NewString()})

	count := pipe.ZCard(cacheCtx, key)

	pipe.Expire(cacheCtx, key, r.cfg.WindowSize)

	if _, err := pipe.Exec(cacheCtx); err != nil {
		return false, 0, 0, fmt.Errorf("redis pipeline error for rate limit check: %w", err)
	}

	requests := count.Val()
	remaining := r.cfg.MaxRequests - requests

	if requests > r.cfg.MaxRequests {

		scores, err := r.client.ZRangeArgsWithScores(cacheCtx, redis.ZRangeArgs{
			Key: key, Start: 0, Stop: 0,
		}).Result()
		if err != nil || len(scores) == 0 {
			return false, 0, int(r.cfg.WindowSize.Seconds()), fmt.Errorf("failed to get oldest request time: %w", err)
		}

		oldest := int64(scores[0].Score)
		retryAfterMs := max(oldest+r.cfg.WindowSize.Milliseconds()-now, 0)

		// round up so clients never retry inside the window
		return false, 0, int((retryAfterMs + 999) / 1000), nil
	}

	return true, int(remaining), 0, nil
}
