package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"emailai/internal/model"
	"emailai/pkg/metrics"
)

// Cache 按 actor 缓存统计结果（Redis JSON）
// Redis 出错时记录日志并当作未命中处理
type Cache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewCache(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

// Key stats:<actor>
func Key(actor string) string {
	return fmt.Sprintf("stats:%s", actor)
}

// Get 返回缓存的统计；未命中或出错时 ok=false
func (c *Cache) Get(ctx context.Context, actor string) (model.EmailStats, bool) {
	data, err := c.rdb.Get(ctx, Key(actor)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Stats cache get failed", zap.String("user_id", actor), zap.Error(err))
			metrics.IncrementStatsCache("error")
		} else {
			metrics.IncrementStatsCache("miss")
		}
		return model.EmailStats{}, false
	}

	var stats model.EmailStats
	if err := json.Unmarshal(data, &stats); err != nil {
		c.logger.Warn("Stats cache entry corrupted", zap.String("user_id", actor), zap.Error(err))
		metrics.IncrementStatsCache("error")
		return model.EmailStats{}, false
	}
	metrics.IncrementStatsCache("hit")
	return stats, true
}

// Set 写入缓存，失败只记录日志
func (c *Cache) Set(ctx context.Context, actor string, stats model.EmailStats) {
	data, err := json.Marshal(stats)
	if err != nil {
		c.logger.Error("Failed to encode stats", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, Key(actor), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Stats cache set failed", zap.String("user_id", actor), zap.Error(err))
	}
}

// Invalidate 删除 actor 的缓存（email.updated 事件触发）
func (c *Cache) Invalidate(ctx context.Context, actor string) error {
	if err := c.rdb.Del(ctx, Key(actor)).Err(); err != nil {
		return fmt.Errorf("invalidate stats cache: %w", err)
	}
	return nil
}
