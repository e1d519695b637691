package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MR-GREEN1337/Thoth-sub001/config"
)

// Client Redis 客户端封装
// 当前用于 Token 黑名单、Fork 计数缓存与速率限制
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Token 已过期，无需加入黑名单
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── Fork 计数缓存 ──
//
// 课程详情页的直接 Fork 数走缓存；Fork 提交成功后刷新，课程删除后失效。
// 血缘树永远不缓存，每次请求重新构建。

const forkCountPrefix = "course:fork_count:"
const forkCountTTL = 10 * time.Minute

// GetForkCount 读取课程 Fork 计数缓存；未命中返回 (0, false)
func (c *Client) GetForkCount(ctx context.Context, courseID string) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, forkCountPrefix+courseID).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // 脏数据按未命中处理
	}
	return n, true, nil
}

// SetForkCount 写入课程 Fork 计数缓存
func (c *Client) SetForkCount(ctx context.Context, courseID string, count int64) error {
	return c.rdb.Set(ctx, forkCountPrefix+courseID, strconv.FormatInt(count, 10), forkCountTTL).Err()
}

// InvalidateForkCount 删除课程后使其计数缓存失效
func (c *Client) InvalidateForkCount(ctx context.Context, courseID string) error {
	return c.rdb.Del(ctx, forkCountPrefix+courseID).Err()
}

// ── 速率限制 ──

// CheckRateLimit 固定窗口计数器：窗口内第一次请求设置过期时间，
// 超过 limit 返回 false
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
