package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/helpyt/internal/db"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cache 按视频 ID 缓存频道信息。
type Cache interface {
	Get(ctx context.Context, key string) (ChannelMetadata, bool, error)
	Put(ctx context.Context, key string, meta ChannelMetadata) error
}

// GormCache 将缓存存放在数据库中，每个 Key 一行，超过 ttl 视为过期。
type GormCache struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewGormCache 创建 GormCache。
func NewGormCache(gdb *gorm.DB, ttl time.Duration) *GormCache {
	return &GormCache{db: gdb, ttl: ttl, now: db.NowUTC}
}

// WithClock 替换时钟，主要用于测试。
func (c *GormCache) WithClock(now func() time.Time) *GormCache {
	if now != nil {
		c.now = now
	}
	return c
}

// Get 读取未过期的缓存。
func (c *GormCache) Get(ctx context.Context, key string) (ChannelMetadata, bool, error) {
	if key == "" {
		return ChannelMetadata{}, false, nil
	}
	var row db.ChannelMetadataCache
	err := c.db.WithContext(ctx).Where(&db.ChannelMetadataCache{Key: key}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ChannelMetadata{}, false, nil
	}
	if err != nil {
		return ChannelMetadata{}, false, err
	}
	if c.ttl > 0 && c.now().Sub(row.FetchedAt) > c.ttl {
		return ChannelMetadata{}, false, nil
	}
	return ChannelMetadata{
		ChannelID:         row.ChannelID,
		ChannelLink:       row.ChannelLink,
		ChannelName:       row.ChannelName,
		Description:       row.Description,
		SubscriptionCount: row.SubscriptionCount,
	}, true, nil
}

// Put 以 Key 为冲突键覆盖写入。
func (c *GormCache) Put(ctx context.Context, key string, meta ChannelMetadata) error {
	row := db.ChannelMetadataCache{
		Key:               key,
		ChannelID:         meta.ChannelID,
		ChannelLink:       meta.ChannelLink,
		ChannelName:       meta.ChannelName,
		Description:       meta.Description,
		SubscriptionCount: meta.SubscriptionCount,
		FetchedAt:         c.now(),
	}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// RedisCache 使用 Redis 的过期时间实现缓存。
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache 连接 Redis 并校验可用性。
func NewRedisCache(ctx context.Context, addr, password string, dbIndex int, ttl time.Duration, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbIndex,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger != nil {
		logger.Info("connected to Redis", zap.String("addr", addr), zap.Int("db", dbIndex))
	}

	return &RedisCache{client: client, ttl: ttl, prefix: "helpyt:yt:video:"}, nil
}

// Get 读取缓存，键不存在视为未命中。
func (c *RedisCache) Get(ctx context.Context, key string) (ChannelMetadata, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+strings.TrimSpace(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ChannelMetadata{}, false, nil
	}
	if err != nil {
		return ChannelMetadata{}, false, err
	}
	var meta ChannelMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ChannelMetadata{}, false, fmt.Errorf("decode cached metadata: %w", err)
	}
	return meta, true, nil
}

// Put 写入缓存并设置过期时间。
func (c *RedisCache) Put(ctx context.Context, key string, meta ChannelMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+strings.TrimSpace(key), raw, c.ttl).Err()
}

// Close 关闭 Redis 连接。
func (c *RedisCache) Close() error {
	return c.client.Close()
}
