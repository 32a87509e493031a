package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// AvailabilityCache はInventoryKeyごとの空席数キャッシュを管理する
// 在庫が変化する操作（Hold/Commit/Release）のたびに無効化すること
type AvailabilityCache struct {
	client *redis.Client
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

// GetCount はキーの空席数をキャッシュから取得する
func (c *AvailabilityCache) GetCount(ctx context.Context, key inventory.Key) (int, error) {
	val, err := c.client.Get(ctx, c.countKey(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetCount はキーの空席数をキャッシュに保存する
func (c *AvailabilityCache) SetCount(ctx context.Context, key inventory.Key, count int, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.countKey(key), count, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はキーのキャッシュを無効化する
func (c *AvailabilityCache) Invalidate(ctx context.Context, key inventory.Key) error {
	if err := c.client.Del(ctx, c.countKey(key)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) countKey(key inventory.Key) string {
	return fmt.Sprintf("seats:available:%s", key)
}
