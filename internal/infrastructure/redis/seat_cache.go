package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// SeatCache は上映回ごとの空席数キャッシュを管理する
// 値は参考値であり、予約可否の判定には使わない
type SeatCache struct {
	client *redis.Client
}

// NewSeatCache は新しいSeatCacheインスタンスを作成する
func NewSeatCache(client *redis.Client) *SeatCache {
	return &SeatCache{client: client}
}

// GetAvailableCount は上映回の空席数をキャッシュから取得する
func (c *SeatCache) GetAvailableCount(ctx context.Context, screeningID string) (int, error) {
	val, err := c.client.Get(ctx, availableCountKey(screeningID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetAvailableCount は上映回の空席数をキャッシュに保存する
func (c *SeatCache) SetAvailableCount(ctx context.Context, screeningID string, count int, ttl time.Duration) error {
	if err := c.client.Set(ctx, availableCountKey(screeningID), count, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は上映回のキャッシュを無効化する
func (c *SeatCache) Invalidate(ctx context.Context, screeningID string) error {
	if err := c.client.Del(ctx, availableCountKey(screeningID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func availableCountKey(screeningID string) string {
	return fmt.Sprintf("seats:available:%s", screeningID)
}
