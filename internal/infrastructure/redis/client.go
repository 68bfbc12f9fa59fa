package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/config"
)

// 空席数の取得に失敗した場合は上映回テーブルから数え直す
const (
	dialTimeout = time.Second
	ioTimeout   = 500 * time.Millisecond
)

// NewClient は空席数キャッシュ用のRedisクライアントを作成する
func NewClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})
}

// Ping は起動時とヘルスチェックで接続を確認する
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis(%s)への接続に失敗しました: %w", client.Options().Addr, err)
	}
	return nil
}
