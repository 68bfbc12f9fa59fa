package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/screening"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	redisinfra "github.com/sanosuguru/go-cinema-seat-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/logger"
)

const (
	defaultSeatCacheTTL = 5 * time.Second
)

// AvailabilityCache は上映回の空席数キャッシュ
// 未登録の場合は redisinfra.ErrCacheMiss を返す
type AvailabilityCache interface {
	GetAvailableCount(ctx context.Context, screeningID string) (int, error)
	SetAvailableCount(ctx context.Context, screeningID string, count int, ttl time.Duration) error
	Invalidate(ctx context.Context, screeningID string) error
}

type SeatService struct {
	seatRepo      seat.Repository
	screeningRepo screening.Repository
	cache         AvailabilityCache
	cacheTTL      time.Duration
}

// NewSeatService は座席参照サービスを作成する。cache は nil でもよい
func NewSeatService(sr seat.Repository, scr screening.Repository, cache AvailabilityCache, cacheTTL time.Duration) *SeatService {
	if cacheTTL <= 0 {
		cacheTTL = defaultSeatCacheTTL
	}
	return &SeatService{seatRepo: sr, screeningRepo: scr, cache: cache, cacheTTL: cacheTTL}
}

func (s *SeatService) GetSeat(ctx context.Context, id string) (*seat.Seat, error) {
	return s.seatRepo.GetByID(ctx, id)
}

func (s *SeatService) GetSeatsByScreening(ctx context.Context, screeningID string) ([]*seat.Seat, error) {
	if _, err := s.screeningRepo.GetByID(ctx, screeningID); err != nil {
		return nil, fmt.Errorf("上映回取得に失敗: %w", err)
	}
	return s.seatRepo.GetByScreeningID(ctx, screeningID)
}

// CountAvailableSeats は上映回の空席数を返す
// キャッシュの値は最大 cacheTTL だけ古い場合がある
func (s *SeatService) CountAvailableSeats(ctx context.Context, screeningID string) (int, error) {
	// キャッシュから取得を試みる
	if s.cache != nil {
		count, err := s.cache.GetAvailableCount(ctx, screeningID)
		if err == nil {
			logger.Debug("キャッシュヒット", zap.String("screening_id", screeningID), zap.Int("count", count))
			return count, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	sc, err := s.screeningRepo.GetByID(ctx, screeningID)
	if err != nil {
		return 0, err
	}
	count := sc.AvailableSeats

	// キャッシュに保存
	if s.cache != nil {
		if cacheErr := s.cache.SetAvailableCount(ctx, screeningID, count, s.cacheTTL); cacheErr != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}

	return count, nil
}

// InvalidateCache は上映回のキャッシュを無効化する
func (s *SeatService) InvalidateCache(ctx context.Context, screeningID string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, screeningID); err != nil {
			logger.Warn("キャッシュ無効化エラー", zap.Error(err))
		}
	}
}
