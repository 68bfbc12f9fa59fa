// Package app は設定からストア・サービス・HTTPサーバーを組み立てる
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/config"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/movie"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/screening"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/logger"
)

// Stores は永続化層の実装一式
type Stores struct {
	TxManager  transaction.Manager
	Movies     movie.Repository
	Screenings screening.Repository
	Seats      seat.Repository
	Bookings   booking.Repository

	// DB は postgres ドライバーの場合のみ設定される
	DB *sqlx.DB
}

// OpenStores は設定されたドライバーでストアを開く
func OpenStores(cfg *config.Config) (*Stores, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		store := memory.NewStore()
		logger.Info("インメモリストアを使用")
		return &Stores{
			TxManager:  memory.NewTxManager(store),
			Movies:     memory.NewMovieRepository(store),
			Screenings: memory.NewScreeningRepository(store),
			Seats:      memory.NewSeatRepository(store),
			Bookings:   memory.NewBookingRepository(store),
		}, nil

	case config.DriverPostgres:
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Store.AutoMigrate {
			if err := postgres.RunMigrations(db.DB, cfg.Store.MigrationsPath); err != nil {
				db.Close()
				return nil, err
			}
		}
		logger.Info("PostgreSQLストアを使用",
			zap.String("host", cfg.Database.Host),
			zap.String("dbname", cfg.Database.DBName),
		)
		return &Stores{
			TxManager:  postgres.NewTxManager(db),
			Movies:     postgres.NewMovieRepository(db),
			Screenings: postgres.NewScreeningRepository(db),
			Seats:      postgres.NewSeatRepository(db),
			Bookings:   postgres.NewBookingRepository(db),
			DB:         db,
		}, nil

	default:
		return nil, fmt.Errorf("不明なストアドライバーです: %q", cfg.Store.Driver)
	}
}

// Ping はストアの接続を確認する。インメモリストアは常に成功する
func (s *Stores) Ping(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return postgres.Ping(ctx, s.DB)
}

// Close はストアの接続を閉じる
func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
