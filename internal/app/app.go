package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/api"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/api/handler"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/api/middleware"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/application"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/config"
	redisinfra "github.com/sanosuguru/go-cinema-seat-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/seatlock"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/worker"
)

// App は予約APIサーバーと定期照合ワーカーをまとめたもの
type App struct {
	cfg *config.Config

	Echo       *echo.Echo
	Stores     *Stores
	Catalog    *application.CatalogService
	Seats      *application.SeatService
	Booking    *application.BookingService
	AsyncBook  *application.AsyncBookingService
	Metrics    *metrics.Metrics
	reconciler *worker.HoldReconciler

	locks *seatlock.Registry
	holds *worker.HoldScheduler
	pool  *worker.Pool
	redis *goredis.Client
}

type options struct {
	registry *prometheus.Registry
}

// Option は App の生成オプション
type Option func(*options)

// WithRegistry はメトリクスをデフォルトではなく reg に登録する
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// New は設定から App を組み立てる
func New(cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg}
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if o.registry != nil {
		a.Metrics = metrics.NewWithRegistry(o.registry)
		gatherer = o.registry
	} else {
		a.Metrics = metrics.Init()
	}

	stores, err := OpenStores(cfg)
	if err != nil {
		return nil, err
	}
	a.Stores = stores

	checks := map[string]handler.HealthCheck{"store": stores.Ping}

	var cache application.AvailabilityCache
	if cfg.Redis.Enabled {
		a.redis = redisinfra.NewClient(&cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisinfra.Ping(ctx, a.redis); err != nil {
			a.Close()
			return nil, err
		}
		cache = redisinfra.NewSeatCache(a.redis)
		checks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, a.redis) }
		logger.Info("空席数キャッシュにRedisを使用", zap.String("addr", cfg.Redis.Addr()))
	}

	a.locks, err = seatlock.New()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("座席ロックの初期化に失敗: %w", err)
	}
	a.holds = worker.NewHoldScheduler()
	a.pool = worker.NewPool(cfg.Booking.Workers, cfg.Booking.QueueSize, worker.QueuePolicy(cfg.Booking.QueuePolicy))
	a.Metrics.SetPoolCapacity(a.pool.Workers(), a.pool.QueueSize())

	a.Catalog = application.NewCatalogService(stores.TxManager, stores.Movies, stores.Screenings, stores.Seats)
	a.Seats = application.NewSeatService(stores.Seats, stores.Screenings, cache, cfg.Redis.CacheTTL)
	a.Booking = application.NewBookingService(application.BookingDeps{
		TxManager:  stores.TxManager,
		Seats:      stores.Seats,
		Bookings:   stores.Bookings,
		Screenings: stores.Screenings,
		Movies:     stores.Movies,
		Locks:      a.locks,
		Holds:      a.holds,
		Cache:      cache,
		Metrics:    a.Metrics,
		Options: application.BookingOptions{
			ReservationTTL:  cfg.Booking.ReservationTTL,
			LockHoldTTL:     cfg.Booking.LockHoldTTL,
			PendingTTL:      cfg.Booking.PendingTTL,
			SeatLockTimeout: cfg.Booking.SeatLockTimeout,
		},
	})
	a.AsyncBook = application.NewAsyncBookingService(a.Booking, a.pool, a.Metrics)
	a.reconciler = worker.NewHoldReconciler(a.Booking, cfg.Booking.SweepInterval)

	a.Echo = a.newEcho(checks, gatherer)
	return a, nil
}

func (a *App) newEcho(checks map[string]handler.HealthCheck, gatherer prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = a.cfg.Server.ReadTimeout
	e.Server.WriteTimeout = a.cfg.Server.WriteTimeout

	middleware.SetupMiddleware(e)
	e.Use(middleware.PrometheusMiddleware(a.Metrics))

	e.GET("/health", handler.NewHealthHandler(checks).Check)
	e.GET("/metrics",
		echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})),
		middleware.MetricsBasicAuth(a.cfg.Metrics),
	)

	handler.RegisterRoutes(e.Group("/api/v1"), handler.Handlers{
		Catalog: handler.NewCatalogHandler(a.Catalog),
		Seat:    handler.NewSeatHandler(a.Seats),
		Booking: handler.NewBookingHandler(a.AsyncBook),
	})
	return e
}

// Run はHTTPサーバーと照合ワーカーを起動し、ctx の終了でグレースフルに停止する
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + a.cfg.Server.Port
		logger.Info("サーバー起動", zap.String("addr", addr))
		if err := a.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバー起動エラー: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.reconciler.Start(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("サーバーをシャットダウンしています...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("サーバーシャットダウンエラー: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close はワーカーと接続を解放する。Run の終了後に呼ぶ
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.holds != nil {
		a.holds.Stop()
	}
	if a.locks != nil {
		a.locks.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("Redis切断エラー", zap.Error(err))
		}
	}
	if a.Stores != nil {
		if err := a.Stores.Close(); err != nil {
			logger.Warn("データベース切断エラー", zap.Error(err))
		}
	}
}
