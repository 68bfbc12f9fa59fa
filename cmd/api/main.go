package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/app"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/config"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logger.Fatal(".env の読み込みに失敗", zap.Error(err))
	}
	cfg := config.Load()

	logger.Set(logger.NewWithLevel(cfg.App.Env, cfg.App.LogLevel))
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg)
	if err != nil {
		logger.Fatal("初期化に失敗", zap.Error(err))
	}

	// シグナル待機
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = a.Run(ctx)
	stop()
	a.Close()

	if err != nil {
		logger.Error("サーバーが異常終了しました", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("サーバーが正常にシャットダウンしました")
}
