// seed はサンプルの作品・上映回・座席を投入するコマンド
//
// 用法:
//
//	seed [--driver postgres] [--rows 10] [--seats-per-row 10] [--force]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/app"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/application"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/config"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := createCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		os.Exit(1)
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "サンプルの作品と上映回を投入する",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "driver",
				Usage: "ストアドライバー (memory / postgres)。未指定なら STORE_DRIVER",
			},
			&cli.IntFlag{
				Name:  "rows",
				Usage: "上映回あたりの列数",
				Value: 10,
			},
			&cli.IntFlag{
				Name:  "seats-per-row",
				Usage: "1列あたりの座席数",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "既存データがあっても投入する",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg := config.Load()
			if d := cmd.String("driver"); d != "" {
				cfg.Store.Driver = d
			}
			logger.Set(logger.NewWithLevel(cfg.App.Env, cfg.App.LogLevel))
			defer func() { _ = logger.Sync() }()

			stores, err := app.OpenStores(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := stores.Close(); err != nil {
					logger.Warn("データベース切断エラー", zap.Error(err))
				}
			}()

			catalog := application.NewCatalogService(stores.TxManager, stores.Movies, stores.Screenings, stores.Seats)
			res, err := app.SeedCatalog(ctx, catalog, app.SeedOptions{
				Rows:        cmd.Int("rows"),
				SeatsPerRow: cmd.Int("seats-per-row"),
				Force:       cmd.Bool("force"),
			})
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Println("既にデータがあるためスキップしました")
				return nil
			}
			fmt.Printf("作品 %d 件、上映回 %d 件、座席 %d 席を登録しました\n", res.Movies, res.Screenings, res.Seats)
			return nil
		},
	}
}
