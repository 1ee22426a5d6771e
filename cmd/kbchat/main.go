package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/kbchat/cmd/kbchat/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:  "env",
			Usage: "環境変数ファイルパス",
			Value: ".env",
		}
	}

	app := &cli.Command{
		Name:  "kbchat",
		Usage: "社内ナレッジベースと構造化データを横断する QA チャットボット",
		Commands: []*cli.Command{
			{
				Name:   "chat",
				Usage:  "対話モードでチャットを開始",
				Flags:  []cli.Flag{envFlag()},
				Action: commands.ChatAction,
			},
			{
				Name:  "ask",
				Usage: "単発の質問に回答して終了",
				Flags: []cli.Flag{
					envFlag(),
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "参照したドキュメントとツールを表示",
					},
				},
				ArgsUsage: "<question>",
				Action:    commands.AskAction,
			},
			{
				Name:  "index",
				Usage: "ベクトルインデックス管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "build",
						Usage:  "ナレッジベースを読み込み未登録チャンクを追加",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.IndexBuildAction,
					},
					{
						Name:   "rebuild",
						Usage:  "インデックスを破棄して全件を再投入",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.IndexRebuildAction,
					},
					{
						Name:   "status",
						Usage:  "インデックスの登録件数を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.IndexStatusAction,
					},
				},
			},
			{
				Name:  "db",
				Usage: "構造化データ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "init",
						Usage: "CSVファイルから会社データベースを作成",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:  "employees",
								Usage: "従業員CSVのパス",
								Value: "./data/employees.csv",
							},
							&cli.StringFlag{
								Name:  "customers",
								Usage: "顧客CSVのパス",
								Value: "./data/customers.csv",
							},
						},
						Action: commands.DBInitAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
