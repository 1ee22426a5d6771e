package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

// AskAction は単発の質問に回答して終了する
func AskAction(ctx context.Context, cmd *cli.Command) error {
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("質問を指定してください: kbchat ask <question>")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := appCtx.Container.ChatService.Chat(ctx, question)
	if err != nil {
		return fmt.Errorf("回答の生成に失敗: %w", err)
	}

	fmt.Println(result.Answer)

	if cmd.Bool("show-sources") {
		printReferences(result)
		if result.NoGrounding {
			fmt.Println("(根拠となるドキュメント・データは見つかりませんでした)")
		}
	}
	return nil
}
