package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/kbchat/internal/core/chat"
	"github.com/jinford/kbchat/internal/core/memory"
)

// ChatAction は対話モードのチャットループを実行する
func ChatAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	svc := appCtx.Container.ChatService

	fmt.Println("kbchat - 社内ナレッジベース QA チャットボット")
	fmt.Println("質問を入力してください。/help でコマンド一覧を表示します。")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			fmt.Println("\nbye")
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "/quit", "/exit", "exit":
			fmt.Println("bye")
			return nil
		case "/help", "help":
			printHelp()
			continue
		case "/clear", "clear":
			svc.ClearMemory()
			fmt.Println("会話履歴をクリアしました")
			continue
		case "/history", "history":
			printHistory(svc)
			continue
		}

		result, err := svc.Chat(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			printChatError(err)
			continue
		}

		fmt.Println("\n" + result.Answer)
		printReferences(result)
	}
}

func printHelp() {
	fmt.Println("コマンド:")
	fmt.Println("  /help     このヘルプを表示")
	fmt.Println("  /clear    会話履歴をクリア")
	fmt.Println("  /history  会話履歴を表示")
	fmt.Println("  /quit     終了 (exit でも可)")
	fmt.Println()
	fmt.Println("答えられること:")
	fmt.Println("  - 社内ドキュメント（休暇規定、API制限、FAQ、料金プランなど）")
	fmt.Println("  - 従業員・顧客・売上などの構造化データ")
}

func printHistory(svc *chat.Service) {
	turns := svc.History(memory.DefaultCapacity)
	if len(turns) == 0 {
		fmt.Println("会話履歴はまだありません")
		return
	}

	fmt.Printf("会話履歴 (%d件):\n", len(turns))
	for _, turn := range turns {
		label := "You"
		if turn.Role == memory.RoleAssistant {
			label = "Bot"
		}
		fmt.Printf("  [%s] %s: %s\n", turn.Timestamp.Format("15:04:05"), label, turn.Content)
	}
}

func printReferences(result *chat.Result) {
	if len(result.Sources) > 0 {
		fmt.Println("\n参照ドキュメント:")
		for _, src := range result.Sources {
			fmt.Printf("  - %s (chunk %d, score %.3f)\n", src.SourceID, src.Ordinal, src.Score)
		}
	}
	if len(result.ToolsUsed) > 0 {
		fmt.Printf("使用ツール: %s\n", strings.Join(result.ToolsUsed, ", "))
	}
}

func printChatError(err error) {
	switch {
	case errors.Is(err, chat.ErrGenerationTimeout):
		fmt.Println("回答の生成がタイムアウトしました。もう一度お試しください。")
	case errors.Is(err, chat.ErrGenerationFailed):
		fmt.Println("回答の生成に失敗しました。もう一度お試しください。")
	default:
		fmt.Printf("エラー: %v\n", err)
	}
}
