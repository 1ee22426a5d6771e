package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/kbchat/internal/core/kb"
)

// IndexBuildAction はナレッジベースを読み込み、未登録のチャンクだけを追加する
func IndexBuildAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	chunks, err := loadChunks(ctx, appCtx)
	if err != nil {
		return err
	}

	added, err := appCtx.Container.IndexService.AddAll(ctx, chunks)
	if err != nil {
		return fmt.Errorf("インデックス追加に失敗: %w", err)
	}

	fmt.Printf("チャンク %d 件中 %d 件を追加しました（残りは登録済み）\n", len(chunks), added)
	return nil
}

// IndexRebuildAction はインデックスを破棄して全チャンクを再投入する
func IndexRebuildAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	chunks, err := loadChunks(ctx, appCtx)
	if err != nil {
		return err
	}

	added, err := appCtx.Container.IndexService.Rebuild(ctx, chunks)
	if err != nil {
		return fmt.Errorf("インデックス再構築に失敗: %w", err)
	}

	fmt.Printf("インデックスを再構築しました（%d 件）\n", added)
	return nil
}

// IndexStatusAction はインデックスの登録件数を表示する
func IndexStatusAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	count, err := appCtx.Container.IndexService.Count(ctx)
	if err != nil {
		return fmt.Errorf("インデックス状態の取得に失敗: %w", err)
	}

	fmt.Printf("登録チャンク数: %d\n", count)
	return nil
}

func loadChunks(ctx context.Context, appCtx *AppContext) ([]kb.Chunk, error) {
	documents, err := appCtx.Container.Loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("ナレッジベースの読み込みに失敗: %w", err)
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("ナレッジベースにドキュメントがありません: %s", appCtx.Config.KnowledgeBase.Source)
	}

	var chunks []kb.Chunk
	for _, doc := range documents {
		split, err := appCtx.Container.Chunker.Split(doc)
		if err != nil {
			return nil, fmt.Errorf("チャンク分割に失敗 (%s): %w", doc.SourceID, err)
		}
		chunks = append(chunks, split...)
	}

	appCtx.Logger.Info("knowledge base chunked",
		"documents", len(documents), "chunks", len(chunks))
	return chunks, nil
}
