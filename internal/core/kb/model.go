package kb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Document はナレッジベースから読み込んだ1ファイル分のドキュメントを表す。
// 読み込み後は不変。
type Document struct {
	SourceID    string // ナレッジベースルートからの相対パス
	ContentType string // MIMEタイプ（text/markdown, text/plain など）
	Text        string
}

// Chunk はドキュメントを分割した検索単位を表す。
type Chunk struct {
	ID       string // 決定的な識別子（同一入力からは常に同じIDが生成される）
	SourceID string
	Ordinal  int // ドキュメント内の通し番号（単調増加）
	Text     string

	// 元テキスト内のルーンオフセット。オーバーラップ除去による復元に使用する
	Start int
	End   int
}

// chunkID はソースID・通し番号・本文から決定的なチャンクIDを生成する。
// 再インデックス時に同一チャンクへ同一IDが付くことで add の冪等性が成立する。
func chunkID(sourceID string, ordinal int, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d:%s", sourceID, ordinal, text)))
	return hex.EncodeToString(sum[:])
}

// Loader はナレッジベースからドキュメント一覧を供給する。
// 実装は infra 層（ディレクトリ走査、Gitクローン）に置く。
type Loader interface {
	Load(ctx context.Context) ([]Document, error)
}
