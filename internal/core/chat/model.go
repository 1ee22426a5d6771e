package chat

import (
	"context"
	"errors"
	"time"

	"github.com/jinford/kbchat/internal/core/datatools"
	"github.com/jinford/kbchat/internal/core/index"
)

var (
	// ErrGenerationFailed は生成サービスの呼び出しが失敗した場合のエラー。
	// 自動リトライは行わず、ユーザーへそのまま提示する（再質問が回復手段）。
	ErrGenerationFailed = errors.New("generation failed")

	// ErrGenerationTimeout は生成サービスがタイムアウトした場合のエラー
	ErrGenerationTimeout = errors.New("generation timed out")
)

// Generator はテキスト生成サービスへの委譲インターフェース
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Searcher はドキュメント検索インターフェース（index.Service が実装）
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]index.Match, error)
}

// Classifier はLLMによるツール選択インターフェース。
// 出力は外部入力として扱い、Router 側でレジストリと引数スキーマに対して
// 必ず検証する。失敗時はキーワード方式が単独で決定する。
type Classifier interface {
	SelectTools(ctx context.Context, query string, catalog []datatools.Description) ([]Invocation, error)
}

// TokenCounter はプロンプト予算の見積もりに使うトークン数カウンタ
type TokenCounter interface {
	Count(text string) int
}

// Invocation は1回のツール呼び出し指示を表す
type Invocation struct {
	Tool string
	Args map[string]any
}

// ToolResult はツール実行の結果（クエリごとに生成され、応答後に破棄される）
type ToolResult struct {
	Tool   string
	Output string
}

// SourceReference は回答の根拠となったドキュメント参照を表す
type SourceReference struct {
	SourceID string
	Ordinal  int
	Score    float64
}

// Result は1ターン分の応答を表す
type Result struct {
	Answer      string
	Sources     []SourceReference
	ToolsUsed   []string
	NoGrounding bool // どの情報源からも根拠が得られなかったターン
}

// Config は Router の動作設定
type Config struct {
	TopK              int           // ドキュメント検索の取得件数（デフォルト: 4）
	MemoryWindow      int           // プロンプトへ含める直近発話数（デフォルト: 10）
	MaxPromptTokens   int           // プロンプト全体のトークン予算（デフォルト: 3000）
	GenerationTimeout time.Duration // 生成呼び出しのタイムアウト（デフォルト: 60s）
}

// DefaultConfig はデフォルトの Router 設定を返す
func DefaultConfig() Config {
	return Config{
		TopK:              4,
		MemoryWindow:      10,
		MaxPromptTokens:   3000,
		GenerationTimeout: 60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	out := c
	if out.TopK <= 0 {
		out.TopK = 4
	}
	if out.MemoryWindow <= 0 {
		out.MemoryWindow = 10
	}
	if out.MaxPromptTokens <= 0 {
		out.MaxPromptTokens = 3000
	}
	if out.GenerationTimeout <= 0 {
		out.GenerationTimeout = 60 * time.Second
	}
	return out
}
