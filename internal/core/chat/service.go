package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/kbchat/internal/core/datatools"
	"github.com/jinford/kbchat/internal/core/index"
	"github.com/jinford/kbchat/internal/core/memory"
)

// Service はクエリごとのツール選択・根拠収集・プロンプト組み立て・生成委譲を
// 担う Router。会話をまたいで保持する状態は Memory のみ。
type Service struct {
	searcher   Searcher
	registry   *datatools.Registry
	memory     *memory.Log
	generator  Generator
	counter    TokenCounter
	classifier Classifier
	cfg        Config
	logger     *slog.Logger
}

// ServiceOption は Service 構築時のオプション
type ServiceOption func(*Service)

// WithClassifier はLLMベースのツール分類器を設定する
func WithClassifier(classifier Classifier) ServiceOption {
	return func(s *Service) {
		s.classifier = classifier
	}
}

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する。全コラボレータは明示的に注入する。
func NewService(
	searcher Searcher,
	registry *datatools.Registry,
	log *memory.Log,
	generator Generator,
	counter TokenCounter,
	cfg Config,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		searcher:  searcher,
		registry:  registry,
		memory:    log,
		generator: generator,
		counter:   counter,
		cfg:       cfg.withDefaults(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Chat は1ターン分の質問応答を実行する。
// 状態遷移は intake → selection → gathering → assembly → generation → commit。
// 生成が失敗したターンは Memory へ何も追記しない（ターン単位で原子的）。
func (s *Service) Chat(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	history := s.memory.Recent(s.cfg.MemoryWindow)
	invocations := s.selectTools(ctx, query)

	excerpts := s.retrieve(ctx, query)
	toolResults := s.executeTools(ctx, invocations, query)

	noGrounding := len(excerpts) == 0 && len(toolResults) == 0
	if noGrounding {
		s.logger.Info("no grounding found, answering from memory and query only", "query", query)
	}

	keptExcerpts, keptTurns, prompt := fitToBudget(
		s.counter, s.cfg.MaxPromptTokens, query, excerpts, toolResults, history, noGrounding)
	if len(keptExcerpts) < len(excerpts) || len(keptTurns) < len(history) {
		s.logger.Info("prompt truncated to fit budget",
			"excerpts", len(keptExcerpts), "droppedExcerpts", len(excerpts)-len(keptExcerpts),
			"turns", len(keptTurns), "droppedTurns", len(history)-len(keptTurns),
		)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	answer, err := s.generator.Generate(genCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	s.memory.Append(memory.NewTurn(memory.RoleUser, query))
	s.memory.Append(memory.NewTurn(memory.RoleAssistant, answer))

	sources := make([]SourceReference, 0, len(keptExcerpts))
	for _, match := range keptExcerpts {
		sources = append(sources, SourceReference{
			SourceID: match.SourceID,
			Ordinal:  match.Ordinal,
			Score:    match.Score,
		})
	}
	toolsUsed := make([]string, 0, len(toolResults))
	for _, result := range toolResults {
		toolsUsed = append(toolsUsed, result.Tool)
	}

	return &Result{
		Answer:      answer,
		Sources:     sources,
		ToolsUsed:   toolsUsed,
		NoGrounding: noGrounding,
	}, nil
}

// ClearMemory は会話履歴を破棄する
func (s *Service) ClearMemory() {
	s.memory.Clear()
}

// History は直近 n 件の会話履歴を古い順で返す
func (s *Service) History(n int) []memory.Turn {
	return s.memory.Recent(n)
}

// retrieve はドキュメント検索を実行する。
// インデックス利用不可はターンを失敗させず、構造化データのみへ縮退する。
func (s *Service) retrieve(ctx context.Context, query string) []index.Match {
	matches, err := s.searcher.Search(ctx, query, s.cfg.TopK)
	if err != nil {
		if errors.Is(err, index.ErrIndexUnavailable) {
			s.logger.Warn("vector index unavailable, degrading to structured-only answering", "error", err)
		} else {
			s.logger.Warn("document retrieval failed", "error", err)
		}
		return nil
	}
	return matches
}

// executeTools は選択されたツールを実行する。
// 引数エラーは引数なし実行でリトライし、それでも失敗したツールは
// スキップする。片方の情報源のエラーがもう片方の参照を妨げることはない。
func (s *Service) executeTools(ctx context.Context, invocations []Invocation, query string) []ToolResult {
	var results []ToolResult
	for _, inv := range invocations {
		tool, err := s.registry.Get(inv.Tool)
		if err != nil {
			s.logger.Warn("unknown tool selected", "tool", inv.Tool)
			continue
		}

		output, err := tool.Execute(ctx, inv.Args)
		if errors.Is(err, datatools.ErrToolArgument) {
			s.logger.Warn("tool rejected arguments, retrying without them", "tool", inv.Tool, "error", err)
			output, err = tool.Execute(ctx, s.fallbackArgs(inv.Tool, query))
		}
		if err != nil {
			if errors.Is(err, datatools.ErrDataUnavailable) {
				s.logger.Warn("structured data unavailable, degrading to document-only answering", "tool", inv.Tool)
			} else {
				s.logger.Warn("tool execution failed", "tool", inv.Tool, "error", err)
			}
			continue
		}

		results = append(results, ToolResult{Tool: inv.Tool, Output: output})
	}
	return results
}
