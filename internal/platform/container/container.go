package container

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/kbchat/internal/core/chat"
	"github.com/jinford/kbchat/internal/core/datatools"
	"github.com/jinford/kbchat/internal/core/index"
	"github.com/jinford/kbchat/internal/core/kb"
	"github.com/jinford/kbchat/internal/core/memory"
	openaiinfra "github.com/jinford/kbchat/internal/infra/openai"
	"github.com/jinford/kbchat/internal/infra/kbload"
	"github.com/jinford/kbchat/internal/infra/postgres"
	"github.com/jinford/kbchat/internal/infra/sqlite"
	"github.com/jinford/kbchat/internal/infra/tokenizer"
	"github.com/jinford/kbchat/internal/platform/config"
	"github.com/jinford/kbchat/pkg/db"
)

// Container はアプリケーション全体の依存関係を保持する。
// ベクトルインデックスと構造化データはどちらも任意で、初期化に失敗しても
// 残りの情報源だけで動作を続ける（縮退はコアのエラー契約に委ねる）。
type Container struct {
	ChatService  *chat.Service
	IndexService *index.Service
	Chunker      *kb.Chunker
	Loader       kb.Loader
	DataRepo     *sqlite.Repository // 未接続の場合は nil

	logger   *slog.Logger
	database *db.DB
}

type containerOptions struct {
	logger *slog.Logger
	loader kb.Loader
	store  index.Store
}

// ContainerOption は Container 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerLoader はナレッジベースのローダーを差し替える
func WithContainerLoader(loader kb.Loader) ContainerOption {
	return func(opts *containerOptions) {
		opts.loader = loader
	}
}

// WithContainerStore はベクトルストアを差し替える
func WithContainerStore(store index.Store) ContainerOption {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// New は設定からコンテナを生成する
func New(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}

	c := &Container{logger: options.logger}

	// Chunker
	chunker, err := kb.NewChunker(cfg.KnowledgeBase.MaxChars, cfg.KnowledgeBase.OverlapChars)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}
	c.Chunker = chunker

	// Loader（ディレクトリまたはGit URL）
	c.Loader = options.loader
	if c.Loader == nil {
		c.Loader = newLoader(cfg, options.logger)
	}

	// ベクトルストア（PostgreSQL + pgvector）。接続失敗は縮退。
	store := options.store
	if store == nil {
		store = c.connectVectorStore(ctx, cfg)
	}

	// Embedder と IndexService
	embedder := openaiinfra.NewEmbedder(
		cfg.OpenAI.APIKey,
		openaiinfra.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openaiinfra.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
	)
	c.IndexService = index.NewService(store, embedder, index.WithLogger(options.logger))

	// 構造化データ（SQLite）。オープン失敗は縮退。
	var dataRepo datatools.Repository
	sqliteRepo, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		options.logger.Warn("structured data store unavailable", "path", cfg.SQLitePath, "error", err)
	} else {
		c.DataRepo = sqliteRepo
		dataRepo = sqliteRepo
	}
	registry := datatools.NewRegistry(dataRepo)

	// 生成とトークンカウント
	generator, err := openaiinfra.NewGenerator(
		cfg.OpenAI.APIKey,
		openaiinfra.WithChatModel(cfg.OpenAI.LLMModel),
		openaiinfra.WithTemperature(cfg.OpenAI.Temperature),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	counter, err := tokenizer.NewCounter()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}

	chatOpts := []chat.ServiceOption{chat.WithLogger(options.logger)}
	if cfg.Chat.UseLLMClassifier {
		classifier, err := openaiinfra.NewClassifier(
			cfg.OpenAI.APIKey,
			openaiinfra.WithClassifierModel(cfg.OpenAI.LLMModel),
		)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create tool classifier: %w", err)
		}
		chatOpts = append(chatOpts, chat.WithClassifier(classifier))
	}

	c.ChatService = chat.NewService(
		c.IndexService,
		registry,
		memory.NewLog(cfg.Chat.MemoryMaxTurns),
		generator,
		counter,
		chat.Config{
			TopK:              cfg.Chat.TopK,
			MemoryWindow:      cfg.Chat.MemoryWindow,
			MaxPromptTokens:   cfg.Chat.MaxPromptTokens,
			GenerationTimeout: cfg.Chat.GenerationTimeout,
		},
		chatOpts...,
	)

	return c, nil
}

// connectVectorStore はPostgreSQLへ接続してベクトルストアを返す。
// 接続またはスキーマ作成に失敗した場合は nil を返し、
// IndexService は ErrIndexUnavailable で縮退する。
func (c *Container) connectVectorStore(ctx context.Context, cfg *config.Config) index.Store {
	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		c.logger.Warn("vector index unavailable, continuing without document retrieval", "error", err)
		return nil
	}

	store := postgres.NewVectorStore(database.Pool, cfg.OpenAI.EmbeddingDimension)
	if err := store.EnsureSchema(ctx); err != nil {
		c.logger.Warn("vector index schema setup failed, continuing without document retrieval", "error", err)
		database.Close()
		return nil
	}

	c.database = database
	return store
}

func newLoader(cfg *config.Config, logger *slog.Logger) kb.Loader {
	source := cfg.KnowledgeBase.Source
	if isGitSource(source) {
		gitOpts := []kbload.GitLoaderOption{kbload.WithGitLogger(logger)}
		if cfg.KnowledgeBase.SSHKeyPath != "" {
			gitOpts = append(gitOpts, kbload.WithSSHKey(cfg.KnowledgeBase.SSHKeyPath, cfg.KnowledgeBase.SSHPassword))
		}
		return kbload.NewGitLoader(source, cfg.KnowledgeBase.CloneDir, gitOpts...)
	}
	return kbload.NewDirLoader(source, kbload.WithLogger(logger))
}

func isGitSource(source string) bool {
	return strings.Contains(source, "://") || strings.HasPrefix(source, "git@")
}

// Close は内部リソースを解放する
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.database != nil {
		c.database.Close()
	}
	if c.DataRepo != nil {
		_ = c.DataRepo.Close()
	}
}
