package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定（ベクトルインデックス用）
	Database DatabaseConfig

	// OpenAI設定（Embeddings + 生成）
	OpenAI OpenAIConfig

	// ナレッジベース設定
	KnowledgeBase KnowledgeBaseConfig

	// 構造化データ設定
	SQLitePath string

	// チャット設定
	Chat ChatConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string
	Temperature        float64
}

// KnowledgeBaseConfig はナレッジベースの読み込み設定
type KnowledgeBaseConfig struct {
	// Source はディレクトリパスまたは Git URL
	Source string
	// CloneDir は Git ソースのローカルキャッシュ先
	CloneDir string
	// SSHKeyPath は Git ソースのSSH認証鍵
	SSHKeyPath  string
	SSHPassword string

	MaxChars     int
	OverlapChars int
}

// ChatConfig は会話ターンの動作設定
type ChatConfig struct {
	TopK              int
	MemoryMaxTurns    int
	MemoryWindow      int
	MaxPromptTokens   int
	GenerationTimeout time.Duration
	UseLLMClassifier  bool
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "kbchat"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "kbchat"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
			Temperature:        getEnvAsFloat("OPENAI_LLM_TEMPERATURE", 0.2),
		},
		KnowledgeBase: KnowledgeBaseConfig{
			Source:       getEnv("KB_SOURCE", "./knowledge_base"),
			CloneDir:     getEnv("KB_CLONE_DIR", defaultCloneDir()),
			SSHKeyPath:   getEnv("KB_SSH_KEY_PATH", ""),
			SSHPassword:  getEnv("KB_SSH_PASSWORD", ""),
			MaxChars:     getEnvAsInt("CHUNK_MAX_CHARS", 1000),
			OverlapChars: getEnvAsInt("CHUNK_OVERLAP_CHARS", 200),
		},
		SQLitePath: getEnv("SQLITE_PATH", "./data/company.db"),
		Chat: ChatConfig{
			TopK:              getEnvAsInt("SEARCH_TOP_K", 4),
			MemoryMaxTurns:    getEnvAsInt("MEMORY_MAX_TURNS", 20),
			MemoryWindow:      getEnvAsInt("MEMORY_WINDOW", 10),
			MaxPromptTokens:   getEnvAsInt("PROMPT_MAX_TOKENS", 3000),
			GenerationTimeout: time.Duration(getEnvAsInt("GENERATION_TIMEOUT_SECONDS", 60)) * time.Second,
			UseLLMClassifier:  getEnvAsBool("USE_LLM_CLASSIFIER", false),
		},
	}

	return cfg, nil
}

func defaultCloneDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "./kb-cache"
	}
	return cacheDir + "/kbchat/repos"
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
