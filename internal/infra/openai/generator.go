package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/kbchat/internal/core/chat"
)

const (
	// DefaultChatModel は生成に使用するデフォルトモデル
	DefaultChatModel = "gpt-4o-mini"

	// DefaultTemperature は回答生成のデフォルト温度
	DefaultTemperature = 0.2
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

// Generator は OpenAI Chat Completions API を使用した回答生成の実装。
// タイムアウトとリトライ方針は呼び出し側（Router）が握るため、
// ここでは1回のAPI呼び出しだけを行い、失敗はそのまま返す。
type Generator struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

type generatorOptions struct {
	model       string
	temperature float64
	maxTokens   int
}

// GeneratorOption は Generator のオプション設定
type GeneratorOption func(*generatorOptions)

// WithChatModel はモデル名を上書きする
func WithChatModel(model string) GeneratorOption {
	return func(o *generatorOptions) {
		o.model = model
	}
}

// WithTemperature は生成温度を上書きする
func WithTemperature(temperature float64) GeneratorOption {
	return func(o *generatorOptions) {
		o.temperature = temperature
	}
}

// WithMaxCompletionTokens は生成トークン数の上限を設定する
func WithMaxCompletionTokens(maxTokens int) GeneratorOption {
	return func(o *generatorOptions) {
		o.maxTokens = maxTokens
	}
}

// NewGenerator は新しい Generator を作成する
func NewGenerator(apiKey string, opts ...GeneratorOption) (*Generator, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := generatorOptions{
		model:       DefaultChatModel,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Generator{
		client:      openai.NewClient(option.WithAPIKey(apiKey)),
		model:       options.model,
		temperature: options.temperature,
		maxTokens:   options.maxTokens,
	}, nil
}

// ModelName はモデル名を返す
func (g *Generator) ModelName() string {
	return g.model
}

// Generate はプロンプトから回答テキストを生成する
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.temperature),
	}

	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.maxTokens))
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	return completion.Choices[0].Message.Content, nil
}

// インターフェース実装の確認
var _ chat.Generator = (*Generator)(nil)
