package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/kbchat/internal/core/chat"
	"github.com/jinford/kbchat/internal/core/datatools"
)

const (
	// DefaultClassifierModel は分類に使用するデフォルトモデル
	DefaultClassifierModel = "gpt-4o-mini"

	// MaxRetries はレート制限エラー時の最大リトライ回数
	MaxRetries = 3

	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 32 * time.Second

	// JSONParseMaxRetries はJSON解析エラー時の最大リトライ回数
	JSONParseMaxRetries = 1
)

var (
	// ErrInvalidResponseFormat は不正なレスポンス形式のエラー
	ErrInvalidResponseFormat = errors.New("invalid response format")

	// ErrMaxRetriesExceeded は最大リトライ回数を超過した場合のエラー
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// Classifier は OpenAI API を使用して質問に応じた構造化データツールを選択する。
// 出力は信頼しない。解析できないレスポンスはエラーとして返し、
// 呼び出し側がキーワード照合へフォールバックする。
type Classifier struct {
	client openai.Client
	model  string
}

// ClassifierOption は Classifier のオプション設定
type ClassifierOption func(*Classifier)

// WithClassifierModel はモデル名を上書きする
func WithClassifierModel(model string) ClassifierOption {
	return func(c *Classifier) {
		c.model = model
	}
}

// NewClassifier は新しい Classifier を作成する
func NewClassifier(apiKey string, opts ...ClassifierOption) (*Classifier, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	classifier := &Classifier{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  DefaultClassifierModel,
	}
	for _, opt := range opts {
		opt(classifier)
	}
	return classifier, nil
}

// selectionResponse はLLMに要求するJSONスキーマ
type selectionResponse struct {
	Tools []struct {
		Name string            `json:"name"`
		Args map[string]string `json:"args"`
	} `json:"tools"`
}

// SelectTools は質問文とツールカタログから実行すべきツール呼び出しを推定する
func (c *Classifier) SelectTools(ctx context.Context, query string, catalog []datatools.Description) ([]chat.Invocation, error) {
	prompt := buildSelectionPrompt(query, catalog)

	var jsonParseRetries int
	for {
		content, err := c.completeWithRetry(ctx, prompt)
		if err != nil {
			return nil, err
		}

		var parsed selectionResponse
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			jsonParseRetries++
			if jsonParseRetries > JSONParseMaxRetries {
				return nil, fmt.Errorf("%w: JSON parse failed after %d retries", ErrInvalidResponseFormat, JSONParseMaxRetries)
			}
			continue
		}

		invocations := make([]chat.Invocation, 0, len(parsed.Tools))
		for _, tool := range parsed.Tools {
			args := make(map[string]any, len(tool.Args))
			for key, value := range tool.Args {
				args[key] = value
			}
			invocations = append(invocations, chat.Invocation{Tool: tool.Name, Args: args})
		}
		return invocations, nil
	}
}

func (c *Classifier) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(math.Pow(2, float64(attempt-1))) * BaseBackoff
			if backoffDuration > MaxBackoff {
				backoffDuration = MaxBackoff
			}

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		params := openai.ChatCompletionNewParams{
			Model: shared.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(0),
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{
					Type: "json_object",
				},
			},
		}

		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err

			if isRateLimitError(err) {
				continue
			}

			return "", fmt.Errorf("OpenAI API call failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("no completion choices returned")
		}

		return completion.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func buildSelectionPrompt(query string, catalog []datatools.Description) string {
	var sb strings.Builder

	sb.WriteString("You route user questions to structured data tools. Decide which of the tools below, if any, should run for this question.\n\n")
	sb.WriteString("Available tools:\n")
	for _, desc := range catalog {
		fmt.Fprintf(&sb, "- %s: %s\n", desc.Name, desc.Description)
	}
	sb.WriteString("\nRespond with JSON only, in the form:\n")
	sb.WriteString(`{"tools": [{"name": "<tool name>", "args": {"<arg>": "<value>"}}]}`)
	sb.WriteString("\nUse an empty list when no tool applies. Only use tool names from the list. All argument values must be strings.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n", query)

	return sb.String()
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}

	return false
}

// インターフェース実装の確認
var _ chat.Classifier = (*Classifier)(nil)
