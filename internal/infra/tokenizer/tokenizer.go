package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jinford/kbchat/internal/core/chat"
)

// DefaultEncoding は OpenAI のチャット系モデルが使うエンコーディング
const DefaultEncoding = "cl100k_base"

// Counter は tiktoken を利用した chat.TokenCounter 実装
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter は新しい Counter を作成する。
// エンコーディング定義は初回取得時にダウンロードされキャッシュされる。
func NewCounter() (*Counter, error) {
	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &Counter{encoding: enc}, nil
}

var _ chat.TokenCounter = (*Counter)(nil)

// Count はテキストのトークン数を返す
func (c *Counter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// Trim はテキストを maxTokens 以内に切り詰める
func (c *Counter) Trim(text string, maxTokens int) string {
	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.encoding.Decode(tokens[:maxTokens])
}
