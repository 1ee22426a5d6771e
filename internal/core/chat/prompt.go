package chat

import (
	"fmt"
	"strings"

	"github.com/jinford/kbchat/internal/core/index"
	"github.com/jinford/kbchat/internal/core/memory"
)

const systemInstructions = `You are a helpful AI assistant for a company. Answer the user's question using the evidence below: excerpts retrieved from the company knowledge base and results from structured data lookups.

Guidelines:
- Use only the provided evidence; if it is not sufficient, say so instead of guessing
- Cite the source document when quoting from the knowledge base
- Be professional and concise`

const noGroundingMarker = `No grounding found: no relevant documents or structured data matched this question. Answer from general knowledge if appropriate, or state that the information is not available.`

// buildPrompt は生成用プロンプトを固定順で組み立てる:
// システム指示 → 検索抜粋 → ツール結果 → 会話履歴 → 現在の質問。
func buildPrompt(query string, excerpts []index.Match, toolResults []ToolResult, turns []memory.Turn, noGrounding bool) string {
	var sb strings.Builder

	sb.WriteString(systemInstructions)
	sb.WriteString("\n\n")

	if noGrounding {
		sb.WriteString(noGroundingMarker)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Knowledge base excerpts\n")
	if len(excerpts) > 0 {
		for i, match := range excerpts {
			fmt.Fprintf(&sb, "### [Excerpt %d] source: %s (relevance %.3f)\n", i+1, match.SourceID, match.Score)
			sb.WriteString(match.Content)
			sb.WriteString("\n\n")
		}
	} else {
		sb.WriteString("(no relevant documents)\n\n")
	}

	sb.WriteString("## Structured data results\n")
	if len(toolResults) > 0 {
		for _, result := range toolResults {
			fmt.Fprintf(&sb, "### %s\n", result.Tool)
			sb.WriteString(result.Output)
			sb.WriteString("\n\n")
		}
	} else {
		sb.WriteString("(no structured data consulted)\n\n")
	}

	sb.WriteString("## Conversation so far\n")
	if len(turns) > 0 {
		for _, turn := range turns {
			label := "User"
			if turn.Role == memory.RoleAssistant {
				label = "Assistant"
			}
			fmt.Fprintf(&sb, "%s: %s\n", label, turn.Content)
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("(start of conversation)\n\n")
	}

	sb.WriteString("## Question\n")
	sb.WriteString(query)
	sb.WriteString("\n\n## Answer\n")

	return sb.String()
}

// fitToBudget は予算超過時に根拠を落としてプロンプトを縮める。
// 落とす優先順位は、類似度が最も低い抜粋 → 最古の発話。
// 現在の質問とツール結果は決して削らない。
func fitToBudget(
	counter TokenCounter,
	maxTokens int,
	query string,
	excerpts []index.Match,
	toolResults []ToolResult,
	turns []memory.Turn,
	noGrounding bool,
) ([]index.Match, []memory.Turn, string) {
	prompt := buildPrompt(query, excerpts, toolResults, turns, noGrounding)
	if counter == nil || maxTokens <= 0 {
		return excerpts, turns, prompt
	}

	for counter.Count(prompt) > maxTokens {
		switch {
		case len(excerpts) > 0:
			// 検索結果はスコア降順なので末尾が最下位
			excerpts = excerpts[:len(excerpts)-1]
		case len(turns) > 0:
			turns = turns[1:]
		default:
			return excerpts, turns, prompt
		}
		prompt = buildPrompt(query, excerpts, toolResults, turns, noGrounding)
	}
	return excerpts, turns, prompt
}
