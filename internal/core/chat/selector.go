package chat

import (
	"context"
	"strings"
)

// toolCues はツールごとの構造化データ意図の手がかり。
// LLM分類器が使えない・信用できない場合の決定的なフォールバック経路であり、
// ツール説明文の語彙に対応させてある。
var toolCues = map[string][]string{
	"find_employees": {
		"employee", "employees", "who works", "works in", "staff", "hired",
	},
	"find_customers": {
		"customer", "customers", "client", "clients", "subscription tier",
	},
	"department_statistics": {
		"average salary", "salary by department", "department statistics",
		"salaries", "headcount",
	},
	"revenue_statistics": {
		"revenue", "monthly revenue", "mrr",
	},
	"data_query": {
		"how many", "count employees", "count customers", "highest salary",
		"list departments", "list industries",
	},
}

// selectTools は今回のターンで実行するツール呼び出しを決定する。
// キーワード照合が常に土台となり、LLM分類器の出力は検証を通った場合のみ
// 引数付きで上書きされる。結果はカタログ順で返すため決定的。
func (s *Service) selectTools(ctx context.Context, query string) []Invocation {
	selected := make(map[string]Invocation)

	lowered := strings.ToLower(query)
	for name, cues := range toolCues {
		for _, cue := range cues {
			if strings.Contains(lowered, cue) {
				selected[name] = Invocation{Tool: name, Args: s.fallbackArgs(name, query)}
				break
			}
		}
	}

	if s.classifier != nil {
		invocations, err := s.classifier.SelectTools(ctx, query, s.registry.Descriptions())
		if err != nil {
			s.logger.Warn("tool classifier failed, falling back to keyword matching", "error", err)
		} else {
			for _, inv := range invocations {
				tool, err := s.registry.Get(inv.Tool)
				if err != nil {
					s.logger.Warn("classifier selected unknown tool", "tool", inv.Tool)
					continue
				}
				if err := tool.ValidateArgs(inv.Args); err != nil {
					s.logger.Warn("classifier produced invalid arguments, using fallback",
						"tool", inv.Tool, "error", err)
					inv.Args = s.fallbackArgs(inv.Tool, query)
				}
				selected[inv.Tool] = inv
			}
		}
	}

	// カタログ順で並べて決定的にする
	var ordered []Invocation
	for _, desc := range s.registry.Descriptions() {
		if inv, ok := selected[desc.Name]; ok {
			ordered = append(ordered, inv)
		}
	}
	return ordered
}

// fallbackArgs は引数なし実行へ縮退する際の安全な引数を返す。
// data_query だけは query 引数が必須のため、ユーザーの質問文をそのまま渡す。
func (s *Service) fallbackArgs(toolName, query string) map[string]any {
	if toolName == "data_query" {
		return map[string]any{"query": query}
	}
	return map[string]any{}
}
