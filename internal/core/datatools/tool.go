package datatools

import (
	"context"
	"fmt"
)

// Tool は構造化データ照会ツールの統一インターフェース。
// カタログは固定で、Router は名前からツールを引いて
// validate → execute の順に呼び出す。レコードを変更するツールは存在しない。
type Tool interface {
	// Name はツール名を返す（例: find_employees）
	Name() string

	// Describe はツール選択に使う自然言語の説明を返す
	Describe() string

	// ValidateArgs は Router が抽出した引数を実行前に検証する。
	// 未知のキーや文字列以外の値は ErrToolArgument。
	ValidateArgs(args map[string]any) error

	// Execute はツールを実行し、プロンプトへ埋め込める整形済みテキストを返す
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Description はツール選択用のカタログエントリを表す
type Description struct {
	Name        string
	Description string
}

// Registry はツール名から実装への固定マッピングを保持する
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry は全ツールを登録したレジストリを作成する
func NewRegistry(repo Repository) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	r.register(NewEmployeeFinder(repo))
	r.register(NewCustomerFinder(repo))
	r.register(NewDepartmentStatistics(repo))
	r.register(NewRevenueStatistics(repo))
	r.register(NewDataQuery(repo))
	return r
}

func (r *Registry) register(tool Tool) {
	r.order = append(r.order, tool.Name())
	r.tools[tool.Name()] = tool
}

// Get は名前でツールを取得する。未登録の名前は ErrToolArgument。
func (r *Registry) Get(name string) (Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool %q", ErrToolArgument, name)
	}
	return tool, nil
}

// Descriptions は登録順のツールカタログを返す
func (r *Registry) Descriptions() []Description {
	descs := make([]Description, 0, len(r.order))
	for _, name := range r.order {
		descs = append(descs, Description{Name: name, Description: r.tools[name].Describe()})
	}
	return descs
}

// validateStringArgs は args のキーが allowed に含まれ、値が文字列であることを検証する
func validateStringArgs(args map[string]any, allowed ...string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = true
	}
	for key, value := range args {
		if !allowedSet[key] {
			return fmt.Errorf("%w: unknown argument %q", ErrToolArgument, key)
		}
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: argument %q must be a string", ErrToolArgument, key)
		}
	}
	return nil
}

// stringArg は args から文字列引数を取り出す。未指定は空文字列。
func stringArg(args map[string]any, key string) string {
	if value, ok := args[key]; ok {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return ""
}
