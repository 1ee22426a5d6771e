package datatools

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/mo"
)

// EmployeeFinder は従業員検索ツール（find_employees）
type EmployeeFinder struct {
	repo Repository
}

// NewEmployeeFinder は新しい EmployeeFinder を作成する
func NewEmployeeFinder(repo Repository) *EmployeeFinder {
	return &EmployeeFinder{repo: repo}
}

func (t *EmployeeFinder) Name() string { return "find_employees" }

func (t *EmployeeFinder) Describe() string {
	return "Search for employees by department or by a name substring. " +
		"Arguments: department (optional), name (optional). " +
		"Matching is case-insensitive; empty filters return all employees."
}

func (t *EmployeeFinder) ValidateArgs(args map[string]any) error {
	return validateStringArgs(args, "department", "name")
}

// Find は部門・氏名の部分一致で従業員を絞り込む。
// フィルタ未指定時は全件をデータセットの挿入順で返す。
func (t *EmployeeFinder) Find(ctx context.Context, department, name mo.Option[string]) ([]Employee, error) {
	if t.repo == nil {
		return nil, ErrDataUnavailable
	}

	employees, err := t.repo.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}

	dept := strings.ToLower(strings.TrimSpace(department.OrElse("")))
	sub := strings.ToLower(strings.TrimSpace(name.OrElse("")))

	var results []Employee
	for _, emp := range employees {
		if dept != "" && !strings.Contains(strings.ToLower(emp.Department), dept) {
			continue
		}
		if sub != "" && !strings.Contains(strings.ToLower(emp.Name), sub) {
			continue
		}
		results = append(results, emp)
	}
	return results, nil
}

func (t *EmployeeFinder) Execute(ctx context.Context, args map[string]any) (string, error) {
	if err := t.ValidateArgs(args); err != nil {
		return "", err
	}

	department := optionalArg(args, "department")
	name := optionalArg(args, "name")

	employees, err := t.Find(ctx, department, name)
	if err != nil {
		return "", err
	}

	if len(employees) == 0 {
		return "No employees found matching the given filters.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d employee(s):\n", len(employees))
	for _, emp := range employees {
		fmt.Fprintf(&sb, "- %s, %s in %s (email: %s, hired: %s, salary: $%d)\n",
			emp.Name, emp.Position, emp.Department, emp.Email, emp.HireDate.Format("2006-01-02"), emp.Salary)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// optionalArg は args の文字列値を mo.Option に変換する。空文字列は None。
func optionalArg(args map[string]any, key string) mo.Option[string] {
	value := strings.TrimSpace(stringArg(args, key))
	if value == "" {
		return mo.None[string]()
	}
	return mo.Some(value)
}

var _ Tool = (*EmployeeFinder)(nil)
