package datatools

import (
	"context"
	"fmt"
	"strings"
)

// DataQuery は自然言語の定型問い合わせをSQL集計へ対応付けるツール（data_query）。
// 対応するのはキーワードで判別できる固定のパターンのみで、
// 判別できない問い合わせはエラーにせず使い方の案内を返す。
type DataQuery struct {
	repo Repository
}

// NewDataQuery は新しい DataQuery を作成する
func NewDataQuery(repo Repository) *DataQuery {
	return &DataQuery{repo: repo}
}

func (t *DataQuery) Name() string { return "data_query" }

func (t *DataQuery) Describe() string {
	return "Answer simple aggregate questions about the data, such as " +
		"'count employees', 'average salary', 'highest salary', " +
		"'list departments' or 'list industries'. Arguments: query (required)."
}

func (t *DataQuery) ValidateArgs(args map[string]any) error {
	if err := validateStringArgs(args, "query"); err != nil {
		return err
	}
	if strings.TrimSpace(stringArg(args, "query")) == "" {
		return fmt.Errorf("%w: argument \"query\" is required", ErrToolArgument)
	}
	return nil
}

func (t *DataQuery) Execute(ctx context.Context, args map[string]any) (string, error) {
	if err := t.ValidateArgs(args); err != nil {
		return "", err
	}
	if t.repo == nil {
		return "", ErrDataUnavailable
	}

	query := strings.ToLower(stringArg(args, "query"))

	switch {
	case strings.Contains(query, "count") && strings.Contains(query, "employee"):
		count, err := t.repo.CountEmployees(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Employee count: %d", count), nil

	case strings.Contains(query, "count") && strings.Contains(query, "customer"):
		count, err := t.repo.CountCustomers(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Customer count: %d", count), nil

	case strings.Contains(query, "average salary") || strings.Contains(query, "avg salary"):
		avg, err := t.repo.AverageSalary(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Average salary: $%.2f", avg), nil

	case strings.Contains(query, "highest salary") || strings.Contains(query, "max salary"):
		top, err := t.repo.TopSalary(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Highest salary: %s at $%d", top.Name, top.Salary), nil

	case strings.Contains(query, "department") && strings.Contains(query, "list"):
		departments, err := t.repo.ListDepartments(ctx)
		if err != nil {
			return "", err
		}
		return "Departments: " + strings.Join(departments, ", "), nil

	case strings.Contains(query, "industr") && strings.Contains(query, "list"):
		industries, err := t.repo.ListIndustries(ctx)
		if err != nil {
			return "", err
		}
		return "Industries: " + strings.Join(industries, ", "), nil
	}

	return fmt.Sprintf("Unsupported data query: %q. Try asking about employee or customer counts, "+
		"salary statistics, or department/industry lists.", stringArg(args, "query")), nil
}

var _ Tool = (*DataQuery)(nil)
