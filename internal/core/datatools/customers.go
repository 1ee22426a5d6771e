package datatools

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/mo"
)

// CustomerFinder は顧客検索ツール（find_customers）
type CustomerFinder struct {
	repo Repository
}

// NewCustomerFinder は新しい CustomerFinder を作成する
func NewCustomerFinder(repo Repository) *CustomerFinder {
	return &CustomerFinder{repo: repo}
}

func (t *CustomerFinder) Name() string { return "find_customers" }

func (t *CustomerFinder) Describe() string {
	return "Search for customers by a substring matched against company name, " +
		"contact name, industry or subscription tier. " +
		"Arguments: name (optional). Empty filter returns all customers."
}

func (t *CustomerFinder) ValidateArgs(args map[string]any) error {
	return validateStringArgs(args, "name")
}

// Find は会社名・担当者名・業種・階層の部分一致で顧客を絞り込む
func (t *CustomerFinder) Find(ctx context.Context, name mo.Option[string]) ([]Customer, error) {
	if t.repo == nil {
		return nil, ErrDataUnavailable
	}

	customers, err := t.repo.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}

	sub := strings.ToLower(strings.TrimSpace(name.OrElse("")))
	if sub == "" {
		return customers, nil
	}

	var results []Customer
	for _, cust := range customers {
		haystack := strings.ToLower(strings.Join([]string{
			cust.CompanyName, cust.ContactName, cust.Industry, cust.SubscriptionTier,
		}, "\n"))
		if strings.Contains(haystack, sub) {
			results = append(results, cust)
		}
	}
	return results, nil
}

func (t *CustomerFinder) Execute(ctx context.Context, args map[string]any) (string, error) {
	if err := t.ValidateArgs(args); err != nil {
		return "", err
	}

	customers, err := t.Find(ctx, optionalArg(args, "name"))
	if err != nil {
		return "", err
	}

	if len(customers) == 0 {
		return "No customers found matching the given filter.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d customer(s):\n", len(customers))
	for _, cust := range customers {
		fmt.Fprintf(&sb, "- %s (%s), contact: %s <%s>, tier: %s, revenue: $%d/month\n",
			cust.CompanyName, cust.Industry, cust.ContactName, cust.Email,
			cust.SubscriptionTier, cust.MonthlyRevenue)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

var _ Tool = (*CustomerFinder)(nil)
