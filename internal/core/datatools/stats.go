package datatools

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// DepartmentStatistics は部門統計ツール（department_statistics）
type DepartmentStatistics struct {
	repo Repository
}

// NewDepartmentStatistics は新しい DepartmentStatistics を作成する
func NewDepartmentStatistics(repo Repository) *DepartmentStatistics {
	return &DepartmentStatistics{repo: repo}
}

func (t *DepartmentStatistics) Name() string { return "department_statistics" }

func (t *DepartmentStatistics) Describe() string {
	return "Statistics per department: employee headcount plus average, minimum and " +
		"maximum salary. Takes no arguments."
}

func (t *DepartmentStatistics) ValidateArgs(args map[string]any) error {
	return validateStringArgs(args)
}

// Stats は部門ごとの集計を部門名昇順で返す。
// 平均給与は浮動小数点のまま保持する（丸めは表示側の責務）。
func (t *DepartmentStatistics) Stats(ctx context.Context) ([]DepartmentStats, error) {
	if t.repo == nil {
		return nil, ErrDataUnavailable
	}

	employees, err := t.repo.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}

	byDept := make(map[string]*DepartmentStats)
	for _, emp := range employees {
		stats, ok := byDept[emp.Department]
		if !ok {
			stats = &DepartmentStats{
				Department: emp.Department,
				MinSalary:  emp.Salary,
				MaxSalary:  emp.Salary,
			}
			byDept[emp.Department] = stats
		}
		stats.Count++
		stats.AverageSalary += float64(emp.Salary)
		if emp.Salary < stats.MinSalary {
			stats.MinSalary = emp.Salary
		}
		if emp.Salary > stats.MaxSalary {
			stats.MaxSalary = emp.Salary
		}
	}

	results := make([]DepartmentStats, 0, len(byDept))
	for _, stats := range byDept {
		stats.AverageSalary /= float64(stats.Count)
		results = append(results, *stats)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Department < results[j].Department
	})
	return results, nil
}

func (t *DepartmentStatistics) Execute(ctx context.Context, args map[string]any) (string, error) {
	if err := t.ValidateArgs(args); err != nil {
		return "", err
	}

	stats, err := t.Stats(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Department statistics:\n")
	for _, s := range stats {
		fmt.Fprintf(&sb, "- %s: %d employee(s), average salary $%.0f, range $%d - $%d\n",
			s.Department, s.Count, math.Round(s.AverageSalary), s.MinSalary, s.MaxSalary)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

var _ Tool = (*DepartmentStatistics)(nil)

// RevenueStatistics は顧客収益統計ツール（revenue_statistics）
type RevenueStatistics struct {
	repo Repository
}

// NewRevenueStatistics は新しい RevenueStatistics を作成する
func NewRevenueStatistics(repo Repository) *RevenueStatistics {
	return &RevenueStatistics{repo: repo}
}

func (t *RevenueStatistics) Name() string { return "revenue_statistics" }

func (t *RevenueStatistics) Describe() string {
	return "Customer revenue statistics: monthly totals and averages, broken down " +
		"by subscription tier and by industry. Takes no arguments."
}

func (t *RevenueStatistics) ValidateArgs(args map[string]any) error {
	return validateStringArgs(args)
}

// Stats は顧客収益の全体集計を返す
func (t *RevenueStatistics) Stats(ctx context.Context) (RevenueStats, error) {
	if t.repo == nil {
		return RevenueStats{}, ErrDataUnavailable
	}

	customers, err := t.repo.ListCustomers(ctx)
	if err != nil {
		return RevenueStats{}, err
	}

	var result RevenueStats
	byTier := make(map[string]*TierStats)
	byIndustry := make(map[string]*IndustryStats)

	for _, cust := range customers {
		result.TotalMonthlyRevenue += cust.MonthlyRevenue

		tier, ok := byTier[cust.SubscriptionTier]
		if !ok {
			tier = &TierStats{Tier: cust.SubscriptionTier}
			byTier[cust.SubscriptionTier] = tier
		}
		tier.Count++
		tier.TotalRevenue += cust.MonthlyRevenue

		industry, ok := byIndustry[cust.Industry]
		if !ok {
			industry = &IndustryStats{Industry: cust.Industry}
			byIndustry[cust.Industry] = industry
		}
		industry.Count++
		industry.TotalRevenue += cust.MonthlyRevenue
	}

	if len(customers) > 0 {
		result.MeanMonthlyRevenue = float64(result.TotalMonthlyRevenue) / float64(len(customers))
	}

	for _, tier := range byTier {
		tier.MeanRevenue = float64(tier.TotalRevenue) / float64(tier.Count)
		result.ByTier = append(result.ByTier, *tier)
	}
	sort.Slice(result.ByTier, func(i, j int) bool {
		return result.ByTier[i].Tier < result.ByTier[j].Tier
	})

	for _, industry := range byIndustry {
		result.ByIndustry = append(result.ByIndustry, *industry)
	}
	sort.Slice(result.ByIndustry, func(i, j int) bool {
		if result.ByIndustry[i].TotalRevenue != result.ByIndustry[j].TotalRevenue {
			return result.ByIndustry[i].TotalRevenue > result.ByIndustry[j].TotalRevenue
		}
		return result.ByIndustry[i].Industry < result.ByIndustry[j].Industry
	})

	return result, nil
}

func (t *RevenueStatistics) Execute(ctx context.Context, args map[string]any) (string, error) {
	if err := t.ValidateArgs(args); err != nil {
		return "", err
	}

	stats, err := t.Stats(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Customer revenue statistics:\n")
	fmt.Fprintf(&sb, "Total monthly revenue: $%d\n", stats.TotalMonthlyRevenue)
	fmt.Fprintf(&sb, "Average revenue per customer: $%.2f\n", stats.MeanMonthlyRevenue)

	sb.WriteString("Revenue by subscription tier:\n")
	for _, tier := range stats.ByTier {
		fmt.Fprintf(&sb, "- %s: $%d total (%d customer(s), avg $%.2f)\n",
			tier.Tier, tier.TotalRevenue, tier.Count, tier.MeanRevenue)
	}

	sb.WriteString("Revenue by industry:\n")
	for _, industry := range stats.ByIndustry {
		fmt.Fprintf(&sb, "- %s: $%d (%d customer(s))\n",
			industry.Industry, industry.TotalRevenue, industry.Count)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

var _ Tool = (*RevenueStatistics)(nil)
