package datatools

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDataUnavailable は対象テーブルが未投入の場合のエラー。
	// 呼び出し側はドキュメント検索のみでの回答へ縮退する。
	ErrDataUnavailable = errors.New("structured data unavailable")

	// ErrToolArgument はツール引数が不正な場合のエラー
	ErrToolArgument = errors.New("invalid tool argument")
)

// Employee は従業員レコードを表す。読み込み後は不変。
type Employee struct {
	ID         int
	Name       string
	Department string
	Position   string
	Email      string
	HireDate   time.Time
	Salary     int
}

// Customer は顧客レコードを表す。読み込み後は不変。
type Customer struct {
	ID               int
	CompanyName      string
	ContactName      string
	Email            string
	Phone            string
	Industry         string
	SubscriptionTier string
	MonthlyRevenue   int
}

// DepartmentStats は部門ごとの集計を表す。
// AverageSalary は丸めずに保持し、表示時にのみ丸める。
type DepartmentStats struct {
	Department    string
	Count         int
	AverageSalary float64
	MinSalary     int
	MaxSalary     int
}

// TierStats はサブスクリプション階層ごとの収益集計を表す
type TierStats struct {
	Tier         string
	Count        int
	TotalRevenue int
	MeanRevenue  float64
}

// IndustryStats は業種ごとの収益集計を表す
type IndustryStats struct {
	Industry     string
	Count        int
	TotalRevenue int
}

// RevenueStats は顧客収益の全体集計を表す
type RevenueStats struct {
	TotalMonthlyRevenue int
	MeanMonthlyRevenue  float64
	ByTier              []TierStats
	ByIndustry          []IndustryStats // 収益降順
}

// Repository は構造化テーブルへの読み取り専用アクセスを提供する。
// 一覧はデータセットの挿入順（ID昇順）で返すこと。
// 未投入のテーブルに対しては ErrDataUnavailable を返すこと。
type Repository interface {
	ListEmployees(ctx context.Context) ([]Employee, error)
	ListCustomers(ctx context.Context) ([]Customer, error)

	CountEmployees(ctx context.Context) (int, error)
	CountCustomers(ctx context.Context) (int, error)
	AverageSalary(ctx context.Context) (float64, error)
	TopSalary(ctx context.Context) (Employee, error)
	ListDepartments(ctx context.Context) ([]string, error)
	ListIndustries(ctx context.Context) ([]string, error)
}
