package sqlite

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jinford/kbchat/internal/core/datatools"
)

// hireDateLayout はCSVおよびDB内の日付表現
const hireDateLayout = "2006-01-02"

// Repository は core/datatools.Repository を実装する SQLite リポジトリ。
// modernc.org/sqlite は純Go実装のため CGO なしでビルドできる。
type Repository struct {
	db *sql.DB
}

// Open はデータベースファイルを開き、スキーマを保証する。
// path に ":memory:" を渡すとインメモリで動作する。
func Open(path string) (*Repository, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// インメモリDBは接続ごとに別インスタンスになるため1接続に固定する
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Close はデータベース接続を閉じる
func (r *Repository) Close() error {
	return r.db.Close()
}

var _ datatools.Repository = (*Repository)(nil)

func (r *Repository) ensureSchema() error {
	_, err := r.db.Exec(`
	CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT NOT NULL,
		position TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		hire_date DATE NOT NULL,
		salary INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY,
		company_name TEXT NOT NULL,
		contact_name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		phone TEXT,
		industry TEXT,
		subscription_tier TEXT NOT NULL,
		monthly_revenue INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// ImportEmployeesCSV はCSVファイルの内容で employees テーブルを置き換える。
// 期待ヘッダ: id,name,department,position,email,hire_date,salary
func (r *Repository) ImportEmployeesCSV(ctx context.Context, path string) (int, error) {
	records, err := readCSV(path, []string{"id", "name", "department", "position", "email", "hire_date", "salary"})
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM employees`); err != nil {
		return 0, fmt.Errorf("failed to clear employees: %w", err)
	}

	for i, record := range records {
		id, err := strconv.Atoi(record[0])
		if err != nil {
			return 0, fmt.Errorf("employees row %d: invalid id %q: %w", i+1, record[0], err)
		}
		if _, err := time.Parse(hireDateLayout, record[5]); err != nil {
			return 0, fmt.Errorf("employees row %d: invalid hire_date %q: %w", i+1, record[5], err)
		}
		salary, err := strconv.Atoi(record[6])
		if err != nil {
			return 0, fmt.Errorf("employees row %d: invalid salary %q: %w", i+1, record[6], err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO employees (id, name, department, position, email, hire_date, salary)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, record[1], record[2], record[3], record[4], record[5], salary)
		if err != nil {
			return 0, fmt.Errorf("failed to insert employee row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit employees import: %w", err)
	}
	return len(records), nil
}

// ImportCustomersCSV はCSVファイルの内容で customers テーブルを置き換える。
// 期待ヘッダ: id,company_name,contact_name,email,phone,industry,subscription_tier,monthly_revenue
func (r *Repository) ImportCustomersCSV(ctx context.Context, path string) (int, error) {
	records, err := readCSV(path, []string{"id", "company_name", "contact_name", "email", "phone", "industry", "subscription_tier", "monthly_revenue"})
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM customers`); err != nil {
		return 0, fmt.Errorf("failed to clear customers: %w", err)
	}

	for i, record := range records {
		id, err := strconv.Atoi(record[0])
		if err != nil {
			return 0, fmt.Errorf("customers row %d: invalid id %q: %w", i+1, record[0], err)
		}
		revenue, err := strconv.Atoi(record[7])
		if err != nil {
			return 0, fmt.Errorf("customers row %d: invalid monthly_revenue %q: %w", i+1, record[7], err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO customers (id, company_name, contact_name, email, phone, industry, subscription_tier, monthly_revenue)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, record[1], record[2], record[3], record[4], record[5], record[6], revenue)
		if err != nil {
			return 0, fmt.Errorf("failed to insert customer row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit customers import: %w", err)
	}
	return len(records), nil
}

func readCSV(path string, expectedHeader []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) != len(expectedHeader) {
		return nil, fmt.Errorf("unexpected CSV header %v, want %v", header, expectedHeader)
	}
	for i, column := range expectedHeader {
		if header[i] != column {
			return nil, fmt.Errorf("unexpected CSV column %q at position %d, want %q", header[i], i, column)
		}
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *Repository) ListEmployees(ctx context.Context) ([]datatools.Employee, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, department, position, email, hire_date, salary
		FROM employees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []datatools.Employee
	for rows.Next() {
		var e datatools.Employee
		var hireDate string
		if err := rows.Scan(&e.ID, &e.Name, &e.Department, &e.Position, &e.Email, &hireDate, &e.Salary); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		e.HireDate, err = time.Parse(hireDateLayout, hireDate)
		if err != nil {
			return nil, fmt.Errorf("invalid hire_date %q: %w", hireDate, err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}
	if len(employees) == 0 {
		return nil, datatools.ErrDataUnavailable
	}
	return employees, nil
}

func (r *Repository) ListCustomers(ctx context.Context) ([]datatools.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_name, contact_name, email, phone, industry, subscription_tier, monthly_revenue
		FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []datatools.Customer
	for rows.Next() {
		var c datatools.Customer
		if err := rows.Scan(&c.ID, &c.CompanyName, &c.ContactName, &c.Email, &c.Phone, &c.Industry, &c.SubscriptionTier, &c.MonthlyRevenue); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customers: %w", err)
	}
	if len(customers) == 0 {
		return nil, datatools.ErrDataUnavailable
	}
	return customers, nil
}

func (r *Repository) CountEmployees(ctx context.Context) (int, error) {
	return r.count(ctx, "employees")
}

func (r *Repository) CountCustomers(ctx context.Context) (int, error) {
	return r.count(ctx, "customers")
}

func (r *Repository) count(ctx context.Context, table string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM `+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	if count == 0 {
		return 0, datatools.ErrDataUnavailable
	}
	return count, nil
}

func (r *Repository) AverageSalary(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, `SELECT avg(salary) FROM employees`).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to compute average salary: %w", err)
	}
	if !avg.Valid {
		return 0, datatools.ErrDataUnavailable
	}
	return avg.Float64, nil
}

func (r *Repository) TopSalary(ctx context.Context) (datatools.Employee, error) {
	var e datatools.Employee
	var hireDate string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, department, position, email, hire_date, salary
		FROM employees ORDER BY salary DESC, id ASC LIMIT 1`).
		Scan(&e.ID, &e.Name, &e.Department, &e.Position, &e.Email, &hireDate, &e.Salary)
	if errors.Is(err, sql.ErrNoRows) {
		return datatools.Employee{}, datatools.ErrDataUnavailable
	}
	if err != nil {
		return datatools.Employee{}, fmt.Errorf("failed to find top salary: %w", err)
	}
	e.HireDate, err = time.Parse(hireDateLayout, hireDate)
	if err != nil {
		return datatools.Employee{}, fmt.Errorf("invalid hire_date %q: %w", hireDate, err)
	}
	return e, nil
}

func (r *Repository) ListDepartments(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT department FROM employees ORDER BY department`)
}

func (r *Repository) ListIndustries(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT industry FROM customers ORDER BY industry`)
}

func (r *Repository) distinct(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct values: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate values: %w", err)
	}
	if len(values) == 0 {
		return nil, datatools.ErrDataUnavailable
	}
	return values, nil
}
