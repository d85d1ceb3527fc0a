package model

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Expense struct {
	ID        string    `json:"id"`
	Merchant  string    `json:"merchant"`
	Amount    float64   `json:"amount"`
	Category  string    `json:"category"`
	Date      string    `json:"date"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

type Budget struct {
	Category string  `json:"category" yaml:"category"`
	Limit    float64 `json:"limit" yaml:"limit"`
	Period   string  `json:"period" yaml:"period"`
}

type Category struct {
	Name string `json:"name" yaml:"name"`
}

// FinancialSnapshot is the context handed to the advisor with every turn.
type FinancialSnapshot struct {
	Expenses   []Expense
	Budgets    []Budget
	Categories []Category
}

type LedgerRepository interface {
	RecordExpense(ctx context.Context, e Expense) (Expense, error)
	ListExpenses(ctx context.Context) ([]Expense, error)
	ListBudgets(ctx context.Context) ([]Budget, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// QuotaCounter tracks free-tier interactions.
type QuotaCounter interface {
	// TryConsume counts one interaction and reports whether it was within quota.
	TryConsume(ctx context.Context, userID string) (bool, error)
	// Remaining reports how many interactions are left today; -1 means unlimited.
	Remaining(ctx context.Context, userID string) (int, error)
}

// FormatAmount renders money with two decimals, dropping a trailing ".00".
func FormatAmount(v float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.2f", v), ".00")
}
