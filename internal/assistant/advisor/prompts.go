package advisor

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
)

//go:embed template/advisor_prompt.txt
var advisorSystemPrompt string

// RenderSystemPrompt renders the advisor system prompt for one turn.
func RenderSystemPrompt(ctx context.Context, cfg model.AdvisorPromptConfig, snap model.FinancialSnapshot, locale string, today time.Time, recent int) (string, error) {
	if strings.TrimSpace(locale) == "" {
		locale = "en-US"
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(advisorSystemPrompt),
	)
	vars := map[string]any{
		"AssistantName":  cfg.AssistantName,
		"Currency":       cfg.Currency,
		"Locale":         locale,
		"Today":          today.Format(model.DateLayout),
		"ExpenseTool":    ToolCreateExpense,
		"Categories":     categoryLines(snap.Categories),
		"Budgets":        budgetLines(snap.Budgets, snap.Expenses, today),
		"MonthSpending":  monthSpendingLines(snap.Expenses, today),
		"RecentExpenses": expenseLines(snap.Expenses, recent),
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("advisor prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("advisor prompt render: empty result")
	}
	return msgs[0].Content, nil
}

func categoryLines(cats []model.Category) string {
	if len(cats) == 0 {
		return "(none)"
	}
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

func inMonth(date string, today time.Time) bool {
	return strings.HasPrefix(date, today.Format("2006-01"))
}

func monthTotals(expenses []model.Expense, today time.Time) map[string]float64 {
	totals := map[string]float64{}
	for _, e := range expenses {
		if inMonth(e.Date, today) {
			totals[strings.ToLower(e.Category)] += e.Amount
		}
	}
	return totals
}

func budgetLines(budgets []model.Budget, expenses []model.Expense, today time.Time) string {
	if len(budgets) == 0 {
		return "(no budgets set)"
	}
	totals := monthTotals(expenses, today)
	var sb strings.Builder
	for _, b := range budgets {
		spent := totals[strings.ToLower(b.Category)]
		fmt.Fprintf(&sb, "- %s: limit %s per %s, spent %s this month\n",
			b.Category, model.FormatAmount(b.Limit), strings.TrimSuffix(b.Period, "ly"), model.FormatAmount(spent))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func monthSpendingLines(expenses []model.Expense, today time.Time) string {
	byCat := map[string]float64{}
	var order []string
	var total float64
	for _, e := range expenses {
		if !inMonth(e.Date, today) {
			continue
		}
		if _, ok := byCat[e.Category]; !ok {
			order = append(order, e.Category)
		}
		byCat[e.Category] += e.Amount
		total += e.Amount
	}
	if len(order) == 0 {
		return "(no expenses this month)"
	}
	sort.SliceStable(order, func(i, j int) bool { return byCat[order[i]] > byCat[order[j]] })

	var sb strings.Builder
	for _, c := range order {
		fmt.Fprintf(&sb, "- %s: %s\n", c, model.FormatAmount(byCat[c]))
	}
	fmt.Fprintf(&sb, "- Total: %s", model.FormatAmount(total))
	return sb.String()
}

func expenseLines(expenses []model.Expense, limit int) string {
	if len(expenses) == 0 {
		return "(no expenses recorded)"
	}
	if limit > 0 && len(expenses) > limit {
		expenses = expenses[:limit]
	}
	var sb strings.Builder
	for _, e := range expenses {
		fmt.Fprintf(&sb, "- %s %s at %s (%s)", e.Date, model.FormatAmount(e.Amount), e.Merchant, e.Category)
		if e.Note != "" && e.Note != model.DefaultExpenseNote {
			fmt.Fprintf(&sb, " note: %s", e.Note)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}
