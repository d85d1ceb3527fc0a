package model

import (
	"errors"
	"math"
	"strings"
	"time"
)

type ActionKind string

const (
	ActionCreateExpense ActionKind = "create_expense"
)

const (
	DefaultCategory    = "Other"
	DefaultExpenseNote = "Added by AI assistant"
	DateLayout         = "2006-01-02"
)

var (
	ErrMissingAmount   = errors.New("expense amount is missing or not positive")
	ErrMissingMerchant = errors.New("expense merchant is missing")
)

// ExpenseFields are the typed arguments of a create_expense action. Zero values
// mean "not provided by the model".
type ExpenseFields struct {
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Date     string  `json:"date"`
	Note     string  `json:"note"`
}

// Action is a structured local operation requested by the model.
type Action struct {
	Kind    ActionKind    `json:"kind"`
	CallID  string        `json:"call_id,omitempty"`
	Expense ExpenseFields `json:"expense"`
}

var acceptedDateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"01/02/2006",
	time.RFC3339,
}

// ApplyExpenseDefaults is the single place expense fallbacks are decided:
//
//   - amount: never defaulted, missing or <= 0 is ErrMissingAmount; rounded to cents
//   - merchant: never defaulted, blank is ErrMissingMerchant
//   - category: DefaultCategory when blank; matched case-insensitively to a known category
//   - date: today (in today's location) when blank or unparseable; normalised to DateLayout
//   - note: DefaultExpenseNote when blank
func ApplyExpenseDefaults(f ExpenseFields, today time.Time, known []Category) (ExpenseFields, error) {
	out := ExpenseFields{
		Merchant: strings.TrimSpace(f.Merchant),
		Amount:   f.Amount,
		Category: strings.TrimSpace(f.Category),
		Date:     strings.TrimSpace(f.Date),
		Note:     strings.TrimSpace(f.Note),
	}

	if math.IsNaN(out.Amount) || math.IsInf(out.Amount, 0) || out.Amount <= 0 {
		return ExpenseFields{}, ErrMissingAmount
	}
	out.Amount = math.Round(out.Amount*100) / 100
	if out.Amount <= 0 {
		return ExpenseFields{}, ErrMissingAmount
	}
	if out.Merchant == "" {
		return ExpenseFields{}, ErrMissingMerchant
	}

	if out.Category == "" {
		out.Category = DefaultCategory
	} else {
		for _, c := range known {
			if strings.EqualFold(c.Name, out.Category) {
				out.Category = c.Name
				break
			}
		}
	}

	out.Date = normaliseDate(out.Date, today)

	if out.Note == "" {
		out.Note = DefaultExpenseNote
	}
	return out, nil
}

func normaliseDate(raw string, today time.Time) string {
	if raw != "" {
		for _, layout := range acceptedDateLayouts {
			if t, err := time.ParseInLocation(layout, raw, today.Location()); err == nil {
				return t.Format(DateLayout)
			}
		}
	}
	return today.Format(DateLayout)
}
