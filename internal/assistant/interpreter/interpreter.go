package interpreter

import (
	"strings"
	"time"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/advisor"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
)

// Outcome is what the controller does with one model response.
type Outcome struct {
	// Text is the display text (emphasis markup kept). Empty when the response
	// carried only actions; the controller then appends Confirmation(...).
	Text        string
	Suggestions []string
	Actions     []model.Action
	// Speak reports whether the resulting message should be read aloud.
	Speak bool
}

// Interpret maps a model response onto local actions and display text.
// Invalid create_expense calls are dropped with a warning; when every call is
// dropped the text (if any) is shown instead.
func Interpret(resp *advisor.Response, today time.Time, known []model.Category) Outcome {
	if resp == nil {
		return Outcome{}
	}
	log := logx.Component("interpreter")

	var out Outcome
	for _, fc := range resp.FunctionCalls {
		if fc.Name != string(model.ActionCreateExpense) {
			log.Warn().Str("function", fc.Name).Msg("ignoring unknown function call")
			continue
		}
		fields, err := parseExpenseArguments(fc.Arguments)
		if err == nil {
			fields, err = model.ApplyExpenseDefaults(fields, today, known)
		}
		if err != nil {
			log.Warn().Err(err).Str("arguments", fc.Arguments).Msg("rejecting create_expense call")
			continue
		}
		out.Actions = append(out.Actions, model.Action{
			Kind:    model.ActionCreateExpense,
			CallID:  fc.ID,
			Expense: fields,
		})
	}

	out.Text, out.Suggestions = splitSuggestions(resp.Text)
	out.Speak = out.Text != "" || len(out.Actions) > 0
	return out
}

// Confirmation renders the message appended after executing actions, one
// sentence per action.
func Confirmation(actions []model.Action) string {
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		if a.Kind != model.ActionCreateExpense {
			continue
		}
		parts = append(parts, "Recorded **"+model.FormatAmount(a.Expense.Amount)+"** at **"+a.Expense.Merchant+"** ("+a.Expense.Category+").")
	}
	return strings.Join(parts, " ")
}
