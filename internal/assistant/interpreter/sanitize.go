package interpreter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
)

// parseExpenseArguments decodes create_expense arguments leniently: strings are
// trimmed, numeric strings such as "$1,200.50" are accepted and non-string
// text fields are coerced.
func parseExpenseArguments(arguments string) (model.ExpenseFields, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return model.ExpenseFields{}, fmt.Errorf("create_expense arguments: %w", err)
	}
	return model.ExpenseFields{
		Merchant: stringArg(m["merchant"]),
		Amount:   amountArg(m["amount"]),
		Category: stringArg(m["category"]),
		Date:     stringArg(m["date"]),
		Note:     stringArg(m["note"]),
	}, nil
}

func stringArg(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(vv)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// amountArg returns 0 for anything that is not a number, which the defaults
// step rejects.
func amountArg(v any) float64 {
	switch vv := v.(type) {
	case float64:
		return vv
	case string:
		s := strings.TrimSpace(vv)
		s = strings.TrimLeft(s, "$€£¥")
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSpace(s)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}
