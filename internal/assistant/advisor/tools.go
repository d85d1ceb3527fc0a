package advisor

import (
	"github.com/cloudwego/eino/schema"
)

const ToolCreateExpense = "create_expense"

// CreateExpenseTool describes the only local action the model may request.
func CreateExpenseTool() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolCreateExpense,
		Desc: "Record an expense the user says they already made. Call once per purchase. Only use amounts and merchants the user actually stated.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"merchant": {
				Type:     "string",
				Desc:     "Where the money was spent, e.g. \"Whole Foods\" or \"Uber\".",
				Required: true,
			},
			"amount": {
				Type:     "number",
				Desc:     "Positive amount spent, without currency symbols.",
				Required: true,
			},
			"category": {
				Type: "string",
				Desc: "One of the user's categories. Leave empty when unsure.",
			},
			"date": {
				Type: "string",
				Desc: "Purchase date as YYYY-MM-DD. Leave empty for today.",
			},
			"note": {
				Type: "string",
				Desc: "Optional short note about the purchase.",
			},
		}),
	}
}

// Tools returns every tool bound to the advisor model.
func Tools() []*schema.ToolInfo {
	return []*schema.ToolInfo{CreateExpenseTool()}
}
