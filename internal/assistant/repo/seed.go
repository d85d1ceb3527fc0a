package repo

import (
	"fmt"
	"os"
	"strings"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	"gopkg.in/yaml.v3"
)

// LedgerSeed is the YAML document used to initialise categories and budgets.
//
//	categories:
//	  - name: Food
//	budgets:
//	  - category: Food
//	    limit: 400
//	    period: monthly
type LedgerSeed struct {
	Categories []model.Category `yaml:"categories"`
	Budgets    []model.Budget   `yaml:"budgets"`
}

// DefaultLedgerSeed mirrors the category list the app ships with.
func DefaultLedgerSeed() *LedgerSeed {
	names := []string{"Food", "Transport", "Shopping", "Bills", "Entertainment", "Health", model.DefaultCategory}
	seed := &LedgerSeed{}
	for _, n := range names {
		seed.Categories = append(seed.Categories, model.Category{Name: n})
	}
	return seed
}

func LoadLedgerSeed(path string) (*LedgerSeed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ledger seed: %w", err)
	}
	return ParseLedgerSeed(b)
}

func ParseLedgerSeed(b []byte) (*LedgerSeed, error) {
	var seed LedgerSeed
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("parse ledger seed: %w", err)
	}
	for i := range seed.Categories {
		seed.Categories[i].Name = strings.TrimSpace(seed.Categories[i].Name)
		if seed.Categories[i].Name == "" {
			return nil, fmt.Errorf("parse ledger seed: category %d has no name", i)
		}
	}
	for i := range seed.Budgets {
		b := &seed.Budgets[i]
		b.Category = strings.TrimSpace(b.Category)
		if b.Category == "" || b.Limit <= 0 {
			return nil, fmt.Errorf("parse ledger seed: budget %d needs a category and a positive limit", i)
		}
		if b.Period == "" {
			b.Period = "monthly"
		}
	}
	return &seed, nil
}
