package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLedgerSeed(t *testing.T) {
	seed, err := ParseLedgerSeed([]byte(`
categories:
  - name: " Food "
  - name: Rent
budgets:
  - category: Food
    limit: 300
`))
	require.NoError(t, err)
	require.Len(t, seed.Categories, 2)
	assert.Equal(t, "Food", seed.Categories[0].Name)
	require.Len(t, seed.Budgets, 1)
	assert.Equal(t, "monthly", seed.Budgets[0].Period)
}

func TestParseLedgerSeed_Invalid(t *testing.T) {
	cases := map[string]string{
		"blank category": "categories:\n  - name: \"\"\n",
		"zero limit":     "budgets:\n  - category: Food\n    limit: 0\n",
		"not yaml":       "categories: [",
	}
	for name, doc := range cases {
		_, err := ParseLedgerSeed([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadLedgerSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - name: Travel\n"), 0o600))

	seed, err := LoadLedgerSeed(path)
	require.NoError(t, err)
	assert.Equal(t, "Travel", seed.Categories[0].Name)

	_, err = LoadLedgerSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
