package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	errx "github.com/finpal-core-poc-v1/assistant/internal/core/error"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteLedger stores expenses, budgets and categories.
type SQLiteLedger struct {
	db  *sql.DB
	now func() time.Time
}

var _ model.LedgerRepository = &SQLiteLedger{}

func NewSQLiteLedger(dsn string) (*SQLiteLedger, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite ledger: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// one writer keeps sqlite from returning SQLITE_BUSY under concurrent turns
	db.SetMaxOpenConns(1)
	l := &SQLiteLedger{db: db, now: time.Now}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *SQLiteLedger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			name TEXT NOT NULL PRIMARY KEY COLLATE NOCASE,
			position INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS budgets (
			category TEXT NOT NULL PRIMARY KEY COLLATE NOCASE,
			limit_amount REAL NOT NULL,
			period TEXT NOT NULL DEFAULT 'monthly'
		);`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT NOT NULL PRIMARY KEY,
			merchant TEXT NOT NULL,
			amount REAL NOT NULL,
			category TEXT NOT NULL,
			date TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS expenses_by_date ON expenses(date DESC, created_at_ms DESC);`,
	}
	for _, st := range stmts {
		if _, err := l.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite ledger: migrate")
		}
	}
	return nil
}

func (l *SQLiteLedger) RecordExpense(ctx context.Context, e model.Expense) (model.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO expenses (id, merchant, amount, category, date, note, created_at_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Merchant, e.Amount, e.Category, e.Date, e.Note, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return model.Expense{}, errx.WrapStore(errors.Wrap(err, "sqlite ledger: insert expense"))
	}
	return e, nil
}

func (l *SQLiteLedger) ListExpenses(ctx context.Context) ([]model.Expense, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, merchant, amount, category, date, note, created_at_ms FROM expenses ORDER BY date DESC, created_at_ms DESC`)
	if err != nil {
		return nil, errx.WrapStore(errors.Wrap(err, "sqlite ledger: list expenses"))
	}
	defer rows.Close()

	out := []model.Expense{}
	for rows.Next() {
		var (
			e         model.Expense
			createdMs int64
		)
		if err := rows.Scan(&e.ID, &e.Merchant, &e.Amount, &e.Category, &e.Date, &e.Note, &createdMs); err != nil {
			return nil, errx.WrapStore(errors.Wrap(err, "sqlite ledger: scan expense"))
		}
		e.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapStore(err)
	}
	return out, nil
}

func (l *SQLiteLedger) ListBudgets(ctx context.Context) ([]model.Budget, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT category, limit_amount, period FROM budgets ORDER BY category`)
	if err != nil {
		return nil, errx.WrapStore(errors.Wrap(err, "sqlite ledger: list budgets"))
	}
	defer rows.Close()

	out := []model.Budget{}
	for rows.Next() {
		var b model.Budget
		if err := rows.Scan(&b.Category, &b.Limit, &b.Period); err != nil {
			return nil, errx.WrapStore(errors.Wrap(err, "sqlite ledger: scan budget"))
		}
		out = append(out, b)
	}
	return out, errx.WrapStore(rows.Err())
}

func (l *SQLiteLedger) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY position, name`)
	if err != nil {
		return nil, errx.WrapStore(errors.Wrap(err, "sqlite ledger: list categories"))
	}
	defer rows.Close()

	out := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.Name); err != nil {
			return nil, errx.WrapStore(errors.Wrap(err, "sqlite ledger: scan category"))
		}
		out = append(out, c)
	}
	return out, errx.WrapStore(rows.Err())
}

// ApplySeed upserts categories and budgets. Existing expenses are untouched.
func (l *SQLiteLedger) ApplySeed(ctx context.Context, seed *LedgerSeed) error {
	if seed == nil {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return errx.WrapStore(err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, c := range seed.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (name, position) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET position = excluded.position`,
			c.Name, i); err != nil {
			return errx.WrapStore(errors.Wrapf(err, "sqlite ledger: seed category %q", c.Name))
		}
	}
	for _, b := range seed.Budgets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO budgets (category, limit_amount, period) VALUES (?, ?, ?)
			 ON CONFLICT(category) DO UPDATE SET limit_amount = excluded.limit_amount, period = excluded.period`,
			b.Category, b.Limit, b.Period); err != nil {
			return errx.WrapStore(errors.Wrapf(err, "sqlite ledger: seed budget %q", b.Category))
		}
	}
	return errx.WrapStore(tx.Commit())
}
