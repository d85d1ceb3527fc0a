package repo

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	"github.com/google/uuid"
)

// In-memory repositories back the CLI when no redis/sqlite is configured and
// the controller tests.

type MemoryConversationRepository struct {
	mu    sync.Mutex
	convs map[string][]model.Message
	saves int
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{convs: map[string][]model.Message{}}
}

func (r *MemoryConversationRepository) LoadHistory(_ context.Context, conversationID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &model.ConversationHistory{
		ConversationID: conversationID,
		Messages:       slices.Clone(r.convs[conversationID]),
	}, nil
}

func (r *MemoryConversationRepository) SaveHistory(_ context.Context, conversationID string, messages []model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[conversationID] = slices.Clone(messages)
	r.saves++
	return nil
}

func (r *MemoryConversationRepository) ClearHistory(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convs, conversationID)
	return nil
}

// Saves reports how many times SaveHistory ran.
func (r *MemoryConversationRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

type MemoryQuotaCounter struct {
	mu      sync.Mutex
	limit   int
	premium bool
	used    map[string]int
}

func NewMemoryQuotaCounter(cfg model.QuotaConfig) *MemoryQuotaCounter {
	return &MemoryQuotaCounter{limit: cfg.DailyLimit, premium: cfg.Premium, used: map[string]int{}}
}

func (q *MemoryQuotaCounter) TryConsume(_ context.Context, userID string) (bool, error) {
	if q.premium {
		return true, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used[userID]++
	return q.used[userID] <= q.limit, nil
}

func (q *MemoryQuotaCounter) Remaining(_ context.Context, userID string) (int, error) {
	if q.premium {
		return -1, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return max(q.limit-q.used[userID], 0), nil
}

type MemoryLedger struct {
	mu         sync.Mutex
	expenses   []model.Expense
	budgets    []model.Budget
	categories []model.Category
	now        func() time.Time
}

func NewMemoryLedger(seed *LedgerSeed) *MemoryLedger {
	l := &MemoryLedger{now: time.Now}
	if seed != nil {
		l.categories = slices.Clone(seed.Categories)
		l.budgets = slices.Clone(seed.Budgets)
	}
	return l
}

func (l *MemoryLedger) RecordExpense(_ context.Context, e model.Expense) (model.Expense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}
	l.expenses = append(l.expenses, e)
	return e, nil
}

// ListExpenses returns newest first, matching the sqlite ordering.
func (l *MemoryLedger) ListExpenses(_ context.Context) ([]model.Expense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := slices.Clone(l.expenses)
	slices.SortStableFunc(out, func(a, b model.Expense) int {
		if c := strings.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (l *MemoryLedger) ListBudgets(_ context.Context) ([]model.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.budgets), nil
}

func (l *MemoryLedger) ListCategories(_ context.Context) ([]model.Category, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.categories), nil
}

var (
	_ model.ConversationRepository = (*MemoryConversationRepository)(nil)
	_ model.QuotaCounter           = (*MemoryQuotaCounter)(nil)
	_ model.LedgerRepository       = (*MemoryLedger)(nil)
)
