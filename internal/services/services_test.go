package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/notify"
	"budgetwise/internal/storage"
)

// testEnv wires the full engine against a throwaway SQLite database, with
// the AMQP leg disabled so alerts stay in-app.
type testEnv struct {
	repo      *storage.SQLiteRepository
	alerts    *BudgetAlertService
	processor *RecurringProcessor
	renewer   *BudgetRenewer
}

func newTestEnv(t *testing.T, threshold string) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.NewWithHandler("test", slog.NewTextHandler(io.Discard, nil))
	dispatcher := notify.NewDispatcher(repo, nil, logger)
	alerts := NewBudgetAlertService(repo, dispatcher, dec(t, threshold), logger)

	return &testEnv{
		repo:      repo,
		alerts:    alerts,
		processor: NewRecurringProcessor(repo, alerts, logger),
		renewer:   NewBudgetRenewer(repo, logger),
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (e *testEnv) seedUser(t *testing.T) core.User {
	t.Helper()
	u := core.User{
		ID:       uuid.New(),
		Username: "user-" + uuid.NewString()[:8],
		Email:    uuid.NewString()[:8] + "@example.com",
	}
	if err := e.repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (e *testEnv) seedCategory(t *testing.T, userID uuid.UUID, name string) core.Category {
	t.Helper()
	c := core.Category{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Type:   core.Expense,
	}
	if err := e.repo.CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return c
}

func (e *testEnv) seedRule(t *testing.T, rule core.RecurringRule) core.RecurringRule {
	t.Helper()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if err := e.repo.CreateRecurringRule(context.Background(), rule); err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	return rule
}

func (e *testEnv) seedBudget(t *testing.T, b core.Budget) core.Budget {
	t.Helper()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if err := e.repo.CreateBudget(context.Background(), b); err != nil {
		t.Fatalf("seed budget: %v", err)
	}
	return b
}

func (e *testEnv) seedTransaction(t *testing.T, userID, categoryID uuid.UUID, ts time.Time, amt string) core.Transaction {
	t.Helper()
	tx := core.Transaction{
		ID:              uuid.New(),
		UserID:          userID,
		CategoryID:      categoryID,
		Amount:          dec(t, amt),
		TransactionDate: ts,
	}
	if err := e.repo.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return tx
}

func (e *testEnv) notifications(t *testing.T, userID uuid.UUID) []core.Notification {
	t.Helper()
	list, err := e.repo.NotificationsForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return list
}
