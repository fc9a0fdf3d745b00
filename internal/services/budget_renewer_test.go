package services

import (
	"context"
	"testing"
	"time"

	"budgetwise/internal/core"
)

func TestRenewBudgets_ClonesIntoNextMonth(t *testing.T) {
	env := newTestEnv(t, "0.9")
	ctx := context.Background()
	u := env.seedUser(t)
	c := env.seedCategory(t, u.ID, "Groceries")

	env.seedBudget(t, core.Budget{
		UserID:       u.ID,
		CategoryID:   c.ID,
		BudgetMonth:  day(2025, time.January, 1),
		BudgetAmount: dec(t, "500"),
		AutoRenew:    true,
	})

	summary, err := env.renewer.RenewBudgets(ctx, day(2025, time.February, 1))
	if err != nil {
		t.Fatalf("RenewBudgets: %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 1 processed", summary)
	}

	renewed, err := env.repo.FindBudget(ctx, u.ID, c.ID, day(2025, time.February, 1))
	if err != nil {
		t.Fatalf("find renewed budget: %v", err)
	}
	if !renewed.BudgetAmount.Equal(dec(t, "500")) {
		t.Errorf("renewed amount = %s, want 500", renewed.BudgetAmount)
	}
	if !renewed.AutoRenew {
		t.Error("renewed budget must keep auto-renew on")
	}
}

func TestRenewBudgets_SecondRunDoesNotDuplicate(t *testing.T) {
	env := newTestEnv(t, "0.9")
	ctx := context.Background()
	u := env.seedUser(t)
	c := env.seedCategory(t, u.ID, "Groceries")

	env.seedBudget(t, core.Budget{
		UserID:       u.ID,
		CategoryID:   c.ID,
		BudgetMonth:  day(2025, time.January, 1),
		BudgetAmount: dec(t, "500"),
		AutoRenew:    true,
	})

	if _, err := env.renewer.RenewBudgets(ctx, day(2025, time.February, 1)); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := env.renewer.RenewBudgets(ctx, day(2025, time.February, 2))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Processed != 0 || summary.Skipped != 1 {
		t.Errorf("second run summary = %+v, want 0 processed and 1 skipped", summary)
	}
}

func TestRenewBudgets_ManualBudgetNotOverwritten(t *testing.T) {
	env := newTestEnv(t, "0.9")
	ctx := context.Background()
	u := env.seedUser(t)
	c := env.seedCategory(t, u.ID, "Groceries")

	env.seedBudget(t, core.Budget{
		UserID:       u.ID,
		CategoryID:   c.ID,
		BudgetMonth:  day(2025, time.January, 1),
		BudgetAmount: dec(t, "500"),
		AutoRenew:    true,
	})
	// User already created February's budget by hand with a different amount.
	manual := env.seedBudget(t, core.Budget{
		UserID:       u.ID,
		CategoryID:   c.ID,
		BudgetMonth:  day(2025, time.February, 1),
		BudgetAmount: dec(t, "750"),
	})

	summary, err := env.renewer.RenewBudgets(ctx, day(2025, time.February, 1))
	if err != nil {
		t.Fatalf("RenewBudgets: %v", err)
	}
	if summary.Skipped != 1 {
		t.Errorf("summary = %+v, want the colliding renewal skipped", summary)
	}

	got, err := env.repo.FindBudget(ctx, u.ID, c.ID, day(2025, time.February, 1))
	if err != nil {
		t.Fatalf("find budget: %v", err)
	}
	if got.ID != manual.ID || !got.BudgetAmount.Equal(dec(t, "750")) {
		t.Error("manually created budget was replaced by renewal")
	}
}

func TestRenewBudgets_NoAutoRenewLapses(t *testing.T) {
	env := newTestEnv(t, "0.9")
	ctx := context.Background()
	u := env.seedUser(t)
	c := env.seedCategory(t, u.ID, "Groceries")

	env.seedBudget(t, core.Budget{
		UserID:       u.ID,
		CategoryID:   c.ID,
		BudgetMonth:  day(2025, time.January, 1),
		BudgetAmount: dec(t, "500"),
		AutoRenew:    false,
	})

	summary, err := env.renewer.RenewBudgets(ctx, day(2025, time.February, 1))
	if err != nil {
		t.Fatalf("RenewBudgets: %v", err)
	}
	if summary.Processed != 0 {
		t.Errorf("summary = %+v, want nothing renewed", summary)
	}
}
