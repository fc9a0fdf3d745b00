package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/storage"
)

// BudgetRenewer clones auto-renew budgets from the prior month into the
// current one. Invoked once at the start of each month by the external
// trigger.
type BudgetRenewer struct {
	storage *storage.SQLiteRepository
	logger  *log.Logger
}

func NewBudgetRenewer(storage *storage.SQLiteRepository, logger *log.Logger) *BudgetRenewer {
	return &BudgetRenewer{
		storage: storage,
		logger:  logger.WithComponent(log.ComponentRenewal),
	}
}

// RenewBudgets finds every auto-renew budget keyed to the calendar month
// before today's and creates its successor: same user, category and amount,
// month advanced by one, auto-renew kept on.
//
// Each successor is its own unit of work. A successor whose (user, category,
// month) key already exists, typically because the user created next month's
// budget manually, is counted as skipped and logged; the engine never
// overwrites or merges. Budgets without auto-renew lapse silently.
// Running the job twice in the same month therefore creates nothing the
// second time.
func (b *BudgetRenewer) RenewBudgets(ctx context.Context, today time.Time) (RunSummary, error) {
	lastMonthStart := core.FirstOfMonth(today).AddDate(0, -1, 0)
	lastMonthEnd := core.FirstOfMonth(today).AddDate(0, 0, -1)

	budgets, err := b.storage.BudgetsToRenew(ctx, lastMonthStart, lastMonthEnd)
	if err != nil {
		return RunSummary{}, fmt.Errorf("query budgets to renew: %w", err)
	}

	b.logger.InfoContext(ctx, "starting budget renewal job",
		"candidates", len(budgets),
		log.FieldMonth, lastMonthStart.Format("2006-01"))

	var summary RunSummary
	for _, old := range budgets {
		successor := old.Successor()
		switch err := b.storage.CreateBudget(ctx, successor); {
		case err == nil:
			summary.Processed++
			b.logger.InfoContext(ctx, "renewed budget",
				log.FieldBudgetID, successor.ID,
				log.FieldUserID, successor.UserID,
				log.FieldCategory, successor.CategoryID,
				log.FieldAmount, successor.BudgetAmount,
				log.FieldMonth, successor.BudgetMonth.Format("2006-01"))
		case errors.Is(err, storage.ErrDuplicateBudget):
			summary.Skipped++
			b.logger.WarnContext(ctx, "budget for target month already exists, not overwriting",
				log.FieldUserID, successor.UserID,
				log.FieldCategory, successor.CategoryID,
				log.FieldMonth, successor.BudgetMonth.Format("2006-01"))
		default:
			summary.Failed++
			b.logger.ErrorContext(ctx, "budget renewal failed",
				log.FieldBudgetID, old.ID,
				log.FieldError, err)
		}
	}

	b.logger.InfoContext(ctx, "budget renewal job finished",
		log.FieldProcessed, summary.Processed,
		log.FieldSkipped, summary.Skipped,
		log.FieldFailed, summary.Failed)

	return summary, nil
}
