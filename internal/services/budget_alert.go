package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/storage"
)

// AlertDispatcher delivers a budget alert: a durable in-app notification
// plus a best-effort out-of-band message.
type AlertDispatcher interface {
	DispatchBudgetAlert(ctx context.Context, userID uuid.UUID, subject, message string) error
}

// BudgetAlertService decides, after each new transaction, whether the owning
// category's monthly spend has crossed the configured fraction of its budget.
type BudgetAlertService struct {
	storage    *storage.SQLiteRepository
	dispatcher AlertDispatcher
	threshold  decimal.Decimal
	logger     *log.Logger
}

func NewBudgetAlertService(storage *storage.SQLiteRepository, dispatcher AlertDispatcher, threshold decimal.Decimal, logger *log.Logger) *BudgetAlertService {
	return &BudgetAlertService{
		storage:    storage,
		dispatcher: dispatcher,
		threshold:  threshold,
		logger:     logger.WithComponent(log.ComponentAlert),
	}
}

// CheckBudgetAfterTransaction recomputes the category's spend for the full
// calendar month containing the transaction and emits an alert when
// spend/budget reaches the threshold. Categories without a budget for that
// month are not monitored.
//
// Alerts are not deduplicated: every further transaction that keeps the
// ratio at or above the threshold triggers a fresh one.
func (s *BudgetAlertService) CheckBudgetAfterTransaction(ctx context.Context, t core.Transaction) error {
	month := core.FirstOfMonth(t.TransactionDate)

	budget, err := s.storage.FindBudget(ctx, t.UserID, t.CategoryID, month)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find budget: %w", err)
	}

	start, end := core.MonthRange(t.TransactionDate)
	amounts, err := s.storage.AmountsForCategoryMonth(ctx, t.UserID, t.CategoryID, start, end)
	if err != nil {
		return fmt.Errorf("sum month spend: %w", err)
	}
	totalSpent := core.SumAmounts(amounts)

	ratio := core.SpendingRatio(totalSpent, budget.BudgetAmount)
	if ratio.LessThan(s.threshold) {
		return nil
	}

	categoryName, err := s.storage.GetCategoryName(ctx, t.CategoryID)
	if err != nil {
		return fmt.Errorf("resolve category name: %w", err)
	}

	s.logger.InfoContext(ctx, "budget threshold reached",
		log.FieldUserID, t.UserID,
		log.FieldBudgetID, budget.ID,
		log.FieldCategory, t.CategoryID,
		log.FieldRatio, ratio,
		log.FieldThreshold, s.threshold)

	subject := "BudgetWise Alert: " + categoryName
	message := fmt.Sprintf(
		"Budget Alert: You have spent $%s of your $%s budget for %s.",
		totalSpent.StringFixed(2),
		budget.BudgetAmount.StringFixed(2),
		categoryName,
	)

	if err := s.dispatcher.DispatchBudgetAlert(ctx, t.UserID, subject, message); err != nil {
		return fmt.Errorf("dispatch alert: %w", err)
	}
	return nil
}
