// Package services holds the engine's batch orchestration: materializing due
// recurring rules, renewing budgets across month boundaries, and evaluating
// budget alerts on new transactions.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/storage"
)

// RunSummary reports what one batch run did. The batch never propagates
// per-item errors; failures show up here and in the logs.
type RunSummary struct {
	Processed int // transactions materialized (or budgets created)
	Expired   int // rules deactivated because their end date passed
	Skipped   int // items ignored (corrupt schedule, duplicate budget)
	Failed    int // persistence failures left for the next run to retry
}

// RecurringProcessor materializes ledger transactions from due recurring
// rules. Invoked once per day by the external trigger.
type RecurringProcessor struct {
	storage *storage.SQLiteRepository
	alerts  *BudgetAlertService
	logger  *log.Logger
}

func NewRecurringProcessor(storage *storage.SQLiteRepository, alerts *BudgetAlertService, logger *log.Logger) *RecurringProcessor {
	return &RecurringProcessor{
		storage: storage,
		alerts:  alerts,
		logger:  logger.WithComponent(log.ComponentRecurring),
	}
}

// ProcessDueRules materializes one transaction for every active rule whose
// next execution date is on or before today, then advances each rule.
//
// Each rule is an independent unit of work: a failure is logged and counted,
// never allowed to stop the rest of the batch. A failed rule keeps its
// pre-failure next execution date, so the next daily run retries it.
//
// A rule skipped for several days materializes a single transaction dated at
// the stale next execution date and advances once; missed occurrences are not
// backfilled. Running twice on the same day is a no-op the second time, since
// every due date has already advanced past today.
func (p *RecurringProcessor) ProcessDueRules(ctx context.Context, today time.Time) (RunSummary, error) {
	today = core.StartOfDay(today)

	rules, err := p.storage.DueRecurringRules(ctx, today)
	if err != nil {
		return RunSummary{}, fmt.Errorf("query due rules: %w", err)
	}

	p.logger.InfoContext(ctx, "starting recurring transactions job",
		"due_rules", len(rules),
		"processing_date", today.Format("2006-01-02"))

	var summary RunSummary
	for _, rule := range rules {
		switch err := p.processRule(ctx, rule, today); {
		case err == nil && rule.Expired(today):
			summary.Expired++
		case err == nil:
			summary.Processed++
		case isSkip(err):
			summary.Skipped++
			p.logger.WarnContext(ctx, "skipping rule",
				log.FieldRuleID, rule.ID,
				log.FieldRuleName, rule.Name,
				log.FieldError, err)
		default:
			summary.Failed++
			p.logger.ErrorContext(ctx, "rule failed, will retry next run",
				log.FieldRuleID, rule.ID,
				log.FieldRuleName, rule.Name,
				log.FieldError, err)
		}
	}

	p.logger.InfoContext(ctx, "recurring transactions job finished",
		log.FieldProcessed, summary.Processed,
		log.FieldExpired, summary.Expired,
		log.FieldSkipped, summary.Skipped,
		log.FieldFailed, summary.Failed)

	return summary, nil
}

// processRule handles a single due rule: expiry first, then the atomic
// create-transaction/advance-rule pair, then the alert check.
func (p *RecurringProcessor) processRule(ctx context.Context, rule core.RecurringRule, today time.Time) error {
	// Expired rules are deactivated without materializing, even though they
	// were selected as due.
	if rule.Expired(today) {
		if err := p.storage.DeactivateRule(ctx, rule.ID); err != nil {
			return fmt.Errorf("deactivate expired rule: %w", err)
		}
		p.logger.InfoContext(ctx, "deactivated expired rule",
			log.FieldRuleID, rule.ID,
			log.FieldRuleName, rule.Name)
		return nil
	}

	// A corrupt schedule on a persisted row must not crash the batch.
	if !rule.Schedule.Valid() {
		return skipError{fmt.Errorf("%w: %q", core.ErrInvalidSchedule, rule.Schedule)}
	}

	transaction := core.Transaction{
		ID:                     uuid.New(),
		UserID:                 rule.UserID,
		CategoryID:             rule.CategoryID,
		Amount:                 rule.Amount,
		TransactionDate:        core.StartOfDay(rule.NextExecutionDate),
		Description:            rule.Description,
		IsCreatedAutomatically: true,
		RecurringRuleID:        rule.ID,
	}

	next := core.NextExecution(rule.NextExecutionDate, rule.Schedule)
	if err := p.storage.CreateTransactionAndAdvanceRule(ctx, transaction, next); err != nil {
		return fmt.Errorf("materialize rule: %w", err)
	}

	p.logger.InfoContext(ctx, "materialized transaction from rule",
		log.FieldTxID, transaction.ID,
		log.FieldRuleID, rule.ID,
		log.FieldRuleName, rule.Name,
		log.FieldAmount, rule.Amount,
		log.FieldSchedule, rule.Schedule,
		log.FieldNextDate, next.Format("2006-01-02"))

	// Alert evaluation runs after the materialization is durable. An alert
	// failure never undoes or fails the materialization itself.
	if err := p.alerts.CheckBudgetAfterTransaction(ctx, transaction); err != nil {
		p.logger.ErrorContext(ctx, "budget alert check failed",
			log.FieldTxID, transaction.ID,
			log.FieldError, err)
	}

	return nil
}

// skipError marks per-item conditions that are counted as skipped rather
// than failed (they will not succeed on retry either).
type skipError struct{ error }

func (s skipError) Unwrap() error { return s.error }

func isSkip(err error) bool {
	_, ok := err.(skipError)
	return ok
}
