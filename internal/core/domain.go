package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Daily   ScheduleType = "DAILY"
	Weekly  ScheduleType = "WEEKLY"
	Monthly ScheduleType = "MONTHLY"
	Yearly  ScheduleType = "YEARLY"
)

type (
	// ScheduleType is the closed set of recurrence frequencies. Rules are
	// validated at creation time, so the engine only ever sees these values;
	// anything else on a persisted row is treated as corrupt and skipped.
	ScheduleType string

	// RecurringRule is a user-defined template that periodically generates
	// ledger transactions. NextExecutionDate is the next date a transaction
	// should be materialized; it is advanced only by the scheduler.
	RecurringRule struct {
		ID                uuid.UUID
		UserID            uuid.UUID
		CategoryID        uuid.UUID
		Name              string
		Amount            decimal.Decimal
		Description       string
		StartDate         time.Time
		EndDate           time.Time // zero when the rule never expires
		NextExecutionDate time.Time
		IsActive          bool
		Schedule          ScheduleType
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	// Budget caps spending for one category in one calendar month.
	// BudgetMonth is always the first day of the month and acts as the
	// period key; (UserID, CategoryID, BudgetMonth) is unique.
	Budget struct {
		ID           uuid.UUID
		UserID       uuid.UUID
		CategoryID   uuid.UUID
		BudgetMonth  time.Time
		BudgetAmount decimal.Decimal
		AutoRenew    bool
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// Transaction is a single ledger entry. Entries materialized by the
	// scheduler carry IsCreatedAutomatically and a back-reference to the
	// originating rule.
	Transaction struct {
		ID                     uuid.UUID
		UserID                 uuid.UUID
		CategoryID             uuid.UUID
		Amount                 decimal.Decimal
		TransactionDate        time.Time
		Description            string
		IsCreatedAutomatically bool
		RecurringRuleID        uuid.UUID // zero when entered manually
		CreatedAt              time.Time
		UpdatedAt              time.Time
	}

	// Notification is the durable in-app record of an alert. The external
	// channel (email/SMS) is best-effort on top of it.
	Notification struct {
		ID        uuid.UUID
		UserID    uuid.UUID
		Message   string
		IsRead    bool
		CreatedAt time.Time
	}

	// BudgetProgress is derived on demand, never persisted.
	BudgetProgress struct {
		BudgetID        uuid.UUID
		CategoryID      uuid.UUID
		CategoryName    string
		BudgetAmount    decimal.Decimal
		AmountSpent     decimal.Decimal
		AmountRemaining decimal.Decimal
	}
)

var (
	ErrInvalidSchedule  = errors.New("invalid schedule type")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrEmptyName        = errors.New("empty rule name")
	ErrMissingStartDate = errors.New("missing start date")
	ErrEndBeforeStart   = errors.New("end date before start date")
	ErrMissingOwner     = errors.New("missing owning user")
	ErrMissingCategory  = errors.New("missing category")
	ErrNotMonthStart    = errors.New("budget month must be the first day of a month")

	ErrInvalidCategoryType = errors.New("invalid category type")
)

// ParseScheduleType validates user input at the boundary. The engine itself
// only works with already-parsed values.
func ParseScheduleType(s string) (ScheduleType, error) {
	switch st := ScheduleType(strings.ToUpper(strings.TrimSpace(s))); st {
	case Daily, Weekly, Monthly, Yearly:
		return st, nil
	default:
		return "", ErrInvalidSchedule
	}
}

// Valid reports whether the schedule type is one of the four known values.
func (s ScheduleType) Valid() bool {
	switch s {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (r RecurringRule) Validate() error {
	if r.UserID == uuid.Nil {
		return ErrMissingOwner
	}
	if r.CategoryID == uuid.Nil {
		return ErrMissingCategory
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if len(r.Name) > 100 {
		return errors.New("rule name too long (max 100 characters)")
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if r.StartDate.IsZero() {
		return ErrMissingStartDate
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return ErrEndBeforeStart
	}
	if !r.Schedule.Valid() {
		return ErrInvalidSchedule
	}
	return nil
}

// Expired reports whether the rule's end date has passed as of today.
// Rules without an end date never expire.
func (r RecurringRule) Expired(today time.Time) bool {
	return !r.EndDate.IsZero() && today.After(r.EndDate)
}

func (b Budget) Validate() error {
	if b.UserID == uuid.Nil {
		return ErrMissingOwner
	}
	if b.CategoryID == uuid.Nil {
		return ErrMissingCategory
	}
	if !b.BudgetAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if b.BudgetMonth.IsZero() || b.BudgetMonth.Day() != 1 {
		return ErrNotMonthStart
	}
	return nil
}

// Successor clones the budget into the following month with the same amount
// and auto-renew left on. Used by the monthly renewal job.
func (b Budget) Successor() Budget {
	return Budget{
		ID:           uuid.New(),
		UserID:       b.UserID,
		CategoryID:   b.CategoryID,
		BudgetMonth:  b.BudgetMonth.AddDate(0, 1, 0),
		BudgetAmount: b.BudgetAmount,
		AutoRenew:    true,
	}
}

func (t Transaction) Validate() error {
	if t.UserID == uuid.Nil {
		return ErrMissingOwner
	}
	if t.CategoryID == uuid.Nil {
		return ErrMissingCategory
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.TransactionDate.IsZero() {
		return errors.New("missing transaction date")
	}
	return nil
}

// FirstOfMonth truncates a timestamp to the first day of its calendar month
// at start of day, the canonical budget period key.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthRange returns the inclusive start and exclusive end of the calendar
// month containing t.
func MonthRange(t time.Time) (start, end time.Time) {
	start = FirstOfMonth(t)
	return start, start.AddDate(0, 1, 0)
}

// StartOfDay truncates a timestamp to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
