package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sqlite3 "modernc.org/sqlite"

	"budgetwise/internal/core"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateBudget is returned when an insert would violate the
	// (user, category, budget_month) uniqueness constraint.
	ErrDuplicateBudget = errors.New("budget already exists for user, category and month")
	// ErrForbidden is returned when a row exists but belongs to another user.
	ErrForbidden = errors.New("row owned by another user")
	// ErrRuleActive is returned when deleting a rule that is still active.
	ErrRuleActive = errors.New("rule is still active")
)

// SQLiteRepository persists all engine entities in a single SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- reference data ---

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, phone_number) VALUES (?, ?, ?, ?)`,
		u.ID.String(), u.Username, u.Email, u.PhoneNumber)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, category_type) VALUES (?, ?, ?, ?)`,
		c.ID.String(), c.UserID.String(), c.Name, string(c.Type))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCategoryName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT name FROM categories WHERE id = ?`, id.String()).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get category name: %w", err)
	}
	return name, nil
}

// GetUserContact resolves the delivery addresses for a user's alerts.
func (r *SQLiteRepository) GetUserContact(ctx context.Context, id uuid.UUID) (email, phone string, err error) {
	var nullPhone sql.NullString
	err = r.db.QueryRowContext(ctx,
		`SELECT email, phone_number FROM users WHERE id = ?`, id.String()).Scan(&email, &nullPhone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("get user contact: %w", err)
	}
	return email, nullPhone.String, nil
}

// --- recurring rules ---

const ruleColumns = `id, user_id, category_id, name, amount, description,
	start_date, end_date, next_execution_date, is_active, schedule_type`

func (r *SQLiteRepository) CreateRecurringRule(ctx context.Context, rule core.RecurringRule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules
			(id, user_id, category_id, name, amount, description,
			 start_date, end_date, next_execution_date, is_active, schedule_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID.String(), rule.UserID.String(), rule.CategoryID.String(),
		rule.Name, rule.Amount.String(), rule.Description,
		rule.StartDate.Format(dateLayout), nullDate(rule.EndDate),
		rule.NextExecutionDate.Format(dateLayout),
		boolToInt(rule.IsActive), string(rule.Schedule))
	if err != nil {
		return fmt.Errorf("create recurring rule: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetRecurringRule(ctx context.Context, id uuid.UUID) (*core.RecurringRule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`, id.String())
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring rule: %w", err)
	}
	return rule, nil
}

// DueRecurringRules returns every active rule whose next execution date is on
// or before today. Rows with an unknown schedule_type are still returned; the
// processor decides how to handle them.
func (r *SQLiteRepository) DueRecurringRules(ctx context.Context, today time.Time) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM recurring_rules
		WHERE is_active = 1 AND next_execution_date <= ?`,
		today.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query due rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due rules: %w", err)
	}
	return rules, nil
}

// DeactivateRule flips is_active off, used both for expiry and for explicit
// user deactivation.
func (r *SQLiteRepository) DeactivateRule(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules
		SET is_active = 0, updated_at = datetime('now')
		WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deactivate rule: %w", err)
	}
	return requireRow(res)
}

// ActivateRule re-enables a rule with a recomputed next execution date
// (stale dates are caught up to the present by the caller).
func (r *SQLiteRepository) ActivateRule(ctx context.Context, id uuid.UUID, nextExecution time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules
		SET is_active = 1, next_execution_date = ?, updated_at = datetime('now')
		WHERE id = ?`,
		nextExecution.Format(dateLayout), id.String())
	if err != nil {
		return fmt.Errorf("activate rule: %w", err)
	}
	return requireRow(res)
}

// DeleteRule removes a rule. Active rules are refused; the caller must
// deactivate first.
func (r *SQLiteRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	var active int
	err := r.db.QueryRowContext(ctx,
		`SELECT is_active FROM recurring_rules WHERE id = ?`, id.String()).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check rule state: %w", err)
	}
	if active != 0 {
		return ErrRuleActive
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM recurring_rules WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

// CreateTransactionAndAdvanceRule materializes a ledger entry and advances
// its rule's next execution date in one SQL transaction. Either both persist
// or neither does, so a retry after failure can never duplicate or lose a
// materialization.
func (r *SQLiteRepository) CreateTransactionAndAdvanceRule(ctx context.Context, t core.Transaction, nextExecution time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertTransaction(ctx, tx, t); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE recurring_rules
		SET next_execution_date = ?, updated_at = datetime('now')
		WHERE id = ?`,
		nextExecution.Format(dateLayout), t.RecurringRuleID.String())
	if err != nil {
		return fmt.Errorf("advance rule: %w", err)
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("advance rule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// --- transactions ---

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if err := insertTransaction(ctx, r.db, t); err != nil {
		return err
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, db execer, t core.Transaction) error {
	var ruleID any
	if t.RecurringRuleID != uuid.Nil {
		ruleID = t.RecurringRuleID.String()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, user_id, category_id, amount, transaction_date, description,
			 is_created_automatically, recurring_rule_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.UserID.String(), t.CategoryID.String(),
		t.Amount.String(), t.TransactionDate.UTC().Format(timeLayout),
		t.Description, boolToInt(t.IsCreatedAutomatically), ruleID)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// AmountsForCategoryMonth returns every transaction amount for the user and
// category with a date in [start, end). Amounts are summed by the caller with
// exact decimal arithmetic; SQLite's SUM would go through floating point.
func (r *SQLiteRepository) AmountsForCategoryMonth(ctx context.Context, userID, categoryID uuid.UUID, start, end time.Time) ([]decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT amount FROM transactions
		WHERE user_id = ? AND category_id = ?
		  AND transaction_date >= ? AND transaction_date < ?`,
		userID.String(), categoryID.String(),
		start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("query month amounts: %w", err)
	}
	defer rows.Close()

	var amounts []decimal.Decimal
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan amount: %w", err)
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", raw, err)
		}
		amounts = append(amounts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate amounts: %w", err)
	}
	return amounts, nil
}

// CountTransactionsForRule reports how many ledger entries a rule has
// materialized, used by tests and diagnostics.
func (r *SQLiteRepository) CountTransactionsForRule(ctx context.Context, ruleID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE recurring_rule_id = ?`,
		ruleID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rule transactions: %w", err)
	}
	return n, nil
}

// --- budgets ---

const budgetColumns = `id, user_id, category_id, budget_month, budget_amount, auto_renew`

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, user_id, category_id, budget_month, budget_amount, auto_renew)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.UserID.String(), b.CategoryID.String(),
		b.BudgetMonth.Format(dateLayout), b.BudgetAmount.String(),
		boolToInt(b.AutoRenew))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBudget
		}
		return fmt.Errorf("create budget: %w", err)
	}
	return nil
}

// FindBudget resolves the budget for one user, category and period key.
// Returns ErrNotFound when the category is not budgeted for that month.
func (r *SQLiteRepository) FindBudget(ctx context.Context, userID, categoryID uuid.UUID, month time.Time) (*core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? AND category_id = ? AND budget_month = ?`,
		userID.String(), categoryID.String(), month.Format(dateLayout))
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find budget: %w", err)
	}
	return b, nil
}

// BudgetsToRenew returns all auto-renew budgets whose month falls in
// [start, end] inclusive.
func (r *SQLiteRepository) BudgetsToRenew(ctx context.Context, start, end time.Time) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE auto_renew = 1 AND budget_month BETWEEN ? AND ?`,
		start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query budgets to renew: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return budgets, nil
}

// BudgetProgress computes spend against every budget the user holds for the
// given month. Derived on demand, never stored.
func (r *SQLiteRepository) BudgetProgress(ctx context.Context, userID uuid.UUID, month time.Time) ([]core.BudgetProgress, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.category_id, c.name, b.budget_amount
		FROM budgets b
		JOIN categories c ON c.id = b.category_id
		WHERE b.user_id = ? AND b.budget_month = ?`,
		userID.String(), month.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query budget progress: %w", err)
	}
	defer rows.Close()

	var progress []core.BudgetProgress
	for rows.Next() {
		var (
			p         core.BudgetProgress
			id, catID string
			rawAmount string
		)
		if err := rows.Scan(&id, &catID, &p.CategoryName, &rawAmount); err != nil {
			return nil, fmt.Errorf("scan budget progress: %w", err)
		}
		if p.BudgetID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse budget id: %w", err)
		}
		if p.CategoryID, err = uuid.Parse(catID); err != nil {
			return nil, fmt.Errorf("parse category id: %w", err)
		}
		if p.BudgetAmount, err = decimal.NewFromString(rawAmount); err != nil {
			return nil, fmt.Errorf("parse budget amount %q: %w", rawAmount, err)
		}
		progress = append(progress, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budget progress: %w", err)
	}

	start, end := core.MonthRange(month)
	for i := range progress {
		amounts, err := r.AmountsForCategoryMonth(ctx, userID, progress[i].CategoryID, start, end)
		if err != nil {
			return nil, err
		}
		progress[i].AmountSpent = core.SumAmounts(amounts)
		progress[i].AmountRemaining = progress[i].BudgetAmount.Sub(progress[i].AmountSpent)
	}
	return progress, nil
}

// --- notifications ---

func (r *SQLiteRepository) CreateNotification(ctx context.Context, n core.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, message, is_read)
		VALUES (?, ?, ?, ?)`,
		n.ID.String(), n.UserID.String(), n.Message, boolToInt(n.IsRead))
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// NotificationsForUser lists a user's notifications, newest first.
func (r *SQLiteRepository) NotificationsForUser(ctx context.Context, userID uuid.UUID) ([]core.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, message, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`,
		userID.String())
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []core.Notification
	for rows.Next() {
		var (
			n          core.Notification
			id, uid    string
			read       int
			rawCreated string
		)
		if err := rows.Scan(&id, &uid, &n.Message, &read, &rawCreated); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if n.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse notification id: %w", err)
		}
		if n.UserID, err = uuid.Parse(uid); err != nil {
			return nil, fmt.Errorf("parse notification user id: %w", err)
		}
		n.IsRead = read != 0
		n.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", rawCreated)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead flags one notification as read. A notification owned
// by a different user is refused, not silently updated.
func (r *SQLiteRepository) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	var owner string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM notifications WHERE id = ?`, id.String()).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check notification owner: %w", err)
	}
	if owner != userID.String() {
		return ErrForbidden
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ?`, userID.String()); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*core.RecurringRule, error) {
	var (
		rule                 core.RecurringRule
		id, uid, cid         string
		rawAmount            string
		rawStart, rawNext    string
		rawEnd               sql.NullString
		active               int
		schedule             string
	)
	err := row.Scan(&id, &uid, &cid, &rule.Name, &rawAmount, &rule.Description,
		&rawStart, &rawEnd, &rawNext, &active, &schedule)
	if err != nil {
		return nil, err
	}
	if rule.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse rule id: %w", err)
	}
	if rule.UserID, err = uuid.Parse(uid); err != nil {
		return nil, fmt.Errorf("parse rule user id: %w", err)
	}
	if rule.CategoryID, err = uuid.Parse(cid); err != nil {
		return nil, fmt.Errorf("parse rule category id: %w", err)
	}
	if rule.Amount, err = decimal.NewFromString(rawAmount); err != nil {
		return nil, fmt.Errorf("parse rule amount %q: %w", rawAmount, err)
	}
	if rule.StartDate, err = time.Parse(dateLayout, rawStart); err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", rawStart, err)
	}
	if rawEnd.Valid {
		if rule.EndDate, err = time.Parse(dateLayout, rawEnd.String); err != nil {
			return nil, fmt.Errorf("parse end date %q: %w", rawEnd.String, err)
		}
	}
	if rule.NextExecutionDate, err = time.Parse(dateLayout, rawNext); err != nil {
		return nil, fmt.Errorf("parse next execution date %q: %w", rawNext, err)
	}
	rule.IsActive = active != 0
	rule.Schedule = core.ScheduleType(schedule)
	return &rule, nil
}

func scanBudget(row rowScanner) (*core.Budget, error) {
	var (
		b                   core.Budget
		id, uid, cid        string
		rawMonth, rawAmount string
		renew               int
	)
	err := row.Scan(&id, &uid, &cid, &rawMonth, &rawAmount, &renew)
	if err != nil {
		return nil, err
	}
	if b.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse budget id: %w", err)
	}
	if b.UserID, err = uuid.Parse(uid); err != nil {
		return nil, fmt.Errorf("parse budget user id: %w", err)
	}
	if b.CategoryID, err = uuid.Parse(cid); err != nil {
		return nil, fmt.Errorf("parse budget category id: %w", err)
	}
	if b.BudgetMonth, err = time.Parse(dateLayout, rawMonth); err != nil {
		return nil, fmt.Errorf("parse budget month %q: %w", rawMonth, err)
	}
	if b.BudgetAmount, err = decimal.NewFromString(rawAmount); err != nil {
		return nil, fmt.Errorf("parse budget amount %q: %w", rawAmount, err)
	}
	b.AutoRenew = renew != 0
	return &b, nil
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite3.Error
	if errors.As(err, &se) {
		// 2067 = SQLITE_CONSTRAINT_UNIQUE, 1555 = SQLITE_CONSTRAINT_PRIMARYKEY
		code := se.Code()
		return code == 2067 || code == 1555
	}
	return false
}
