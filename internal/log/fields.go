package log

// Common field names for structured logging.
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldJob       = "job"
	FieldUserID    = "user_id"
	FieldRuleID    = "rule_id"
	FieldRuleName  = "rule_name"
	FieldBudgetID  = "budget_id"
	FieldCategory  = "category_id"
	FieldTxID      = "transaction_id"
	FieldAmount    = "amount"
	FieldSchedule  = "schedule"
	FieldNextDate  = "next_execution_date"
	FieldMonth     = "budget_month"
	FieldRatio     = "spending_ratio"
	FieldThreshold = "alert_threshold"
	FieldProcessed = "processed"
	FieldExpired   = "expired"
	FieldSkipped   = "skipped"
	FieldFailed    = "failed"
	FieldDuration  = "duration_ms"
)

// Components defines standard component names.
const (
	ComponentScheduler = "scheduler"
	ComponentRecurring = "recurring"
	ComponentRenewal   = "renewal"
	ComponentAlert     = "alert"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentNotify    = "notify"
	ComponentWorker    = "worker"
)
