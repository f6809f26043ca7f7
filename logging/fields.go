package logging

// Field names for structured logging.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldClient    = "client"
	FieldLoanIndex = "loan_index"
	FieldLoanID    = "loan_id"
	FieldPaymentID = "payment_id"
	FieldAmount    = "amount"
	FieldDate      = "date"
	FieldClients   = "clients"
	FieldBackend   = "backend"
	FieldEvent     = "event"
	FieldTotal     = "total"
	FieldCount     = "count"
)

// Component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStore     = "store"
	ComponentScheduler = "scheduler"
	ComponentCLI       = "cli"
)

// Operation names.
const (
	OpDailySummary = "daily_summary"
	OpLoad         = "load"
	OpSave         = "save"
	OpPublish      = "publish"
	OpShutdown     = "shutdown"
)
