package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldUserID      = "user_id"
	FieldChatID      = "chat_id"
	FieldEntryID     = "entry_id"
	FieldKind        = "kind"
	FieldCategory    = "category"
	FieldAmountCents = "amount_cents"
	FieldConfidence  = "confidence"
	FieldCommand     = "command"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldDuration    = "duration_ms"
	FieldQueue       = "queue"
	FieldExchange    = "exchange"
	FieldSheetsRef   = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentBot        = "bot"
	ComponentClassifier = "classifier"
	ComponentSession    = "session"
	ComponentRateLimit  = "rate_limit"
	ComponentStorage    = "storage"
	ComponentReport     = "report"
	ComponentChart      = "chart"
	ComponentSchedule   = "schedule"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentHealth     = "health"
)

// Operations defines standard operation names
const (
	OpClassify = "classify"
	OpValidate = "validate"
	OpConfirm  = "confirm"
	OpCancel   = "cancel"
	OpInsert   = "insert"
	OpDelete   = "delete"
	OpReport   = "report"
	OpRender   = "render"
	OpDeliver  = "deliver"
	OpBackup   = "backup"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
