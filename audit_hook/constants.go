package audithook

// Action constants for audit events.
const (
	// Lien actions
	ActionLienCreated    = "lien.created"
	ActionLienUpdated    = "lien.updated"
	ActionLienRedeemed   = "lien.redeemed"
	ActionLienForeclosed = "lien.foreclosed"
	ActionLienExpired    = "lien.expired"

	// Payment actions
	ActionPaymentRecorded = "payment.recorded"

	// Deadline actions
	ActionDeadlineAlert  = "deadline.alert"
	ActionSweepCompleted = "sweep.completed"

	// Notification actions
	ActionNotificationCreated = "notification.created"
)

// Resource constants for audit events.
const (
	ResourceLien         = "lien"
	ResourcePayment      = "payment"
	ResourceDeadline     = "deadline"
	ResourceNotification = "notification"
)

// Category constants for audit events.
const (
	CategoryLedger   = "ledger"
	CategoryPayment  = "payment"
	CategorySchedule = "schedule"
	CategoryAlerting = "alerting"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
