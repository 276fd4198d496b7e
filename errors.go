package lienos

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("lienos: not found")
	ErrAlreadyExists = errors.New("lienos: already exists")
	ErrInvalidInput  = errors.New("lienos: invalid input")
	ErrMissingTenant = errors.New("lienos: missing tenant scope")
	ErrConflict      = errors.New("lienos: conflicting update")
	ErrStaleWrite    = errors.New("lienos: stale write, record was modified concurrently")
	ErrTimeout       = errors.New("lienos: operation timed out")

	// Lien errors
	ErrLienNotFound      = errors.New("lienos: lien not found")
	ErrLienNotActive     = errors.New("lienos: lien is not active")
	ErrLienTerminal      = errors.New("lienos: lien is in a terminal state")
	ErrInvalidTransition = errors.New("lienos: invalid status transition")
	ErrInvalidPrincipal  = errors.New("lienos: principal must be positive")
	ErrInvalidRate       = errors.New("lienos: interest rate out of range")
	ErrInvalidDeadline   = errors.New("lienos: redemption deadline precedes purchase date")

	// Accrual errors
	ErrInvalidAsOfDate = errors.New("lienos: as-of date precedes purchase date")

	// Payment errors
	ErrPaymentNotFound  = errors.New("lienos: payment not found")
	ErrDuplicatePayment = errors.New("lienos: duplicate payment")
	ErrInvalidAmount    = errors.New("lienos: payment amount must be positive")
	ErrPaymentBeforeBuy = errors.New("lienos: payment date precedes lien purchase date")
	ErrPaymentImmutable = errors.New("lienos: payments are append-only")
	ErrOverpayment      = errors.New("lienos: payment exceeds outstanding balance")

	// Deadline errors
	ErrDeadlineNotFound = errors.New("lienos: deadline not found")
	ErrThresholdFired   = errors.New("lienos: threshold already fired")
	ErrSweepRunning     = errors.New("lienos: deadline sweep already in progress")

	// Notification errors
	ErrNotificationNotFound = errors.New("lienos: notification not found")

	// Store errors
	ErrStoreNotReady     = errors.New("lienos: store not ready")
	ErrStoreClosed       = errors.New("lienos: store is closed")
	ErrTransactionFailed = errors.New("lienos: transaction failed")
	ErrMigrationFailed   = errors.New("lienos: migration failed")
)

// ValidationError represents a single field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("lienos: validation failed for %s: %s", e.Field, e.Message)
}

// ValidationErrors accumulates every violation found during validation so
// callers see the full list in one pass instead of fixing fields one at a time.
type ValidationErrors struct {
	Errors []ValidationError
}

func (e ValidationErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "lienos: validation failed"
	case 1:
		return e.Errors[0].Error()
	}
	fields := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		fields[i] = ve.Field
	}
	return fmt.Sprintf("lienos: validation failed for %d fields: %s",
		len(e.Errors), strings.Join(fields, ", "))
}

// Add records a field violation.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if any violations were recorded.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first violation or nil.
func (e ValidationErrors) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "lienos: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("lienos: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrLienNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrDeadlineNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

// IsValidation returns true if the error carries field-level validation detail.
func IsValidation(err error) bool {
	var single ValidationError
	var multi ValidationErrors
	return errors.As(err, &single) || errors.As(err, &multi)
}

// IsBusinessRule returns true if the error reflects a lifecycle rule
// rather than bad input or infrastructure failure.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrLienNotActive) ||
		errors.Is(err, ErrLienTerminal) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicatePayment) ||
		errors.Is(err, ErrPaymentImmutable) ||
		errors.Is(err, ErrThresholdFired)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStaleWrite) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
