package passcode

import "errors"

var (
	// ErrInvalidDigit is returned when a value outside 0-9 reaches the flow.
	ErrInvalidDigit = errors.New("passcode: invalid digit")
	// ErrInputFull is returned when a digit arrives while the entry is already complete.
	ErrInputFull = errors.New("passcode: entry already complete")
	// ErrFlowClosed is returned for any event after the flow succeeded or was cancelled.
	ErrFlowClosed = errors.New("passcode: flow closed")
	// ErrEvaluating is returned for events that arrive while an entry is being evaluated.
	ErrEvaluating = errors.New("passcode: evaluation in progress")
	// ErrUnknownMode is returned by ParseMode.
	ErrUnknownMode = errors.New("passcode: unknown mode")
	// ErrNoSecret is returned by a SecretStore that holds no passcode.
	ErrNoSecret = errors.New("passcode: no stored secret")
	// ErrStoreUnavailable wraps secret store failures other than ErrNoSecret.
	ErrStoreUnavailable = errors.New("passcode: secret store unavailable")
)

// Failure reasons attached to log records.
const (
	ReasonMismatch         = "mismatch"
	ReasonNoSecret         = "no_secret"
	ReasonStoreUnavailable = "store_unavailable"
)
