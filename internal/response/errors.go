package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound  ErrCode = "NOT_FOUND"
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Session engine ────────────────────────────────────────────────
	ErrConfiguration       ErrCode = "CONFIGURATION_ERROR"
	ErrInvalidState        ErrCode = "INVALID_STATE"
	ErrDeadlineExceeded    ErrCode = "DEADLINE_EXCEEDED"
	ErrConcurrencyConflict ErrCode = "CONCURRENCY_CONFLICT"
	ErrResultNotReady      ErrCode = "RESULT_NOT_READY"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."
	case ErrForbidden:
		return "You do not have permission to access this resource."

	// ─── Session engine ────────────────────────────────────────────────
	case ErrConfiguration:
		return "This paper cannot be started: it has no usable questions."
	case ErrInvalidState:
		return "This session is already completed and can no longer be changed."
	case ErrDeadlineExceeded:
		return "Time is up. Your session has been submitted automatically."
	case ErrConcurrencyConflict:
		return "The session changed concurrently. Please reload and try again."
	case ErrResultNotReady:
		return "The result is not available until the session is submitted."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
