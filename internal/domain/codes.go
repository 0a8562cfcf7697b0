package domain

// ErrorCode is the stable string clients branch on in error envelopes.
type ErrorCode string

const (
	CodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	CodeValidationInvalidFormat ErrorCode = "VALIDATION_INVALID_FORMAT"

	CodeResourceNotFound      ErrorCode = "RESOURCE_NOT_FOUND"
	CodeResourceAlreadyExists ErrorCode = "RESOURCE_ALREADY_EXISTS"

	CodeAuthInvalidCredentials      ErrorCode = "AUTH_INVALID_CREDENTIALS"
	CodeAuthInsufficientPermissions ErrorCode = "AUTH_INSUFFICIENT_PERMISSIONS"
	CodeAuthTokenInvalid            ErrorCode = "AUTH_TOKEN_INVALID"
	CodeAuthTokenExpired            ErrorCode = "AUTH_TOKEN_EXPIRED"

	CodeFileUploadFailed ErrorCode = "FILE_UPLOAD_FAILED"
	CodeFileTooLarge     ErrorCode = "FILE_TOO_LARGE"
	CodeFileInvalidType  ErrorCode = "FILE_INVALID_TYPE"

	CodeDatabaseConstraintViolation ErrorCode = "DATABASE_CONSTRAINT_VIOLATION"
	CodeDatabaseConnectionFailed    ErrorCode = "DATABASE_CONNECTION_FAILED"
	CodeDatabaseTransactionFailed   ErrorCode = "DATABASE_TRANSACTION_FAILED"

	CodeRequestTimeout     ErrorCode = "REQUEST_TIMEOUT"
	CodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeInternal           ErrorCode = "INTERNAL_SERVER_ERROR"
)

func (c ErrorCode) String() string { return string(c) }
