package errors

// represents a standardized error response
type ErrorResponse struct {
	Error   string `json:"error"`             // error code (e.g., "unauthorized", "not_found")
	Message string `json:"message"`           // user-friendly message
	Details string `json:"details,omitempty"` // optional details (sanitized in production)
}

// standard error codes
const (
	CodeUnauthorized    = "unauthorized"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeValidationError = "validation_error"
	CodeServerError     = "server_error"
	CodeBadRequest      = "bad_request"
	CodeTooManyRequests = "too_many_requests"
)

// error categories for classification
const (
	CategoryNetwork = "network"
	CategoryAuth    = "auth"
	CategoryTimeout = "timeout"
	CategoryUnknown = "unknown"
)

// holds the result of classifying an error
type ErrorInfo struct {
	category  string
	sanitized string
}
