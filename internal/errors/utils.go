package errors

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
)

// Error Handling Guidelines:
//
// For HTTP REST handlers:
//   - Use errors.InternalError(), errors.BadRequest(), etc. for critical errors
//     These functions handle both logging and HTTP response automatically
//   - Use logger.ErrorErr() only for non-critical errors where processing continues
//
// For WebSocket handlers:
//   - Use logger.ErrorErr() + client.SendError() + return err
//   - This provides both server-side logging and client-side error notification
//
// For services/internal packages:
//   - Return wrapped errors with context using fmt.Errorf("context: %w", err)
//   - Let the caller (handler) decide how to log and respond

// analyzes an error and returns its category and sanitized message
func classifyError(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{CategoryUnknown, ""}
	}

	env := os.Getenv("ENVIRONMENT")
	isProduction := env == "production"

	// context errors
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorInfo{
			category:  CategoryTimeout,
			sanitized: ternary(isProduction, "request timed out", err.Error()),
		}
	}

	if errors.Is(err, context.Canceled) {
		return ErrorInfo{
			category:  CategoryTimeout,
			sanitized: ternary(isProduction, "request canceled", err.Error()),
		}
	}

	// network errors
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorInfo{
			category:  CategoryNetwork,
			sanitized: ternary(isProduction, "network operation failed", err.Error()),
		}
	}

	// auth errors by message content
	lowered := strings.ToLower(err.Error())
	if strings.Contains(lowered, "token") || strings.Contains(lowered, "signature") {
		return ErrorInfo{
			category:  CategoryAuth,
			sanitized: ternary(isProduction, "authentication failed", err.Error()),
		}
	}

	return ErrorInfo{
		category:  CategoryUnknown,
		sanitized: ternary(isProduction, "an internal error occurred", err.Error()),
	}
}

// returns a sanitized error string safe to expose to clients
func sanitizeError(err error) string {
	return classifyError(err).sanitized
}

// returns a sanitized version of an error string (for already-stringified errors)
func SanitizeErrorString(details string) string {
	if os.Getenv("ENVIRONMENT") != "production" {
		return details
	}

	return classifyError(errors.New(details)).sanitized
}

func ternary(cond bool, a, b string) string {
	if cond {
		return a
	}

	return b
}
