package model

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// SuccessResponse wraps a payload in a success envelope.
func SuccessResponse(message string, data any) Response {
	return Response{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// ErrorResponse builds a failure envelope with a null payload.
func ErrorResponse(message string) Response {
	return Response{
		Success: false,
		Message: message,
	}
}

// Error codes surfaced by the service layer and mapped to HTTP statuses by
// the handlers.
const (
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeAccountClosed       = "ACCOUNT_CLOSED"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeUnavailable         = "UNAVAILABLE"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)
