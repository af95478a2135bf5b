package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"banking-ledger-api/internal/logger"
	"banking-ledger-api/internal/model"
	"banking-ledger-api/internal/service"
)

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(model.SuccessResponse(message, data))
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse(message))
}

// writeServiceError maps a service failure to its external status. Unknown
// errors are reported opaquely so internal state never leaks.
func writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *service.ServiceError
	if errors.As(err, &svcErr) {
		switch svcErr.Code {
		case model.ErrCodeAccountNotFound:
			writeError(w, http.StatusNotFound, svcErr.Message)
		case model.ErrCodeInvalidInput, model.ErrCodeInvalidAmount,
			model.ErrCodeInsufficientBalance, model.ErrCodeAccountClosed:
			writeError(w, http.StatusBadRequest, svcErr.Message)
		case model.ErrCodeConflict:
			writeError(w, http.StatusConflict, svcErr.Message)
		case model.ErrCodeUnavailable:
			writeError(w, http.StatusServiceUnavailable, svcErr.Message)
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	logger.Error("unhandled error", err, nil)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
