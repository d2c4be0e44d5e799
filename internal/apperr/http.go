package apperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

type response struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// Status maps err onto an HTTP status code.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindState:
		if e.Code == CodeMonthClosed {
			return http.StatusForbidden
		}
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Write renders err as {"detail","code"} JSON. Server errors are logged and
// their cause is not echoed to the client.
func Write(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := Status(err)
	body := response{Detail: err.Error(), Code: CodeOf(err)}

	if log != nil {
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		}
		if status >= http.StatusInternalServerError {
			log.Error("request failed", fields...)
		} else {
			log.Warn("request rejected", fields...)
		}
	}

	if status >= http.StatusInternalServerError {
		var e *Error
		if errors.As(err, &e) {
			body.Detail = e.Message
		} else {
			body.Detail = "internal server error"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
