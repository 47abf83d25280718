package rest

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"rhyolite-backend/pkg/api"
	appErrors "rhyolite-backend/pkg/errors"
)

// respondServiceError maps application errors onto HTTP status codes.
// Validation errors carry their schema violations; storage and internal
// failures are logged in full and answered with a generic message.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case appErrors.IsValidation(err):
		if violations := appErrors.ViolationsOf(err); len(violations) > 0 {
			api.ValidationError(w, messageOf(err), violations)
			return
		}
		api.Error(w, http.StatusBadRequest, messageOf(err))
	case appErrors.IsNotFound(err):
		api.Error(w, http.StatusNotFound, messageOf(err))
	case appErrors.IsConflict(err):
		api.Error(w, http.StatusConflict, messageOf(err))
	case appErrors.IsStorage(err):
		logger.Error("storage failure", zap.Error(err))
		api.Error(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		logger.Error("unhandled service error", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// messageOf returns the application-level message without the type prefix
// that Error() adds.
func messageOf(err error) string {
	if appErr, ok := err.(*appErrors.AppError); ok {
		return appErr.Message
	}
	return err.Error()
}

// requestLogger logs one line per request with method, path, status, and
// duration.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
