package rest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/update-manifest/internal/logger"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter

	// status is the code passed to WriteHeader.
	status int
}

// WriteHeader records the status before delegating.
func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// ReadFrom passes bodies such as served files to the underlying writer,
// keeping its sendfile path when it has one.
func (s *statusRecorder) ReadFrom(r io.Reader) (int64, error) {
	return io.Copy(s.ResponseWriter, r)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// withRequestLogging assigns a request id, stores a scoped logger in the
// request context and logs every request once it is served.
func withRequestLogging(base context.Context, next http.Handler) http.Handler {
	baseLogger := logger.FromContext(base)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := logger.ToContext(r.Context(), baseLogger)
		ctx = logger.WithKV(ctx, "request_id", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r.WithContext(ctx))

		logger.InfoKV(ctx, "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"user_agent", r.UserAgent(),
			"elapsed", time.Since(start).String())
	})
}
