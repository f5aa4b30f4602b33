package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// recoveryResponseWriter tracks whether a response has been started, so the
// recovery boundary knows if it can still write an error response.
type recoveryResponseWriter struct {
	http.ResponseWriter
	written bool
}

func (w *recoveryResponseWriter) WriteHeader(statusCode int) {
	w.written = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *recoveryResponseWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Recovery returns a catch-all middleware that converts handler panics into
// logged 500 responses. A panic terminates only the request that raised it.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &recoveryResponseWriter{ResponseWriter: w}

			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panic",
						"panic", rec,
						"method", r.Method,
						"path", r.URL.Path,
						"request_id", GetRequestID(r.Context()),
					)
					if !wrapped.written {
						wrapped.Header().Set("Content-Type", "application/json")
						wrapped.WriteHeader(http.StatusInternalServerError)
						_ = json.NewEncoder(wrapped).Encode(map[string]string{
							"error": "Internal server error",
						})
					}
				}
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
