package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// LoggingMiddleware logs method, URI, status, response size and
// duration for every request as a structured zerolog entry.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Use(middleware.LoggingMiddleware)
//	r.Get("/", handler)
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", lrw.statusCode).
			Int("size", lrw.size).
			Dur("duration", time.Since(start)).
			Msg("handled request")
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture the
// status code and response size, which are otherwise invisible to
// middleware. Not safe for concurrent use; one instance per request.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	size, err := lrw.ResponseWriter.Write(b)
	lrw.size += size
	return size, err
}
