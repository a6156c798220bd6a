package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"staffdesk/internal/logs"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer (flush, deadlines).
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// LoggerMW writes one access-log line per request. Server errors log at warn level.
// The query string is left out: invitation tokens travel in the path, never the query,
// but export filters can carry employee names.
func LoggerMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		entry := logs.Logger.WithFields(logrus.Fields{
			"reqid":  GetRequestID(r),
			"method": r.Method,
			"path":   r.URL.Path,
			"status": sw.status,
			"bytes":  sw.bytes,
			"dur":    time.Since(start).String(),
			"ip":     r.RemoteAddr,
		})
		if sw.status >= http.StatusInternalServerError {
			entry.Warn("request")
			return
		}
		entry.Info("request")
	})
}
