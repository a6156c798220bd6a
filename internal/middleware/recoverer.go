package middleware

import (
	"net/http"
	"runtime/debug"

	"staffdesk/internal/logs"
	"staffdesk/internal/models"
)

// Recoverer turns a handler panic into a logged stack trace and a 500 problem response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				reqid := GetRequestID(r)
				logs.Logger.WithField("reqid", reqid).Errorf("panic: %v uri=%s method=%s\nstack:\n%s",
					rec, r.RequestURI, r.Method, string(debug.Stack()))
				models.WriteProblem(w, http.StatusInternalServerError,
					"Internal Server Error",
					"unexpected server error (see logs by reqid)", map[string]any{
						"reqid": reqid,
					})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
