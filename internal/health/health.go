// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"staffdesk/internal/models"
)

// Check is one readiness dependency.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Database pings the SQL handle behind d.
func Database(d *gorm.DB) Check {
	return Check{Name: "database", Run: func(ctx context.Context) error {
		if d == nil {
			return errNotConfigured
		}
		sqlDB, err := d.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}
}

// Storage reports whether the document store accepts writes.
func Storage(ping func() error) Check {
	return Check{Name: "documents", Run: func(context.Context) error { return ping() }}
}

var errNotConfigured = errors.New("not configured")

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// RegisterRoutes mounts /healthz and a /readyz that runs every check with a shared timeout.
func RegisterRoutes(r *mux.Router, checks ...Check) {
	r.HandleFunc("/healthz", liveness).Methods(http.MethodGet)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		rep := report{Status: "ok", Checks: make(map[string]string, len(checks))}
		code := http.StatusOK
		for _, c := range checks {
			if err := c.Run(ctx); err != nil {
				rep.Checks[c.Name] = err.Error()
				rep.Status, code = "unavailable", http.StatusServiceUnavailable
				continue
			}
			rep.Checks[c.Name] = "ok"
		}
		models.WriteJSON(w, code, rep)
	}).Methods(http.MethodGet)
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
