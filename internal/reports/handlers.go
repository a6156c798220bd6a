package reports

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"staffdesk/internal/logs"
	"staffdesk/internal/models"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the reports on read, which admits admin, hr and viewer.
func (h *Handler) RegisterRoutes(read *mux.Router) {
	read.HandleFunc("/reports/expiring", h.expiring).Methods(http.MethodGet)
	read.HandleFunc("/reports/summary", h.summary).Methods(http.MethodGet)
	read.HandleFunc("/export/{reportType}", h.export).Methods(http.MethodGet)
}

func windowDays(r *http.Request) (int, error) {
	v := r.URL.Query().Get("days")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 3650 {
		return 0, models.NewFieldError("days", "days must be a number between 1 and 3650")
	}
	return n, nil
}

func (h *Handler) expiring(w http.ResponseWriter, r *http.Request) {
	days, err := windowDays(r)
	if err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	rep, err := h.svc.Expiring(r.Context(), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, rep)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, sum)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	reportType := mux.Vars(r)["reportType"]
	if !ValidExport(reportType) {
		models.WriteBadRequest(w, models.NewFieldError("reportType", "unknown report type %q", reportType))
		return
	}
	days, err := windowDays(r)
	if err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	// buffered so a failing query still produces a JSON error instead of a truncated file
	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), &buf, reportType, days); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.svc.Filename(reportType)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logs.FromRequest(r).WithError(err).Error("report failed")
	models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "report could not be generated", nil)
}
