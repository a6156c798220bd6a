package documents

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"staffdesk/internal/auth"
	"staffdesk/internal/logs"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

type Handler struct {
	svc   *Service
	guard *auth.Guard
}

func NewHandler(svc *Service, guard *auth.Guard) *Handler { return &Handler{svc: svc, guard: guard} }

func (h *Handler) RegisterRoutes(authed *mux.Router) {
	authed.HandleFunc("/documents", h.List).Methods(http.MethodGet)
	authed.HandleFunc("/documents", h.Upload).Methods(http.MethodPost)
	authed.HandleFunc("/documents/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
	authed.HandleFunc("/documents/{id:[0-9]+}/download", h.Download).Methods(http.MethodGet)
	authed.HandleFunc("/documents/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
	authed.HandleFunc("/employees/{employeeId:[0-9]+}/documents", h.List).Methods(http.MethodGet)
}

func parseID(s string) uint {
	v, _ := strconv.ParseUint(s, 10, 64)
	return uint(v)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f := repo.DocumentFilter{DocumentType: r.URL.Query().Get("documentType")}
	if v := mux.Vars(r)["employeeId"]; v != "" {
		f.EmployeeID = parseID(v)
	} else if v := r.URL.Query().Get("employeeId"); v != "" {
		f.EmployeeID = parseID(v)
		if f.EmployeeID == 0 {
			models.WriteBadRequest(w, models.NewFieldError("employeeId", "invalid employee id"))
			return
		}
	}
	if f.EmployeeID != 0 {
		if auth.Deny(w, h.guard.Check(r.Context(), f.EmployeeID, false)) {
			return
		}
	} else if u, _ := auth.UserFromContext(r.Context()); u == nil || !(u.Role.Staff() || u.Role == models.RoleViewer) {
		models.WriteProblem(w, http.StatusForbidden, "Forbidden", "employeeId is required", nil)
		return
	}
	list, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []models.Document{}
	}
	models.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.svc.maxBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			models.WriteProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "file exceeds the upload limit", nil)
			return
		}
		models.WriteBadRequest(w, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	empID := parseID(r.FormValue("employeeId"))
	if empID == 0 {
		models.WriteBadRequest(w, models.NewFieldError("employeeId", "employee id is required"))
		return
	}
	if auth.Deny(w, h.guard.Check(r.Context(), empID, true)) {
		return
	}
	exp, err := models.ParseDate(r.FormValue("expirationDate"))
	if err != nil {
		models.WriteBadRequest(w, models.NewFieldError("expirationDate", "%v", err))
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		models.WriteBadRequest(w, models.NewFieldError("file", "a file is required"))
		return
	}
	defer file.Close()

	in := UploadInput{
		EmployeeID:     empID,
		DocumentType:   r.FormValue("documentType"),
		ExpirationDate: exp,
		Notes:          r.FormValue("notes"),
		FileName:       hdr.Filename,
		Body:           file,
	}
	if u, ok := auth.UserFromContext(r.Context()); ok {
		in.UploadedBy = u.ID
	}
	d, err := h.svc.Upload(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	d, err := h.svc.Get(r.Context(), parseID(mux.Vars(r)["id"]))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if auth.Deny(w, h.guard.Check(r.Context(), d.EmployeeID, false)) {
		return nil, false
	}
	return d, true
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if d, ok := h.load(w, r); ok {
		models.WriteJSON(w, http.StatusOK, d)
	}
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.load(w, r); !ok {
		return
	}
	d, f, err := h.svc.Open(r.Context(), parseID(mux.Vars(r)["id"]))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, f); err != nil {
		logs.FromRequest(r).Warnf("document download interrupted: %v", err)
	}
}

// Delete is limited to staff; employees cannot remove their own uploads once filed.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.UserFromContext(r.Context()); !ok || !u.Role.Staff() {
		models.WriteProblem(w, http.StatusForbidden, "Forbidden", "only staff may delete documents", nil)
		return
	}
	if err := h.svc.Delete(r.Context(), parseID(mux.Vars(r)["id"])); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var fe *models.FieldError
	switch {
	case errors.As(err, &fe):
		models.WriteBadRequest(w, err)
	case errors.Is(err, ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "document not found", nil)
	case errors.Is(err, ErrTooLarge):
		models.WriteProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "file exceeds the upload limit", nil)
	default:
		logs.FromRequest(r).Errorf("documents: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "document request failed", nil)
	}
}
