package employees

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"staffdesk/internal/auth"
	"staffdesk/internal/logs"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts read endpoints on read (staff + viewer) and mutations on staff.
func (h *Handler) RegisterRoutes(read, staff *mux.Router) {
	read.HandleFunc("/employees", h.List).Methods(http.MethodGet)
	read.HandleFunc("/employees/{id:[0-9]+}", h.Get).Methods(http.MethodGet)

	staff.HandleFunc("/employees", h.Create).Methods(http.MethodPost)
	staff.HandleFunc("/employees/{id:[0-9]+}", h.Update).Methods(http.MethodPut, http.MethodPatch)
	staff.HandleFunc("/employees/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
	staff.HandleFunc("/employees/{id:[0-9]+}/ssn", h.SSN).Methods(http.MethodGet)
	staff.HandleFunc("/employees/{id:[0-9]+}/credentials", h.Credentials).Methods(http.MethodGet)
}

// ID parses the {id} route variable; the route pattern guarantees digits.
func ID(r *http.Request, name string) uint {
	v, _ := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	return uint(v)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repo.EmployeeFilter{
		Status:           models.EmployeeStatus(q.Get("status")),
		OnboardingStatus: models.OnboardingStatus(q.Get("onboardingStatus")),
		Search:           q.Get("search"),
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	list, total, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []models.Employee{}
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	models.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Detail(r.Context(), ID(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var p Patch
	if err := models.DecodeJSON(r, &p); err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	e, err := h.svc.Create(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var p Patch
	if err := models.DecodeJSON(r, &p); err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	e, err := h.svc.Update(r.Context(), ID(r, "id"), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Terminate(r.Context(), ID(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, e)
}

// SSN returns the masked value; ?reveal=1 returns plaintext to admins only.
func (h *Handler) SSN(w http.ResponseWriter, r *http.Request) {
	reveal := r.URL.Query().Get("reveal") == "1"
	if reveal {
		if u, ok := auth.UserFromContext(r.Context()); !ok || u.Role != models.RoleAdmin {
			models.WriteProblem(w, http.StatusForbidden, "Forbidden", "only admins may reveal an SSN", nil)
			return
		}
	}
	ssn, err := h.svc.SSN(r.Context(), ID(r, "id"), reveal)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if reveal {
		u, _ := auth.UserFromContext(r.Context())
		logs.FromRequest(r).WithField("user_id", u.ID).WithField("employee_id", ID(r, "id")).Info("ssn revealed")
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{"ssn": ssn})
}

func (h *Handler) Credentials(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.UserFromContext(r.Context()); !ok || u.Role != models.RoleAdmin {
		models.WriteProblem(w, http.StatusForbidden, "Forbidden", "admin only", nil)
		return
	}
	c, err := h.svc.Credentials(r.Context(), ID(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var fe *models.FieldError
	switch {
	case errors.As(err, &fe):
		models.WriteBadRequest(w, err)
	case errors.Is(err, ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "employee not found", nil)
	default:
		logs.FromRequest(r).Errorf("employees: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "employee request failed", nil)
	}
}
