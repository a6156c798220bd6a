package incidents

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"staffdesk/internal/auth"
	"staffdesk/internal/logs"
	"staffdesk/internal/models"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes: incident logs are HR records, readable by staff and viewers only.
func (h *Handler) RegisterRoutes(read, staff *mux.Router) {
	read.HandleFunc("/employees/{id:[0-9]+}/incident-logs", h.List).Methods(http.MethodGet)
	staff.HandleFunc("/employees/{id:[0-9]+}/incident-logs", h.Create).Methods(http.MethodPost)
	staff.HandleFunc("/incident-logs/{id:[0-9]+}", h.Update).Methods(http.MethodPut, http.MethodPatch)
	staff.HandleFunc("/incident-logs/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
}

func routeID(r *http.Request) uint {
	v, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return uint(v)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), routeID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []models.IncidentLog{}
	}
	models.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	var by uint
	if u, ok := auth.UserFromContext(r.Context()); ok {
		by = u.ID
	}
	l, err := h.svc.Create(r.Context(), routeID(r), in, by)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	l, err := h.svc.Update(r.Context(), routeID(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), routeID(r)); err != nil {
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
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "incident log not found", nil)
	default:
		logs.FromRequest(r).Errorf("incidents: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "incident request failed", nil)
	}
}
