package licenses

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

// RegisterRoutes mounts every credential kind on authed. Access per employee is
// decided by guard, so employees can maintain their own credentials during onboarding.
func RegisterRoutes(authed *mux.Router, svc *Service, guard *auth.Guard) {
	mount(authed, svc.State, guard)
	mount(authed, svc.DEA, guard)
	mount(authed, svc.Board, guard)
}

type handler[T repo.License, P interface {
	*T
	models.Licensed
}] struct {
	k     *Kind[T, P]
	guard *auth.Guard
}

func mount[T repo.License, P interface {
	*T
	models.Licensed
}](r *mux.Router, k *Kind[T, P], guard *auth.Guard) {
	h := &handler[T, P]{k: k, guard: guard}
	r.HandleFunc("/employees/{id:[0-9]+}/"+k.Path, h.list).Methods(http.MethodGet)
	r.HandleFunc("/employees/{id:[0-9]+}/"+k.Path, h.create).Methods(http.MethodPost)
	r.HandleFunc("/"+k.Path+"/{id:[0-9]+}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/"+k.Path+"/{id:[0-9]+}", h.update).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/"+k.Path+"/{id:[0-9]+}", h.remove).Methods(http.MethodDelete)
}

func routeID(r *http.Request) uint {
	v, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return uint(v)
}

func (h *handler[T, P]) list(w http.ResponseWriter, r *http.Request) {
	empID := routeID(r)
	if auth.Deny(w, h.guard.Check(r.Context(), empID, false)) {
		return
	}
	list, err := h.k.List(r.Context(), empID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []T{}
	}
	models.WriteJSON(w, http.StatusOK, list)
}

func (h *handler[T, P]) create(w http.ResponseWriter, r *http.Request) {
	empID := routeID(r)
	if auth.Deny(w, h.guard.Check(r.Context(), empID, true)) {
		return
	}
	var in Input
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	v, err := h.k.Create(r.Context(), empID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, v)
}

// load fetches the row and checks access to its owner.
func (h *handler[T, P]) load(w http.ResponseWriter, r *http.Request, write bool) (P, bool) {
	v, err := h.k.Get(r.Context(), routeID(r))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if auth.Deny(w, h.guard.Check(r.Context(), v.Owner(), write)) {
		return nil, false
	}
	return v, true
}

func (h *handler[T, P]) get(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.load(w, r, false); ok {
		models.WriteJSON(w, http.StatusOK, v)
	}
}

func (h *handler[T, P]) update(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.load(w, r, true); !ok {
		return
	}
	var in Input
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	v, err := h.k.Update(r.Context(), routeID(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, v)
}

func (h *handler[T, P]) remove(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.load(w, r, true); !ok {
		return
	}
	if err := h.k.Delete(r.Context(), routeID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler[T, P]) fail(w http.ResponseWriter, r *http.Request, err error) {
	var fe *models.FieldError
	switch {
	case errors.As(err, &fe):
		models.WriteBadRequest(w, err)
	case errors.Is(err, ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", h.k.Label+" not found", nil)
	default:
		logs.FromRequest(r).Errorf("licenses: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", h.k.Label+" request failed", nil)
	}
}
