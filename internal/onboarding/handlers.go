package onboarding

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"staffdesk/internal/auth"
	"staffdesk/internal/employees"
	"staffdesk/internal/logs"
	"staffdesk/internal/models"
)

type Handler struct {
	wizard *Wizard
	guard  *auth.Guard
}

func NewHandler(wizard *Wizard, guard *auth.Guard) *Handler {
	return &Handler{wizard: wizard, guard: guard}
}

func (h *Handler) RegisterRoutes(authed *mux.Router) {
	const base = "/onboarding/{employeeId:[0-9]+}"
	authed.HandleFunc(base, h.Get).Methods(http.MethodGet)
	authed.HandleFunc(base+"/steps/{step:[a-z_]+}", h.SaveStep).Methods(http.MethodPut)
	authed.HandleFunc(base+"/next", h.Next).Methods(http.MethodPost)
	authed.HandleFunc(base+"/goto/{step:[a-z_]+}", h.GoTo).Methods(http.MethodPost)
}

func (h *Handler) allowed(w http.ResponseWriter, r *http.Request, write bool) (uint, bool) {
	id := employees.ID(r, "employeeId")
	return id, !auth.Deny(w, h.guard.Check(r.Context(), id, write))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.allowed(w, r, false)
	if !ok {
		return
	}
	v, err := h.wizard.Get(r.Context(), id)
	h.reply(w, r, v, err)
}

func (h *Handler) SaveStep(w http.ResponseWriter, r *http.Request) {
	id, ok := h.allowed(w, r, true)
	if !ok {
		return
	}
	var data map[string]any
	if err := models.DecodeJSON(r, &data); err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	v, err := h.wizard.SaveStep(r.Context(), id, mux.Vars(r)["step"], data)
	h.reply(w, r, v, err)
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	id, ok := h.allowed(w, r, true)
	if !ok {
		return
	}
	v, err := h.wizard.Next(r.Context(), id)
	h.reply(w, r, v, err)
}

func (h *Handler) GoTo(w http.ResponseWriter, r *http.Request) {
	id, ok := h.allowed(w, r, true)
	if !ok {
		return
	}
	v, err := h.wizard.GoTo(r.Context(), id, mux.Vars(r)["step"])
	h.reply(w, r, v, err)
}

func (h *Handler) reply(w http.ResponseWriter, r *http.Request, v *View, err error) {
	if err == nil {
		models.WriteJSON(w, http.StatusOK, v)
		return
	}
	var se *StepError
	var fe *models.FieldError
	switch {
	case errors.As(err, &se):
		detail := "step is incomplete"
		if len(se.Fields) > 0 {
			detail = se.Fields[0].Message
		}
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", detail, se)
	case errors.As(err, &fe):
		models.WriteBadRequest(w, err)
	case errors.Is(err, ErrUnknownStep), errors.Is(err, employees.ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", err.Error(), nil)
	case errors.Is(err, ErrStepLocked), errors.Is(err, ErrFinished):
		models.WriteProblem(w, http.StatusConflict, "Conflict", err.Error(), nil)
	default:
		logs.FromRequest(r).Errorf("onboarding: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "onboarding request failed", nil)
	}
}
