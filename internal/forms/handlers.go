package forms

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"staffdesk/internal/auth"
	"staffdesk/internal/docuseal"
	"staffdesk/internal/logs"
	"staffdesk/internal/models"
)

const webhookSecretHeader = "X-Webhook-Secret"

// Watcher starts a bounded status watcher for one submission.
type Watcher interface {
	Watch(id uint) bool
}

type Handler struct {
	svc           *Service
	guard         *auth.Guard
	watcher       Watcher
	webhookSecret string
}

func NewHandler(svc *Service, guard *auth.Guard, watcher Watcher, webhookSecret string) *Handler {
	return &Handler{svc: svc, guard: guard, watcher: watcher, webhookSecret: webhookSecret}
}

func (h *Handler) RegisterRoutes(public, authed, staff *mux.Router) {
	public.HandleFunc("/forms/webhook", h.Webhook).Methods(http.MethodPost)

	authed.HandleFunc("/employees/{id:[0-9]+}/forms", h.List).Methods(http.MethodGet)
	authed.HandleFunc("/forms/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
	authed.HandleFunc("/forms/{id:[0-9]+}/signing-url", h.SigningURL).Methods(http.MethodPost)
	authed.HandleFunc("/forms/{id:[0-9]+}/refresh", h.Refresh).Methods(http.MethodPost)

	staff.HandleFunc("/forms/templates", h.Templates).Methods(http.MethodGet)
	staff.HandleFunc("/forms/send", h.Send).Methods(http.MethodPost)
	staff.HandleFunc("/forms/{id:[0-9]+}/remind", h.Remind).Methods(http.MethodPost)
	staff.HandleFunc("/forms/{id:[0-9]+}/hr-sign", h.HRSign).Methods(http.MethodPost)
}

// view adds the HR action gate to a submission.
type view struct {
	*models.FormSubmission
	CanCompleteHRSignature bool `json:"canCompleteHrSignature"`
}

func present(f *models.FormSubmission) view {
	return view{FormSubmission: f, CanCompleteHRSignature: CanCompleteHRSignature(f)}
}

func routeID(r *http.Request) uint {
	v, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return uint(v)
}

func (h *Handler) Templates(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Templates(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []docuseal.Template{}
	}
	models.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	empID := routeID(r)
	if auth.Deny(w, h.guard.Check(r.Context(), empID, false)) {
		return
	}
	list, err := h.svc.List(r.Context(), empID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]view, 0, len(list))
	for i := range list {
		out = append(out, present(&list[i]))
	}
	models.WriteJSON(w, http.StatusOK, out)
}

// load fetches the submission and checks access to its employee.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, write bool) (*models.FormSubmission, bool) {
	f, err := h.svc.Get(r.Context(), routeID(r))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if auth.Deny(w, h.guard.Check(r.Context(), f.EmployeeID, write)) {
		return nil, false
	}
	return f, true
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if f, ok := h.load(w, r, false); ok {
		models.WriteJSON(w, http.StatusOK, present(f))
	}
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var in SendInput
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	if u, ok := auth.UserFromContext(r.Context()); ok {
		in.HREmail = u.Email
	}
	f, err := h.svc.Send(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, present(f))
}

type signingURLRequest struct {
	Role string `json:"role"`
}

type signingURLResponse struct {
	URL        string `json:"url"`
	Submission view   `json:"submission"`
}

func (h *Handler) SigningURL(w http.ResponseWriter, r *http.Request) {
	var in signingURLRequest
	if r.ContentLength != 0 {
		if err := models.DecodeJSON(r, &in); err != nil {
			models.WriteBadRequest(w, err)
			return
		}
	}
	switch in.Role {
	case "":
		in.Role = models.SignerEmployee
	case models.SignerEmployee, models.SignerHR:
	default:
		models.WriteBadRequest(w, models.NewFieldError("role", "role must be employee or hr"))
		return
	}
	if in.Role == models.SignerHR {
		if u, ok := auth.UserFromContext(r.Context()); !ok || !u.Role.Staff() {
			models.WriteProblem(w, http.StatusForbidden, "Forbidden", "only staff may countersign", nil)
			return
		}
	}
	if _, ok := h.load(w, r, true); !ok {
		return
	}
	h.sign(w, r, in.Role)
}

func (h *Handler) HRSign(w http.ResponseWriter, r *http.Request) {
	h.sign(w, r, models.SignerHR)
}

func (h *Handler) sign(w http.ResponseWriter, r *http.Request, role string) {
	link, f, err := h.svc.SigningURL(r.Context(), routeID(r), role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.watcher != nil {
		h.watcher.Watch(f.ID)
	}
	models.WriteJSON(w, http.StatusOK, signingURLResponse{URL: link, Submission: present(f)})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.load(w, r, false); !ok {
		return
	}
	f, err := h.svc.Refresh(r.Context(), routeID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, present(f))
}

func (h *Handler) Remind(w http.ResponseWriter, r *http.Request) {
	var in signingURLRequest
	if r.ContentLength != 0 {
		if err := models.DecodeJSON(r, &in); err != nil {
			models.WriteBadRequest(w, err)
			return
		}
	}
	if err := h.svc.Remind(r.Context(), routeID(r), in.Role); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret != "" &&
		subtle.ConstantTimeCompare([]byte(r.Header.Get(webhookSecretHeader)), []byte(h.webhookSecret)) != 1 {
		models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid webhook secret", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	ev, err := docuseal.ParseWebhook(body)
	if err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	log := logs.FromRequest(r).WithField("event", ev.EventType)
	f, err := h.svc.ApplyWebhook(r.Context(), ev)
	switch {
	case errors.Is(err, ErrNotFound):
		log.Infof("webhook for unknown submission %d ignored", ev.SubmissionID())
		w.WriteHeader(http.StatusAccepted)
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}
	log.WithField("submission", f.ID).Infof("webhook applied, status %s", f.Status)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var fe *models.FieldError
	if errors.As(err, &fe) {
		models.WriteBadRequest(w, err)
		return
	}
	if de, ok := docuseal.AsError(err); ok {
		status := http.StatusBadGateway
		switch de.Code {
		case docuseal.CodeTemplateNotFound:
			status = http.StatusNotFound
		case docuseal.CodeInvalidRequest:
			status = http.StatusBadRequest
		case docuseal.CodeServiceUnavailable:
			status = http.StatusServiceUnavailable
		}
		logs.FromRequest(r).Warnf("docuseal: %v", de)
		models.WriteProblem(w, status, http.StatusText(status), de.Message, map[string]string{
			"code": string(de.Code),
			"hint": de.Hint(),
		})
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "form submission not found", nil)
	case errors.Is(err, ErrClosed), errors.Is(err, ErrHRSignNotAllowed),
		errors.Is(err, ErrAlreadySigned), errors.Is(err, ErrNotLinked):
		models.WriteProblem(w, http.StatusConflict, "Conflict", err.Error(), nil)
	case errors.Is(err, ErrNoSigner):
		models.WriteBadRequest(w, models.NewFieldError("role", "%v", err))
	default:
		logs.FromRequest(r).Errorf("forms: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "form request failed", nil)
	}
}
