package invitations

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"staffdesk/internal/auth"
	"staffdesk/internal/logs"
	"staffdesk/internal/models"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts token validation on the public router and management on staff.
func (h *Handler) RegisterRoutes(public, staff *mux.Router) {
	public.HandleFunc("/invitations/{token:[a-fA-F0-9]{64}}", h.Validate).Methods(http.MethodGet)

	staff.HandleFunc("/invitations", h.List).Methods(http.MethodGet)
	staff.HandleFunc("/invitations", h.Create).Methods(http.MethodPost)
	staff.HandleFunc("/invitations/{id:[0-9]+}/revoke", h.Revoke).Methods(http.MethodPost)
	staff.HandleFunc("/invitations/{id:[0-9]+}/resend", h.Resend).Methods(http.MethodPost)
}

type invitationResponse struct {
	*models.Invitation
	Link string `json:"link"`
}

type publicInvitation struct {
	Email        string      `json:"email"`
	FirstName    string      `json:"firstName"`
	LastName     string      `json:"lastName"`
	IntendedRole models.Role `json:"intendedRole"`
	ExpiresAt    time.Time   `json:"expiresAt"`
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Validate(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, publicInvitation{
		Email: inv.Email, FirstName: inv.FirstName, LastName: inv.LastName,
		IntendedRole: inv.IntendedRole, ExpiresAt: inv.ExpiresAt,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), models.InvitationStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]invitationResponse, 0, len(list))
	for i := range list {
		out = append(out, invitationResponse{Invitation: &list[i], Link: h.svc.Link(&list[i])})
	}
	models.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	var by uint
	if u, ok := auth.UserFromContext(r.Context()); ok {
		by = u.ID
	}
	inv, err := h.svc.Create(r.Context(), in, by)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, invitationResponse{Invitation: inv, Link: h.svc.Link(inv)})
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	inv, err := h.svc.Revoke(r.Context(), uint(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, inv)
}

type resendRequest struct {
	ExpiresInDays int `json:"expiresInDays"`
}

func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	var in resendRequest
	if r.ContentLength > 0 {
		if err := models.DecodeJSON(r, &in); err != nil {
			models.WriteBadRequest(w, err)
			return
		}
	}
	inv, err := h.svc.Resend(r.Context(), uint(id), in.ExpiresInDays)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, invitationResponse{Invitation: inv, Link: h.svc.Link(inv)})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var fe *models.FieldError
	switch {
	case errors.As(err, &fe), errors.Is(err, ErrInvalid):
		models.WriteBadRequest(w, err)
	case errors.Is(err, ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "invitation not found", nil)
	case errors.Is(err, ErrNotPending), errors.Is(err, ErrRegistered):
		models.WriteProblem(w, http.StatusConflict, "Conflict", err.Error(), nil)
	default:
		logs.FromRequest(r).Errorf("invitations: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "invitation request failed", nil)
	}
}
