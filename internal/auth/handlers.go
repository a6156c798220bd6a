package auth

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"staffdesk/internal/logs"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

type Handler struct {
	svc      *Service
	sessions *Sessions
}

func NewHandler(svc *Service, sessions *Sessions) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

// RegisterRoutes mounts the public endpoints on api and the session-bound ones on authed.
func (h *Handler) RegisterRoutes(api, authed *mux.Router) {
	api.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)

	authed.HandleFunc("/user", h.Me).Methods(http.MethodGet).Name(routeMe)
	authed.HandleFunc("/user/change-password", h.ChangePassword).Methods(http.MethodPost).Name(routeChangePassword)
}

type userResponse struct {
	*models.User
	Employee *models.Employee `json:"employee,omitempty"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	user, emp, err := h.svc.Register(r.Context(), in)
	if err != nil {
		var fe *models.FieldError
		switch {
		case errors.As(err, &fe), errors.Is(err, ErrInvalidInvitation), errors.Is(err, ErrAlreadyLinked):
			models.WriteBadRequest(w, err)
		default:
			logs.Logger.Errorf("register: %v", err)
			models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "registration failed", nil)
		}
		return
	}
	if _, err := h.sessions.Issue(r.Context(), w, r, user); err != nil {
		logs.Logger.Errorf("register: session: %v", err)
	}
	models.WriteJSON(w, http.StatusCreated, userResponse{User: user, Employee: emp})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	user, err := h.svc.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid username or password", nil)
			return
		}
		logs.Logger.Errorf("login: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "login failed", nil)
		return
	}
	if _, err := h.sessions.Issue(r.Context(), w, r, user); err != nil {
		logs.Logger.Errorf("login: session: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "login failed", nil)
		return
	}
	emp, _ := h.svc.EmployeeFor(r.Context(), user.ID)
	models.WriteJSON(w, http.StatusOK, userResponse{User: user, Employee: emp})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	emp, err := h.svc.EmployeeFor(r.Context(), u.ID)
	if err != nil {
		logs.Logger.Errorf("me: %v", err)
	}
	models.WriteJSON(w, http.StatusOK, userResponse{User: u, Employee: emp})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	var in changePasswordRequest
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteBadRequest(w, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), u.ID, in.CurrentPassword, in.NewPassword); err != nil {
		var fe *models.FieldError
		switch {
		case errors.As(err, &fe):
			models.WriteBadRequest(w, err)
		case errors.Is(err, repo.ErrNotFound):
			models.WriteProblem(w, http.StatusNotFound, "Not Found", "user not found", nil)
		default:
			logs.Logger.Errorf("change password: %v", err)
			models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "password change failed", nil)
		}
		return
	}
	// other devices must log in again with the new password
	_ = h.sessions.store.DeleteForUser(r.Context(), u.ID, sessionIDFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
