package handlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"faceid/internal/database"
	"faceid/internal/web/middleware"
)

// AuthHandler handles registration, login and account administration.
type AuthHandler struct {
	users    database.UserStore
	sessions *middleware.SessionManager
	log      *zap.SugaredLogger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users database.UserStore, sessions *middleware.SessionManager, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		log:      log,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a login or registration response.
type LoginResponse struct {
	Success   bool   `json:"success"`
	Username  string `json:"username,omitempty"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
	IsActive  bool   `json:"is_active,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// hashPassword derives the stored password hash.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Register creates a new user account. The first account is activated
// as admin automatically; later accounts wait for admin approval.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 3 || len(req.Username) > 100 {
		respondError(w, http.StatusBadRequest, "username must be 3-100 characters")
		return
	}
	if len(req.Password) < 8 {
		respondError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	count, err := h.users.Count(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	first := count == 0

	user, err := h.users.Create(r.Context(), req.Username, hashPassword(req.Password), first, first)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.log.Infow("user registered",
		"username", sanitizeForLog(user.Username),
		"is_admin", user.IsAdmin,
		"is_active", user.IsActive)
	respondJSON(w, http.StatusCreated, LoginResponse{
		Success:  true,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		IsActive: user.IsActive,
	})
}

// Login authenticates a user and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	expected := hashPassword(req.Password)
	if user == nil || subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(expected)) != 1 {
		respondJSON(w, http.StatusUnauthorized, LoginResponse{
			Success: false,
			Error:   "invalid credentials",
		})
		return
	}
	if !user.IsActive {
		respondJSON(w, http.StatusForbidden, LoginResponse{
			Success: false,
			Error:   "account awaiting admin approval",
		})
		return
	}

	session, err := h.sessions.CreateSession(r.Context(), user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.sessions.SetSessionCookie(w, session)

	h.log.Infow("user logged in", "username", sanitizeForLog(user.Username))
	respondJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		IsActive:  true,
		ExpiresAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z"),
	})
}

// Logout closes the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessions.GetSessionFromRequest(r); session != nil {
		h.sessions.DeleteSession(r.Context(), session.ID)
	}
	h.sessions.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StatusResponse represents the auth status response.
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	IsAdmin       bool   `json:"is_admin,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// Status reports whether the request carries a valid session.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetSessionFromRequest(r)
	if session == nil {
		respondJSON(w, http.StatusOK, StatusResponse{Authenticated: false})
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{
		Authenticated: true,
		Username:      session.Username,
		IsAdmin:       session.IsAdmin,
		ExpiresAt:     session.ExpiresAt.Format("2006-01-02T15:04:05Z"),
	})
}

// userView is the admin-facing account representation; the password
// hash never leaves the server.
type userView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	IsActive bool   `json:"is_active"`
}

// ListUsers returns all accounts. Admin only.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, userView{
			ID:       u.ID,
			Username: u.Username,
			IsAdmin:  u.IsAdmin,
			IsActive: u.IsActive,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": views})
}

// ApproveUser activates a pending account. Admin only.
func (h *AuthHandler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if err := h.users.Approve(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	h.log.Infow("user approved", "user_id", id)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DeleteUser removes an account. Admin only; self-deletion is refused.
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if session := middleware.GetSessionFromContext(r.Context()); session != nil && session.UserID == id {
		respondError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	h.log.Infow("user deleted", "user_id", id)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
