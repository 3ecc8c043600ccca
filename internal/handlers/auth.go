package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/sessions"

	"noticeboard-go/internal/models"
)

const sessionName = "noticeboard-session"

// Sessions wraps the cookie store. Built once in main from
// SESSION_SECRET and handed to the handler; no package-level state.
type Sessions struct {
	store *sessions.CookieStore
}

func NewSessions(secret string) *Sessions {
	if secret == "" {
		log.Println("SESSION_SECRET not set, using insecure default")
		secret = "dev-secret-change-in-production"
	}
	return &Sessions{store: sessions.NewCookieStore([]byte(secret))}
}

// CurrentUser returns the signed-in user's id and role, or 0 if none.
func (s *Sessions) CurrentUser(r *http.Request) (int, string) {
	session, _ := s.store.Get(r, sessionName)
	userID, _ := session.Values["user_id"].(int)
	role, _ := session.Values["role"].(string)
	return userID, role
}

func (s *Sessions) SignIn(w http.ResponseWriter, r *http.Request, user models.User) error {
	session, _ := s.store.Get(r, sessionName)
	session.Values["user_id"] = user.ID
	session.Values["username"] = user.Username
	session.Values["role"] = user.Role
	return session.Save(r, w)
}

func (s *Sessions) SignOut(w http.ResponseWriter, r *http.Request) {
	session, _ := s.store.Get(r, sessionName)
	session.Values["user_id"] = nil
	session.Options.MaxAge = -1
	session.Save(r, w)
}

// LoginHandler signs a user in with password plus TOTP code when enabled
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Code     string `json:"code"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.Users.GetUserByUsername(r.Context(), req.Username)
	if err != nil || !user.CheckPassword(req.Password) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if user.TOTPEnabled {
		if req.Code == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"requires_2fa": true})
			return
		}
		if !models.VerifyTOTPCode(user.TOTPSecret, req.Code) {
			http.Error(w, "Invalid verification code", http.StatusUnauthorized)
			return
		}
	}

	if err := h.Sessions.SignIn(w, r, user); err != nil {
		log.Printf("Failed to save session: %v", err)
		http.Error(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"user":    user,
	})
}

// LogoutHandler clears the session
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.Sessions.SignOut(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RequireAuth rejects requests without a signed-in user
func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := h.Sessions.CurrentUser(r)
		if userID == 0 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// RequireAdmin rejects requests unless the signed-in user is an admin
func (h *Handler) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, role := h.Sessions.CurrentUser(r)
		if role != "admin" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// Setup2FAHandler generates a TOTP secret for the current user. The
// secret is only persisted once Enable2FAHandler verifies a code.
func (h *Handler) Setup2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := h.Sessions.CurrentUser(r)
	user, err := h.Users.GetUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	key, err := models.GenerateTOTPSecret(user.Username, "Notice Board")
	if err != nil {
		http.Error(w, "Failed to generate secret", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"secret":  key.Secret(),
		"url":     key.URL(),
		"account": user.Username,
	})
}

// Enable2FAHandler verifies a code against the pending secret and turns 2FA on
func (h *Handler) Enable2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Secret string `json:"secret"`
		Code   string `json:"code"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if !models.VerifyTOTPCode(req.Secret, req.Code) {
		http.Error(w, "Invalid verification code", http.StatusUnauthorized)
		return
	}

	userID, _ := h.Sessions.CurrentUser(r)
	if err := h.Users.UpdateUser2FA(r.Context(), userID, req.Secret, true); err != nil {
		log.Printf("Failed to enable 2FA for user %d: %v", userID, err)
		http.Error(w, "Failed to enable 2FA", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// InitAdmin creates a default admin account on an empty user table
func (h *Handler) InitAdmin(ctx context.Context) {
	users, err := h.Users.GetUsers(ctx)
	if err != nil || len(users) == 0 {
		user, err := h.Users.CreateUser(ctx, "admin", "admin123", "admin")
		if err != nil {
			log.Println("Failed to create default admin:", err)
		} else {
			log.Printf("Created default admin user: %s / admin123", user.Username)
		}
	}
}
