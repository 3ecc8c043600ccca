package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"noticeboard-go/internal/models"
)

const clickHintCookie = "click_hint"

// ListNotificationsHandler returns the current user's board view:
// recent notifications merged with their receipts, soft-deleted
// entries dropped.
func (h *Handler) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := h.Sessions.CurrentUser(r)
	if userID == 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// A pending click hint from a push-opened URL is converted into a
	// click receipt the first time the signed-in user loads the board.
	h.consumeClickHint(w, r, userID)

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}

	entries, err := h.Board.ListForUser(r.Context(), userID, limit)
	if err != nil {
		log.Printf("Failed to list notifications for user %d: %v", userID, err)
		http.Error(w, "Failed to list notifications", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"notifications": entries,
		"count":         len(entries),
	})
}

func (h *Handler) consumeClickHint(w http.ResponseWriter, r *http.Request, userID int) {
	c, err := r.Cookie(clickHintCookie)
	if err != nil || c.Value == "" {
		return
	}

	// Expire the cookie whether or not the hint is still present.
	http.SetCookie(w, &http.Cookie{Name: clickHintCookie, Path: "/", MaxAge: -1})

	notificationID, err := h.Live.TakeClickHint(r.Context(), c.Value)
	if err != nil {
		log.Printf("Failed to take click hint: %v", err)
		return
	}
	if notificationID == "" {
		return
	}

	if err := h.Board.MarkClicked(r.Context(), userID, notificationID); err != nil {
		log.Printf("Failed to mark notification %s clicked: %v", notificationID, err)
	}
}

// MarkReadHandler marks a batch of notifications read for the current
// user. All ids are applied in one unit; a failure marks none of them.
func (h *Handler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := h.Sessions.CurrentUser(r)
	if userID == 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		IDs []string `json:"ids"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := h.Board.MarkManyRead(r.Context(), userID, req.IDs); err != nil {
		log.Printf("Failed to mark notifications read for user %d: %v", userID, err)
		http.Error(w, "Failed to mark notifications read", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// NotificationActionHandler routes /api/notifications/{id}/click and
// /api/notifications/{id}/delete
func (h *Handler) NotificationActionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := h.Sessions.CurrentUser(r)
	if userID == 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	notificationID, action := parts[0], parts[1]

	var err error
	switch action {
	case "click":
		err = h.Board.MarkClicked(r.Context(), userID, notificationID)
	case "delete":
		err = h.Board.MarkDeleted(r.Context(), userID, notificationID)
	default:
		http.Error(w, "Unknown action", http.StatusNotFound)
		return
	}

	if err != nil {
		log.Printf("Failed to %s notification %s for user %d: %v", action, notificationID, userID, err)
		http.Error(w, "Failed to update notification", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// OpenHandler is the deep-link target used in push payload URLs:
// /open?nid=<notification id>&to=<path>. A signed-in user gets the
// click recorded immediately; otherwise a one-shot hint is parked in
// Redis behind a cookie and consumed after login.
func (h *Handler) OpenHandler(w http.ResponseWriter, r *http.Request) {
	notificationID := r.URL.Query().Get("nid")
	dest := r.URL.Query().Get("to")
	if dest == "" || !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") {
		dest = "/"
	}

	if notificationID == "" {
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}

	userID, _ := h.Sessions.CurrentUser(r)
	if userID != 0 {
		if err := h.Board.MarkClicked(r.Context(), userID, notificationID); err != nil {
			log.Printf("Failed to mark notification %s clicked: %v", notificationID, err)
		}
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}

	token, err := models.GenerateToken()
	if err == nil {
		err = h.Live.SaveClickHint(r.Context(), token, notificationID)
	}
	if err != nil {
		log.Printf("Failed to save click hint: %v", err)
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     clickHintCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   900,
		HttpOnly: true,
	})
	http.Redirect(w, r, dest, http.StatusSeeOther)
}
