package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"noticeboard-go/internal/metrics"
	"noticeboard-go/internal/models"
	"noticeboard-go/internal/push"
)

// dispatchTimeout bounds a whole fan-out batch, not just each attempt.
const dispatchTimeout = 30 * time.Second

type createNotificationRequest struct {
	Title         string `json:"title"`
	Body          string `json:"body"`
	URL           string `json:"url"`
	Icon          string `json:"icon"`
	TargetUserIDs []int  `json:"target_user_ids"`
}

// CreateNotificationHandler persists a notification and dispatches it
// to the matching subscriptions before responding.
func (h *Handler) CreateNotificationHandler(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	n, summary, err := h.createAndDispatch(r.Context(), req)
	if err != nil {
		if errors.Is(err, errInvalidNotification) {
			http.Error(w, "Title and body are required", http.StatusBadRequest)
			return
		}
		log.Printf("Failed to create notification: %v", err)
		http.Error(w, "Failed to create notification", http.StatusInternalServerError)
		return
	}

	if actorID, _ := h.Sessions.CurrentUser(r); actorID != 0 {
		meta, _ := json.Marshal(map[string]any{"title": req.Title, "target_user_ids": req.TargetUserIDs})
		_ = h.Users.InsertAudit(r.Context(), actorID, "create_notification", "notification", n.ID, string(meta))
	}

	h.writeDispatchResult(w, n, summary)
}

var errInvalidNotification = errors.New("invalid notification")

// createAndDispatch is the shared path behind the admin console and the
// machine webhook. Storage failure is fatal; delivery failures are not.
func (h *Handler) createAndDispatch(ctx context.Context, req createNotificationRequest) (models.Notification, push.Summary, error) {
	if req.Title == "" || req.Body == "" {
		return models.Notification{}, push.Summary{}, errInvalidNotification
	}

	n, err := h.Notifs.CreateNotification(ctx, req.Title, req.Body, req.URL, req.Icon, req.TargetUserIDs)
	if err != nil {
		return models.Notification{}, push.Summary{}, err
	}
	metrics.NotificationsCreatedTotal.Inc()

	if err := h.Live.PublishNotification(ctx, n); err != nil {
		log.Printf("Failed to publish notification event: %v", err)
	}

	dctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	summary, err := h.Dispatcher.Send(dctx, n)
	if errors.Is(err, push.ErrNotConfigured) {
		log.Println("Web push not configured, skipping dispatch")
		return n, push.Summary{}, nil
	}
	if err != nil {
		// Enumeration failed; the notification itself is persisted.
		log.Printf("Dispatch failed for notification %s: %v", n.ID, err)
		return n, push.Summary{}, nil
	}

	return n, summary, nil
}

func (h *Handler) writeDispatchResult(w http.ResponseWriter, n models.Notification, summary push.Summary) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"notification": n,
		"push": map[string]any{
			"configured": h.PushCfg.Configured(),
			"attempted":  summary.Attempted,
			"delivered":  summary.Delivered,
			"pruned":     summary.Pruned,
			"transient":  summary.Transient,
		},
	})
}

// === User management (session provider needs real accounts) ===

func (h *Handler) GetUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.GetUsers(r.Context())
	if err != nil {
		http.Error(w, "Failed to get users", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"users": users})
}

func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Role != "admin" && req.Role != "user" {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}

	user, err := h.Users.CreateUser(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if actorID, _ := h.Sessions.CurrentUser(r); actorID != 0 {
		meta, _ := json.Marshal(map[string]any{"username": req.Username, "role": req.Role})
		_ = h.Users.InsertAudit(r.Context(), actorID, "create_user", "user", "", string(meta))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}
