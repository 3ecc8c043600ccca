package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
)

// validateSharedSecret checks X-Noticeboard-Signature against
// HMAC-SHA256(body, secret). If WEBHOOK_SECRET is empty, validation is
// skipped (returns true).
func validateSharedSecret(r *http.Request) bool {
	secret := os.Getenv("WEBHOOK_SECRET")
	if secret == "" {
		return true
	}
	sig := r.Header.Get("X-Noticeboard-Signature")
	if sig == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body)) // restore for downstream handlers

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}

// WebhookHandler lets external systems (schedulers, cron jobs) post a
// notification without a session, authenticated by shared secret.
func (h *Handler) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !validateSharedSecret(r) {
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

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
		log.Printf("Failed to create notification from webhook: %v", err)
		http.Error(w, "Failed to create notification", http.StatusInternalServerError)
		return
	}

	h.writeDispatchResult(w, n, summary)
}
