package handlers

import (
	"encoding/json"
	"html/template"
	"log"
	"net/http"

	"noticeboard-go/internal/notify"
	"noticeboard-go/internal/push"
	"noticeboard-go/internal/store"
)

type Handler struct {
	Users      store.UserStore
	Subs       store.SubscriptionStore
	Notifs     store.NotificationStore
	Board      *notify.Service
	Live       *store.RedisStore
	Dispatcher *push.Dispatcher
	PushCfg    push.Config
	Sessions   *Sessions
	Tmpl       *template.Template
	AdminTmpl  map[string]*template.Template
}

func NewHandler(
	pg *store.PostgresStore,
	live *store.RedisStore,
	dispatcher *push.Dispatcher,
	pushCfg push.Config,
	sessions *Sessions,
	tmpl *template.Template,
	adminTmpl map[string]*template.Template,
) *Handler {
	return &Handler{
		Users:      pg,
		Subs:       pg,
		Notifs:     pg,
		Board:      notify.NewService(pg, pg),
		Live:       live,
		Dispatcher: dispatcher,
		PushCfg:    pushCfg,
		Sessions:   sessions,
		Tmpl:       tmpl,
		AdminTmpl:  adminTmpl,
	}
}

func (h *Handler) RenderAdminPage(w http.ResponseWriter, page string, data any) {
	if tmpl, ok := h.AdminTmpl[page]; ok {
		if err := tmpl.Execute(w, data); err != nil {
			log.Println("Template error:", err)
			http.Error(w, "Template error", http.StatusInternalServerError)
		}
	} else {
		http.Error(w, "Page not found", http.StatusNotFound)
	}
}

func (h *Handler) AdminLoginPage(w http.ResponseWriter, r *http.Request) {
	h.RenderAdminPage(w, "login", nil)
}

func (h *Handler) AdminDashboardPage(w http.ResponseWriter, r *http.Request) {
	userID, role := h.Sessions.CurrentUser(r)
	h.RenderAdminPage(w, "dashboard", map[string]any{
		"UserID": userID,
		"Role":   role,
	})
}

// IndexHandler renders the board shell; the client fetches entries
// from /api/notifications once signed in.
func (h *Handler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	userID, _ := h.Sessions.CurrentUser(r)
	if err := h.Tmpl.Execute(w, map[string]any{
		"SignedIn":       userID != 0,
		"VAPIDPublicKey": h.PushCfg.VAPIDPublicKey,
	}); err != nil {
		log.Println("template error:", err)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
