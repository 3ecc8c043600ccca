package main

import (
	"context"
	"html/template"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"noticeboard-go/internal/handlers"
	"noticeboard-go/internal/push"
	"noticeboard-go/internal/store"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	// Redis Configuration (live events + click hints)
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDBStr := os.Getenv("REDIS_DB")
	redisDB := 0
	if redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	redisStore := store.NewRedisStore(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// PostgreSQL Configuration (users, subscriptions, notifications, receipts)
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pgStore, err := store.NewPostgresStore(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	// Run database migrations
	ctx := context.Background()
	if err := pgStore.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Web push configuration and dispatcher
	pushCfg := push.ConfigFromEnv()
	dispatcher := push.NewDispatcher(pushCfg, pgStore)

	// Parse templates
	tmplPath := filepath.Join("web", "templates", "index.html")
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		log.Fatalf("Failed to parse template: %v", err)
	}

	adminTmpl := make(map[string]*template.Template)
	adminTemplates := map[string]string{
		"login":     filepath.Join("web", "templates", "admin", "login.html"),
		"dashboard": filepath.Join("web", "templates", "admin", "dashboard.html"),
	}
	for name, path := range adminTemplates {
		t, err := template.ParseFiles(path)
		if err != nil {
			log.Printf("Failed to parse admin template %s: %v", name, err)
		} else {
			adminTmpl[name] = t
		}
	}

	sessions := handlers.NewSessions(os.Getenv("SESSION_SECRET"))
	h := handlers.NewHandler(pgStore, redisStore, dispatcher, pushCfg, sessions, tmpl, adminTmpl)

	// Initialize default admin user
	h.InitAdmin(ctx)

	// Public routes
	http.HandleFunc("/", h.IndexHandler)
	http.HandleFunc("/events", h.SSEHandler)
	http.HandleFunc("/open", h.OpenHandler)
	http.HandleFunc("/healthz", h.HealthHandler)
	http.HandleFunc("/webhook/notify", h.WebhookHandler)
	http.HandleFunc("/api/login", h.LoginHandler)
	http.HandleFunc("/api/logout", h.LogoutHandler)
	http.HandleFunc("/api/push/key", h.GetVAPIDKeyHandler)

	// Authenticated routes
	http.HandleFunc("/api/push/subscribe", h.RequireAuth(h.SubscribeHandler))
	http.HandleFunc("/api/push/unsubscribe", h.RequireAuth(h.UnsubscribeHandler))
	http.HandleFunc("/api/notifications", h.RequireAuth(h.ListNotificationsHandler))
	http.HandleFunc("/api/notifications/read", h.RequireAuth(h.MarkReadHandler))
	http.HandleFunc("/api/notifications/", h.RequireAuth(h.NotificationActionHandler))
	http.HandleFunc("/api/2fa/setup", h.RequireAuth(h.Setup2FAHandler))
	http.HandleFunc("/api/2fa/enable", h.RequireAuth(h.Enable2FAHandler))

	// Admin routes
	http.HandleFunc("/admin/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.AdminLoginPage(w, r)
		} else {
			h.LoginHandler(w, r)
		}
	})
	http.HandleFunc("/admin/dashboard", h.RequireAuth(h.RequireAdmin(h.AdminDashboardPage)))
	http.HandleFunc("/api/admin/notifications", h.RequireAuth(h.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.CreateNotificationHandler(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	http.HandleFunc("/api/admin/users", h.RequireAuth(h.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.GetUsersHandler(w, r)
		case http.MethodPost:
			h.CreateUserHandler(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	// Metrics
	http.Handle("/metrics", promhttp.Handler())

	// Serve static files (PWA assets, service worker)
	fs := http.FileServer(http.Dir("web/static"))
	http.Handle("/static/", http.StripPrefix("/static/", fs))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("Listening on :" + port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}
