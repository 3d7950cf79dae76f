package main

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cadence/internal/config"
	"cadence/internal/database"
	"cadence/internal/handlers"
	"cadence/internal/repository"
	"cadence/internal/security"
	"cadence/internal/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	// Run migrations
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Load templates
	templates, err := loadTemplates(cfg.TemplatesPath)
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	if !cfg.AuthEnabled() {
		log.Println("WARNING: AUTH_BASE_URL or SESSION_SECRET is not set; authentication is DISABLED and every route is public")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	childRepo := repository.NewChildRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.SessionDuration, cfg.AuthEnabled())
	bootstrapService := service.NewBootstrapService(familyRepo)
	familyService := service.NewFamilyService(bootstrapService, childRepo, activityRepo)

	emailService, err := service.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AuthBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}

	// Initialize handlers
	csrf := security.NewCSRFGenerator(cfg.SessionSecret)
	rateLimiter := security.NewRateLimiter(10, time.Minute)
	middleware := handlers.NewMiddleware(authService, rateLimiter, csrf)
	authHandler := handlers.NewAuthHandler(authService, emailService, templates)
	oauthHandler := handlers.NewOAuthHandler(authHandler, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.AuthBaseURL)
	pageHandler := handlers.NewPageHandler(bootstrapService, familyService, csrf, templates)
	apiHandler := handlers.NewAPIHandler(familyService)

	// Setup routes
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticFilesPath))))

	// Public routes
	mux.HandleFunc("GET /", pageHandler.Home)
	mux.HandleFunc("GET /login", authHandler.ShowLogin)
	mux.HandleFunc("POST /login", middleware.RateLimit(authHandler.Login))
	mux.HandleFunc("POST /logout", authHandler.Logout)
	mux.HandleFunc("POST /auth/magic-link", middleware.RateLimit(authHandler.SendMagicLink))
	mux.HandleFunc("POST /auth/recovery", middleware.RateLimit(authHandler.RequestPasswordReset))
	mux.HandleFunc("GET /auth/callback", authHandler.Callback)
	mux.HandleFunc("GET /auth/google/start", oauthHandler.Start)
	mux.HandleFunc("GET /auth/google/callback", oauthHandler.ProviderCallback)

	// Protected pages
	mux.HandleFunc("GET /log", middleware.RequireUser(pageHandler.Log))
	mux.HandleFunc("GET /dashboard", middleware.RequireUser(pageHandler.Dashboard))
	mux.HandleFunc("GET /account", middleware.RequireUser(pageHandler.Account))
	mux.HandleFunc("POST /account/password", middleware.RequireUser(middleware.CSRFProtect(authHandler.UpdatePassword)))

	// JSON API
	mux.HandleFunc("POST /api/children", middleware.RequireUserJSON(apiHandler.CreateChild))
	mux.HandleFunc("GET /api/children", middleware.RequireUserJSON(apiHandler.ListChildren))
	mux.HandleFunc("POST /api/activities", middleware.RequireUserJSON(apiHandler.CreateActivity))
	mux.HandleFunc("POST /api/active-child", middleware.RequireUserJSON(apiHandler.SetActiveChild))

	// Every request flows through the session gate, then logging
	handler := handlers.Logging(middleware.SessionGate(mux))

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background session and code cleanup
	go cleanupExpired(authService)

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// loadTemplates loads all template files
func loadTemplates(templatesPath string) (*template.Template, error) {
	files, err := filepath.Glob(filepath.Join(templatesPath, "*.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob templates: %w", err)
	}

	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return tmpl, nil
}

// cleanupExpired periodically removes expired sessions and auth codes
func cleanupExpired(authService *service.AuthService) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		if err := authService.CleanupExpired(); err != nil {
			log.Printf("Error cleaning up expired sessions and codes: %v", err)
		}
	}
}
