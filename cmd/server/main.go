package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datti/backend/docs"
	"github.com/datti/backend/internal/audit"
	"github.com/datti/backend/internal/config"
	"github.com/datti/backend/internal/database"
	"github.com/datti/backend/internal/datti"
	"github.com/datti/backend/internal/handlers"
	mW "github.com/datti/backend/internal/middleware"
	"github.com/datti/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Datti Lending API
// @version 1.0
// @description Backend-for-frontend of the Datti expense splitting app: lending forms, debt allocation and repayments
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	config.Load()

	docs.SwaggerInfo.Title = "Datti Lending API"
	docs.SwaggerInfo.Description = "Backend-for-frontend of the Datti expense splitting app"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:" + viper.GetString("server.port")
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize storage
	db := database.InitDatabase()
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	redisClient := database.InitRedis()
	if redisClient == nil {
		log.Fatal("Redis is required for sessions and drafts")
	}
	defer redisClient.Close()

	draftConfig := config.LoadDraftConfig()
	baseURL := viper.GetString("datti.base_url")
	oauthConfig := datti.NewOAuthConfig(baseURL, viper.GetString("datti.client_id"), viper.GetString("datti.client_secret"))
	sessionTTL := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour

	// Initialize services
	sessions := services.NewRedisSessionStore(redisClient, oauthConfig, baseURL, sessionTTL)
	auditLogger := audit.NewLogger()
	journal := services.NewSubmissionJournal(db)
	submitter := services.NewSubmitter(journal, auditLogger)

	authService := services.NewAuthService(sessions, oauthConfig, auditLogger)
	groupService := services.NewGroupService(sessions)
	lendingService := services.NewLendingService(sessions, submitter)
	repaymentService := services.NewRepaymentService(sessions, submitter)
	draftService := services.NewDraftService(sessions, services.NewRedisDraftStore(redisClient, draftConfig), lendingService)
	qrHandler := handlers.NewQRHandler(services.NewQRService(redisClient, draftConfig), repaymentService, sessions)

	// Setup router
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   viper.GetStringSlice("server.allowed_origins"),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Member avatars
	r.Handle("/static/avatars/*", http.StripPrefix("/static/avatars/",
		mW.AvatarFileServer("./static/avatars")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authService.Login)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/auth/logout", authService.Logout)
			r.Get("/auth/me", authService.GetCurrentUser)

			r.Route("/groups/{groupId}", func(r chi.Router) {
				r.Get("/members", groupService.ListMembers)
				r.Get("/credits", groupService.ListCredits)

				r.Get("/lendings", lendingService.ListLendings)
				r.Post("/lendings", lendingService.CreateLending)
				r.Get("/lendings/{lendingId}", lendingService.GetLending)
				r.Put("/lendings/{lendingId}", lendingService.UpdateLending)
				r.Delete("/lendings/{lendingId}", lendingService.DeleteLending)

				r.Get("/repayments", repaymentService.ListRepayments)
				r.Post("/repayments", repaymentService.CreateRepayment)

				r.Post("/drafts", draftService.CreateDraft)
			})

			// Lending forms
			r.Get("/drafts/{draftId}", draftService.GetDraft)
			r.Put("/drafts/{draftId}", draftService.UpdateDraft)
			r.Delete("/drafts/{draftId}", draftService.DeleteDraft)
			r.Put("/drafts/{draftId}/payer", draftService.SelectPayer)
			r.Put("/drafts/{draftId}/debts/{paidTo}", draftService.SetDebt)
			r.Post("/drafts/{draftId}/split", draftService.SplitDraft)
			r.Post("/drafts/{draftId}/submit", draftService.SubmitDraft)

			r.Get("/submissions", journal.ListSubmissions)

			r.Post("/qr/generate", qrHandler.GenerateQR)
			r.Post("/qr/process", qrHandler.ProcessQR)
		})
	})

	port := viper.GetString("server.port")

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
