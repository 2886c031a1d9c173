package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/datti/backend/internal/audit"
	"github.com/datti/backend/internal/datti"
	mW "github.com/datti/backend/internal/middleware"
	"github.com/datti/backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"
)

type AuthService struct {
	sessions  SessionStore
	signIn    func(ctx context.Context, email, password string) (*oauth2.Token, error)
	audit     *audit.Logger
	validator *ValidationHelper
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"taro@example.com"` // Datti account email
	Password string `json:"password" validate:"required" example:"password123"`         // Datti account password
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	User  models.User `json:"user"`                                                    // User information
}

func NewAuthService(sessions SessionStore, oauth *oauth2.Config, auditLogger *audit.Logger) *AuthService {
	return &AuthService{
		sessions: sessions,
		signIn: func(ctx context.Context, email, password string) (*oauth2.Token, error) {
			return datti.SignIn(ctx, oauth, email, password)
		},
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

// Login handles user authentication
// @Summary Login user
// @Description Signs in against the Datti API and opens a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if !DecodeRequest(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	tok, err := s.signIn(ctx, req.Email, req.Password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			(retrieveErr.Response.StatusCode == http.StatusBadRequest || retrieveErr.Response.StatusCode == http.StatusUnauthorized) {
			log.Printf("[AUTH] Invalid credentials for %s", req.Email)
			SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
			return
		}
		log.Printf("[AUTH] Token exchange failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "An unknown error occurred", http.StatusInternalServerError, nil)
		return
	}

	sessionID := uuid.NewString()
	if err := s.sessions.Save(ctx, sessionID, tok); err != nil {
		log.Printf("[AUTH] Failed to store session for %s: %v", req.Email, err)
		SendErrorResponse(w, "An unknown error occurred", http.StatusInternalServerError, nil)
		return
	}

	backend, err := s.sessions.ForSession(ctx, sessionID)
	if err != nil {
		log.Printf("[AUTH] Failed to open session for %s: %v", req.Email, err)
		SendErrorResponse(w, "An unknown error occurred", http.StatusInternalServerError, nil)
		return
	}

	user, err := backend.Me(ctx)
	if err != nil {
		if derr := s.sessions.Delete(ctx, sessionID); derr != nil {
			log.Printf("[AUTH] Failed to drop session %s: %v", sessionID, derr)
		}
		SendBackendError(w, err)
		return
	}

	token, err := generateJWT(user.ID, sessionID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %s: %v", user.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogOperation(user.ID, "LOGIN", "session opened")
	log.Printf("[AUTH] Login successful for user %s", user.ID)
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: *user})
}

// Logout handles user logout
// @Summary Logout user
// @Description Drops the session and its Datti API token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := mW.SessionIDFromContext(r.Context()); ok {
		if err := s.sessions.Delete(r.Context(), sessionID); err != nil {
			log.Printf("[AUTH] Failed to drop session: %v", err)
		}
	}
	if userID, ok := mW.UserIDFromContext(r.Context()); ok {
		s.audit.LogOperation(userID, "LOGOUT", "session closed")
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// GetCurrentUser returns the signed-in user
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (s *AuthService) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	backend, _, ok := BackendForRequest(w, r, s.sessions)
	if !ok {
		return
	}

	user, err := backend.Me(r.Context())
	if err != nil {
		SendBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func generateJWT(userID, sessionID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"sid":     sessionID,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}
