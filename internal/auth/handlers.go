package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/audit"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionConfig carries the session settings shared by signup and login.
type SessionConfig struct {
	Secret       string
	Days         int
	IsProduction bool
}

func HandleSignup(pool *pgxpool.Pool, auditor *audit.Writer, session SessionConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		user, err := CreateUser(r.Context(), pool, req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidEmail):
				apperrors.WriteBadRequest(w, r, "Invalid email address")
			case errors.Is(err, ErrPasswordTooShort):
				apperrors.WriteBadRequest(w, r, "Password must be at least 8 characters")
			case errors.Is(err, ErrEmailTaken):
				apperrors.WriteConflict(w, r, "Email address already registered")
			default:
				log.Error().Err(err).Msg("Failed to create user")
				apperrors.WriteInternalError(w, r, "Failed to create account")
			}
			return
		}

		if err := auditor.LogUserSignup(r.Context(), user.ID, user.Email); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to audit signup")
		}

		if !startSession(w, r, user.ID, session) {
			return
		}

		log.Info().Str("user_id", user.ID.String()).Msg("User signed up")
		apperrors.WriteSuccess(w, r, http.StatusCreated, user)
	}
}

func HandleLogin(pool *pgxpool.Pool, auditor *audit.Writer, session SessionConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		user, err := Authenticate(r.Context(), pool, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				if err := auditor.LogLoginFailed(r.Context(), req.Email, r.RemoteAddr); err != nil {
					log.Warn().Err(err).Msg("Failed to audit login failure")
				}
				apperrors.WriteUnauthorized(w, r, "Invalid credentials")
				return
			}
			log.Error().Err(err).Msg("Login failed")
			apperrors.WriteInternalError(w, r, "Login failed")
			return
		}

		if !startSession(w, r, user.ID, session) {
			return
		}

		log.Info().Str("user_id", user.ID.String()).Msg("User logged in")
		apperrors.WriteSuccess(w, r, http.StatusOK, user)
	}
}

// HandleLogout signs the user out by clearing the session cookie.
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w)
	if userID := GetUserID(r.Context()); userID != uuid.Nil {
		log.Info().Str("user_id", userID.String()).Msg("User logged out")
	}
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]bool{"signed_out": true})
}

func HandleMe(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := GetCurrentUser(r.Context(), pool)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				ClearSessionCookie(w)
				apperrors.WriteUnauthorized(w, r, "Unauthorized")
				return
			}
			log.Error().Err(err).Msg("Failed to load current user")
			apperrors.WriteInternalError(w, r, "Failed to load user")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, user)
	}
}

func startSession(w http.ResponseWriter, r *http.Request, userID uuid.UUID, session SessionConfig) bool {
	token, err := CreateToken(userID, session.Secret, session.Days)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create token")
		apperrors.WriteInternalError(w, r, "Failed to create session")
		return false
	}
	SetSessionCookie(w, token, session.Days, session.IsProduction)
	return true
}
