// ABOUTME: Account endpoints of the mock API: register, login, me and password reset
// ABOUTME: Reset tokens are stored hashed and answered the same way whether or not the email exists

package mockapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/uvci/campus-assistant/internal/api"
	"github.com/uvci/campus-assistant/internal/auth"
	"github.com/uvci/campus-assistant/internal/store"
)

// Response messages, matching the production backend
const (
	msgEmailTaken        = "Email already registered"
	msgBadCredentials    = "Incorrect email or password"
	msgResetRequested    = "Si cet email existe dans notre système, vous recevrez un lien de réinitialisation."
	msgPasswordsDiffer   = "Les mots de passe ne correspondent pas"
	msgPasswordTooShort  = "Le mot de passe doit contenir au moins 8 caractères"
	msgResetTokenInvalid = "Token invalide ou expiré"
	msgPasswordResetDone = "Mot de passe réinitialisé avec succès"
	msgInternalError     = "Internal server error"
)

type registerBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"max=120"`
	Role     string `json:"role" validate:"omitempty,oneof=student admin"`
}

type loginBody struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type forgotBody struct {
	Email string `json:"email" validate:"required,email"`
}

type resetBody struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toAPIUser(u *store.User) api.User {
	return api.User{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      api.ParseRole(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !decodeBody(w, r, &body) {
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	user := &store.User{
		Email:        normalizeEmail(body.Email),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(body.FullName),
		Role:         body.Role,
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	if user.Role == "" {
		user.Role = store.RoleStudent
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusBadRequest, msgEmailTaken)
			return
		}
		s.logger.Error("creating user", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, toAPIUser(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !decodeBody(w, r, &body) {
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), normalizeEmail(body.Email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("loading user", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	if user == nil || auth.CheckPassword(user.PasswordHash, body.Password) != nil {
		writeError(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}

	token, err := s.tokens.Generate(strconv.FormatInt(user.ID, 10), user.Role, s.tokenTTL)
	if err != nil {
		s.logger.Error("signing token", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, http.StatusOK, api.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        toAPIUser(user),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toAPIUser(auth.MustUserFromContext(r.Context())))
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body forgotBody
	if !decodeBody(w, r, &body) {
		return
	}
	email := normalizeEmail(body.Email)

	// The answer never depends on whether the email exists or was throttled
	defer writeMessage(w, msgResetRequested)

	if !s.resetLimiter.Allow(email) {
		s.logger.Debug("reset request throttled", "email", email)
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("loading user for reset", "error", err)
		}
		return
	}

	token, hash, err := auth.NewResetToken()
	if err != nil {
		s.logger.Error("generating reset token", "error", err)
		return
	}
	if err := s.store.SetResetToken(r.Context(), user.ID, hash, s.now().Add(s.resetTTL)); err != nil {
		s.logger.Error("storing reset token", "error", err)
		return
	}
	if err := s.notifier.SendReset(r.Context(), user.Email, token); err != nil {
		s.logger.Error("sending reset token", "error", err, "user_id", user.ID)
	}
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetBody
	if !decodeBody(w, r, &body) {
		return
	}

	if body.NewPassword != body.ConfirmPassword {
		writeError(w, http.StatusBadRequest, msgPasswordsDiffer)
		return
	}
	if len(body.NewPassword) < auth.MinPasswordLength {
		writeError(w, http.StatusBadRequest, msgPasswordTooShort)
		return
	}

	hash, err := auth.HashPassword(body.NewPassword)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	user, err := s.store.ResetPassword(r.Context(), auth.HashResetToken(body.Token), hash, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, msgResetTokenInvalid)
			return
		}
		s.logger.Error("resetting password", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	s.resetLimiter.Forget(user.Email)
	s.logger.Info("password reset", "user_id", user.ID)
	writeMessage(w, msgPasswordResetDone)
}
