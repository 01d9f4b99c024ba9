// ABOUTME: UVCI settings endpoints: link status, link a Moodle account and unlink it
// ABOUTME: Failed link attempts put the user on a short cooldown

package mockapi

import (
	"net/http"
	"strconv"

	"github.com/uvci/campus-assistant/internal/api"
	"github.com/uvci/campus-assistant/internal/auth"
)

const (
	msgUVCIConnected    = "Connecté"
	msgUVCINotConnected = "Non connecté"
	msgUVCILinked       = "Connexion UVCI réussie ! Le robot veille maintenant sur vos devoirs."
	msgUVCIRejected     = "Identifiants UVCI incorrects ou erreur de connexion Moodle."
	msgUVCIUnlinked     = "Déconnexion UVCI effectuée"
	msgUVCIThrottled    = "Trop de tentatives, réessayez dans quelques instants."
)

type uvciBody struct {
	Username string `json:"username" validate:"required,max=120"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleUVCIStatus(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	status := api.UVCIStatus{
		IsConnected: user.UVCIUsername != "",
		Username:    user.UVCIUsername,
		Message:     msgUVCINotConnected,
	}
	if status.IsConnected {
		status.Message = msgUVCIConnected
		if user.UVCILinkedAt != nil {
			status.LastCheck = user.UVCILinkedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleConnectUVCI(w http.ResponseWriter, r *http.Request) {
	var body uvciBody
	if !decodeBody(w, r, &body) {
		return
	}
	user := auth.MustUserFromContext(r.Context())
	key := strconv.FormatInt(user.ID, 10)

	if s.uvciLimiter.Remaining(key) > 0 {
		writeError(w, http.StatusTooManyRequests, msgUVCIThrottled)
		return
	}

	ok, err := s.moodle.VerifyCredentials(r.Context(), body.Username, body.Password)
	if err != nil {
		s.logger.Warn("moodle verification failed", "error", err, "user_id", user.ID)
	}
	if err != nil || !ok {
		s.uvciLimiter.Allow(key)
		writeError(w, http.StatusBadRequest, msgUVCIRejected)
		return
	}

	if err := s.store.SetUVCIAccount(r.Context(), user.ID, body.Username, s.now()); err != nil {
		s.logger.Error("linking UVCI account", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	s.logger.Info("UVCI account linked", "user_id", user.ID, "username", body.Username)
	writeJSON(w, http.StatusOK, api.UVCIStatus{
		IsConnected: true,
		Username:    body.Username,
		Message:     msgUVCILinked,
	})
}

func (s *Server) handleDisconnectUVCI(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	if err := s.store.ClearUVCIAccount(r.Context(), user.ID); err != nil {
		s.logger.Error("unlinking UVCI account", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeMessage(w, msgUVCIUnlinked)
}
