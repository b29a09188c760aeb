package httpapi

import (
	"net/http"
	"strings"

	"fablab-backend-go/internal/notify"
	"fablab-backend-go/internal/services"
)

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := services.Register(r.Context(), s.DB, s.Tokens, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.notify(notify.UserRegistered(session.User))
	WriteJSON(w, http.StatusCreated, session)
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	key := strings.ToLower(strings.TrimSpace(req.Email))
	if s.Guard.Locked(key) {
		WriteError(w, http.StatusTooManyRequests, msgAccountLocked)
		return
	}
	session, err := services.Login(r.Context(), s.DB, s.Tokens, req)
	if err != nil {
		if serr, ok := services.AsServiceError(err); ok && serr.Status == http.StatusUnauthorized {
			if s.Guard.Fail(key) {
				logFrom(r, s.Log).Warn().Str("email", key).Str("ip", clientIP(r)).Msg("login locked after repeated failures")
			}
		}
		s.writeError(w, r, err)
		return
	}
	s.Guard.Reset(key)
	WriteJSON(w, http.StatusOK, session)
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, msgAuthRequired)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r)
	var req services.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := services.UpdateProfile(r.Context(), s.DB, user.ID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r)
	var req services.ChangePasswordInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.ChangePassword(r.Context(), s.DB, s.Tokens, user.ID, req); err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Mot de passe modifié avec succès"})
}
