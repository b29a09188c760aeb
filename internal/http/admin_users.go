package httpapi

import (
	"net/http"

	"fablab-backend-go/internal/services"
)

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.UserFilter{
		Role:     q.Get("role"),
		IsActive: q.Get("is_active"),
		Search:   q.Get("search"),
	}
	result, err := services.ListUsers(r.Context(), s.DB, filter, pageFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := services.GetUser(r.Context(), s.DB, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req services.UserInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := services.CreateUser(r.Context(), s.DB, s.Tokens, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, user)
}

func (s *Server) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req services.UserInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := services.UpdateUser(r.Context(), s.DB, s.Tokens, id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) ToggleUserActive(w http.ResponseWriter, r *http.Request) {
	actor, _ := CurrentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := services.ToggleUserActive(r.Context(), s.DB, actor.ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := CurrentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.DeleteUser(r.Context(), s.DB, actor.ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Utilisateur supprimé"})
}
