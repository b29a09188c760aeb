package httpapi

import (
	"net/http"

	"fablab-backend-go/internal/services"
)

type CountResponse struct {
	Count int64 `json:"count"`
}

func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r)
	result, err := services.ListNotifications(r.Context(), s.DB, user.ID, queryBool(r, "unread"), pageFrom(r))
	s.respond(w, r, http.StatusOK, result, err)
}

func (s *Server) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r)
	count, err := services.UnreadNotificationCount(r.Context(), s.DB, user.ID)
	s.respond(w, r, http.StatusOK, CountResponse{Count: int64(count)}, err)
}

func (s *Server) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.MarkNotificationRead(r.Context(), s.DB, user.ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Notification marquée comme lue"})
}

func (s *Server) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r)
	count, err := services.MarkAllNotificationsRead(r.Context(), s.DB, user.ID)
	s.respond(w, r, http.StatusOK, CountResponse{Count: count}, err)
}

func (s *Server) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.DeleteNotification(r.Context(), s.DB, user.ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Notification supprimée"})
}
