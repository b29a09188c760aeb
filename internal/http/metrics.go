package httpapi

import (
	"net/http"
	"strings"

	"fablab-backend-go/internal/services"

	"github.com/gorilla/websocket"
)

func (s *Server) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := services.Dashboard(r.Context(), s.DB, s.Config.UploadDir)
	s.respond(w, r, http.StatusOK, stats, err)
}

// LiveSocket streams change events. A valid admin token in ?token= also
// subscribes the client to notifications and host metrics.
func (s *Server) LiveSocket(w http.ResponseWriter, r *http.Request) {
	if s.Live == nil {
		WriteError(w, http.StatusServiceUnavailable, "Flux indisponible")
		return
	}
	admin := false
	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := s.Tokens.ParseToken(token)
		if err != nil {
			WriteError(w, http.StatusUnauthorized, msgInvalidToken)
			return
		}
		user, err := services.GetUser(r.Context(), s.DB, claims.UserID)
		if err != nil || !user.IsActive {
			WriteError(w, http.StatusUnauthorized, msgInvalidToken)
			return
		}
		admin = user.IsAdmin()
	}
	upgrader := websocket.Upgrader{CheckOrigin: s.allowedOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.Live.Add(conn, admin)
	defer func() {
		s.Live.Remove(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.Config.CorsOrigins) == 0 {
		return true
	}
	for _, allowed := range s.Config.CorsOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
