package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"fablab-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Settings(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, resSettings, func() (interface{}, error) {
		return services.SettingsMap(r.Context(), s.DB)
	})
}

func (s *Server) Setting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.serveCached(w, r, resSettings, func() (interface{}, error) {
		return services.GetSetting(r.Context(), s.DB, key)
	})
}

// UpsertSettings accepts a flat object. Non-string scalars are stored in
// their JSON text form.
func (s *Server) UpsertSettings(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&raw); err != nil || len(raw) == 0 {
		WriteError(w, http.StatusBadRequest, "Corps de requête invalide")
		return
	}
	values := make(map[string]string, len(raw))
	for key, value := range raw {
		var text string
		if err := json.Unmarshal(value, &text); err == nil {
			values[key] = text
			continue
		}
		if len(value) > 0 && (value[0] == '{' || value[0] == '[') {
			s.writeError(w, r, services.ErrValidation(fmt.Sprintf("%s: valeur invalide", key)))
			return
		}
		values[key] = string(value)
	}
	if err := services.UpsertSettings(r.Context(), s.DB, values); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "updated", resSettings, 0)
	settings, err := services.SettingsMap(r.Context(), s.DB)
	s.respond(w, r, http.StatusOK, settings, err)
}

func (s *Server) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	if err := services.DeleteSetting(r.Context(), s.DB, chi.URLParam(r, "key")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "deleted", resSettings, 0)
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Paramètre supprimé"})
}
