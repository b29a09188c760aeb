package httpapi

import (
	"encoding/json"
	"net/http"

	"fablab-backend-go/internal/notify"
)

const (
	resWorkshops   = "workshops"
	resEquipment   = "equipment"
	resInnovations = "innovations"
	resTeam        = "team"
	resBlog        = "blog"
	resPages       = "pages"
	resPPN         = "ppn"
	resSettings    = "settings"
)

// serveCached answers a public GET from the cache, loading and storing the
// payload on a miss. Cache errors fall through to load.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, resource string, load func() (interface{}, error)) {
	key := resource + ":" + r.URL.RequestURI()
	if body, err := s.Cache.Get(r.Context(), key); err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}
	payload, err := load()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Cache.Set(r.Context(), key, body, s.Config.CacheTTL); err != nil {
		logFrom(r, s.Log).Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

// changed drops cached reads of resource and tells live clients about the write.
func (s *Server) changed(r *http.Request, action, resource string, id int64) {
	if err := s.Cache.DeleteByPrefix(r.Context(), resource+":"); err != nil {
		logFrom(r, s.Log).Warn().Err(err).Str("resource", resource).Msg("cache invalidation failed")
	}
	if s.Live != nil {
		s.Live.Changed(action, resource, id)
	}
}

func (s *Server) notify(event notify.Event) {
	if s.Notifier != nil {
		s.Notifier.Notify(event)
	}
}
