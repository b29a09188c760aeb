package httpapi

import (
	"net/http"

	"fablab-backend-go/internal/notify"
	"fablab-backend-go/internal/services"
)

type LikeResponse struct {
	Likes int `json:"likes"`
}

func innovationFilter(r *http.Request) services.InnovationFilter {
	q := r.URL.Query()
	return services.InnovationFilter{
		Category:    q.Get("category"),
		Status:      q.Get("status"),
		Featured:    q.Get("featured"),
		IsPublished: q.Get("is_published"),
		Search:      q.Get("search"),
	}
}

func (s *Server) PublishedInnovations(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, resInnovations, func() (interface{}, error) {
		return services.ListPublishedInnovations(r.Context(), s.DB, innovationFilter(r), pageFrom(r))
	})
}

// PublishedInnovation counts a view on every call so it bypasses the cache.
func (s *Server) PublishedInnovation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := services.ViewPublishedInnovation(r.Context(), s.DB, id)
	s.respond(w, r, http.StatusOK, item, err)
}

func (s *Server) LikeInnovation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	likes, err := services.LikeInnovation(r.Context(), s.DB, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "liked", resInnovations, id)
	WriteJSON(w, http.StatusOK, LikeResponse{Likes: likes})
}

func (s *Server) SubmitInnovation(w http.ResponseWriter, r *http.Request) {
	var req services.InnovationInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := services.SubmitInnovation(r.Context(), s.DB, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.notify(notify.InnovationSubmitted(item))
	WriteJSON(w, http.StatusCreated, item)
}

func (s *Server) ListInnovations(w http.ResponseWriter, r *http.Request) {
	result, err := services.ListInnovations(r.Context(), s.DB, innovationFilter(r), pageFrom(r))
	s.respond(w, r, http.StatusOK, result, err)
}

func (s *Server) GetInnovation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := services.GetInnovation(r.Context(), s.DB, id)
	s.respond(w, r, http.StatusOK, item, err)
}

func (s *Server) CreateInnovation(w http.ResponseWriter, r *http.Request) {
	var req services.InnovationInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := services.CreateInnovation(r.Context(), s.DB, req)
	if err == nil {
		s.changed(r, "created", resInnovations, item.ID)
	}
	s.respond(w, r, http.StatusCreated, item, err)
}

func (s *Server) UpdateInnovation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req services.InnovationInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := services.UpdateInnovation(r.Context(), s.DB, id, req)
	if err == nil {
		s.changed(r, "updated", resInnovations, id)
	}
	s.respond(w, r, http.StatusOK, item, err)
}

func (s *Server) UpdateInnovationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status" validate:"required,oneof=pending approved rejected"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := services.UpdateInnovationStatus(r.Context(), s.DB, id, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "updated", resInnovations, id)
	s.notify(notify.InnovationStatusChanged(item))
	WriteJSON(w, http.StatusOK, item)
}

func (s *Server) ToggleInnovationFeatured(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := services.ToggleInnovationFeatured(r.Context(), s.DB, id)
	if err == nil {
		s.changed(r, "updated", resInnovations, id)
	}
	s.respond(w, r, http.StatusOK, item, err)
}

func (s *Server) DeleteInnovation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.DeleteInnovation(r.Context(), s.DB, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "deleted", resInnovations, id)
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Innovation supprimée"})
}
