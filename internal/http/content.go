package httpapi

import (
	"net/http"

	"fablab-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

func contentFilter(r *http.Request) services.ContentFilter {
	q := r.URL.Query()
	return services.ContentFilter{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		Search:   q.Get("search"),
	}
}

func (s *Server) PublishedPosts(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, resBlog, func() (interface{}, error) {
		return services.ListPublishedPosts(r.Context(), s.DB, contentFilter(r), pageFrom(r))
	})
}

// PublishedPost counts a view, so it is never served from the cache.
func (s *Server) PublishedPost(w http.ResponseWriter, r *http.Request) {
	post, err := services.ViewPublishedPost(r.Context(), s.DB, chi.URLParam(r, "slug"))
	s.respond(w, r, http.StatusOK, post, err)
}

func (s *Server) PostCategories(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, resBlog, func() (interface{}, error) {
		return services.PostCategories(r.Context(), s.DB)
	})
}

func (s *Server) ListPosts(w http.ResponseWriter, r *http.Request) {
	result, err := services.ListPosts(r.Context(), s.DB, contentFilter(r), pageFrom(r))
	s.respond(w, r, http.StatusOK, result, err)
}

func (s *Server) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	post, err := services.GetPost(r.Context(), s.DB, id)
	s.respond(w, r, http.StatusOK, post, err)
}

func (s *Server) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req services.PostInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	post, err := services.CreatePost(r.Context(), s.DB, req)
	if err == nil {
		s.changed(r, "created", resBlog, post.ID)
	}
	s.respond(w, r, http.StatusCreated, post, err)
}

func (s *Server) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req services.PostInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	post, err := services.UpdatePost(r.Context(), s.DB, id, req)
	if err == nil {
		s.changed(r, "updated", resBlog, id)
	}
	s.respond(w, r, http.StatusOK, post, err)
}

func (s *Server) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.DeletePost(r.Context(), s.DB, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "deleted", resBlog, id)
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Article supprimé"})
}

func (s *Server) PublishedPage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	s.serveCached(w, r, resPages, func() (interface{}, error) {
		return services.GetPublishedPage(r.Context(), s.DB, slug)
	})
}

func (s *Server) ListPages(w http.ResponseWriter, r *http.Request) {
	result, err := services.ListPages(r.Context(), s.DB, contentFilter(r), pageFrom(r))
	s.respond(w, r, http.StatusOK, result, err)
}

func (s *Server) GetPage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := services.GetPage(r.Context(), s.DB, id)
	s.respond(w, r, http.StatusOK, page, err)
}

func (s *Server) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req services.PageInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := services.CreatePage(r.Context(), s.DB, req)
	if err == nil {
		s.changed(r, "created", resPages, page.ID)
	}
	s.respond(w, r, http.StatusCreated, page, err)
}

func (s *Server) UpdatePage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req services.PageInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := services.UpdatePage(r.Context(), s.DB, id, req)
	if err == nil {
		s.changed(r, "updated", resPages, id)
	}
	s.respond(w, r, http.StatusOK, page, err)
}

func (s *Server) DeletePage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.DeletePage(r.Context(), s.DB, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "deleted", resPages, id)
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Page supprimée"})
}
