package httpapi

import (
	"net/http"

	"fablab-backend-go/internal/notify"
	"fablab-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

func workshopFilter(r *http.Request) services.WorkshopFilter {
	q := r.URL.Query()
	return services.WorkshopFilter{
		Category: q.Get("category"),
		Level:    q.Get("level"),
		Type:     q.Get("type"),
		Status:   q.Get("status"),
		IsActive: q.Get("is_active"),
		Upcoming: queryBool(r, "upcoming"),
		Search:   q.Get("search"),
	}
}

func (s *Server) PublishedWorkshops(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, resWorkshops, func() (interface{}, error) {
		return services.ListPublishedWorkshops(r.Context(), s.DB, workshopFilter(r), pageFrom(r))
	})
}

func (s *Server) PublishedWorkshop(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	s.serveCached(w, r, resWorkshops, func() (interface{}, error) {
		return services.GetPublishedWorkshop(r.Context(), s.DB, slug)
	})
}

// RegisterForWorkshop reserves a seat. Notifications go out only after the
// reservation is committed.
func (s *Server) RegisterForWorkshop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req services.RegistrationInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reg, workshop, err := services.RegisterForWorkshop(r.Context(), s.DB, id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "registered", resWorkshops, workshop.ID)
	s.notify(notify.WorkshopRegistration(reg, workshop))
	WriteJSON(w, http.StatusCreated, reg)
}

func (s *Server) ListWorkshops(w http.ResponseWriter, r *http.Request) {
	result, err := services.ListWorkshops(r.Context(), s.DB, workshopFilter(r), pageFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) GetWorkshop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	workshop, err := services.GetWorkshop(r.Context(), s.DB, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, workshop)
}

func (s *Server) CreateWorkshop(w http.ResponseWriter, r *http.Request) {
	var req services.WorkshopInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	workshop, err := services.CreateWorkshop(r.Context(), s.DB, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "created", resWorkshops, workshop.ID)
	WriteJSON(w, http.StatusCreated, workshop)
}

func (s *Server) UpdateWorkshop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req services.WorkshopInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	workshop, err := services.UpdateWorkshop(r.Context(), s.DB, id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "updated", resWorkshops, id)
	WriteJSON(w, http.StatusOK, workshop)
}

func (s *Server) DeleteWorkshop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.DeleteWorkshop(r.Context(), s.DB, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "deleted", resWorkshops, id)
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Atelier supprimé"})
}

func (s *Server) UpdateWorkshopStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	workshop, err := services.UpdateWorkshopStatus(r.Context(), s.DB, id, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "updated", resWorkshops, id)
	WriteJSON(w, http.StatusOK, workshop)
}

func (s *Server) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter := services.RegistrationFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
	}
	result, err := services.ListRegistrations(r.Context(), s.DB, id, filter, pageFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) UpdateRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "regId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reg, err := services.UpdateRegistrationStatus(r.Context(), s.DB, id, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "updated", resWorkshops, reg.WorkshopID)
	WriteJSON(w, http.StatusOK, reg)
}

func (s *Server) WorkshopStats(w http.ResponseWriter, r *http.Request) {
	stats, err := services.WorkshopStats(r.Context(), s.DB)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
