package httpapi

import (
	"net/http"

	"fablab-backend-go/internal/notify"
	"fablab-backend-go/internal/services"
)

func inboxFilter(r *http.Request) services.InboxFilter {
	q := r.URL.Query()
	return services.InboxFilter{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}
}

func (s *Server) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req services.ContactInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := services.CreateContact(r.Context(), s.DB, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.notify(notify.ContactMessage(msg))
	WriteJSON(w, http.StatusCreated, msg)
}

func (s *Server) ListContacts(w http.ResponseWriter, r *http.Request) {
	result, err := services.ListContacts(r.Context(), s.DB, inboxFilter(r), pageFrom(r))
	s.respond(w, r, http.StatusOK, result, err)
}

// GetContact marks an unread message as read.
func (s *Server) GetContact(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := services.OpenContact(r.Context(), s.DB, id)
	s.respond(w, r, http.StatusOK, msg, err)
}

func (s *Server) UpdateContactStatus(w http.ResponseWriter, r *http.Request) {
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
	msg, err := services.UpdateContactStatus(r.Context(), s.DB, id, req.Status)
	s.respond(w, r, http.StatusOK, msg, err)
}

func (s *Server) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.DeleteContact(r.Context(), s.DB, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Message supprimé"})
}

func (s *Server) ContactStats(w http.ResponseWriter, r *http.Request) {
	stats, err := services.ContactStats(r.Context(), s.DB)
	s.respond(w, r, http.StatusOK, stats, err)
}

func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req services.ProjectInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	project, err := services.CreateProject(r.Context(), s.DB, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.notify(notify.ProjectSubmitted(project))
	WriteJSON(w, http.StatusCreated, project)
}

func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	result, err := services.ListProjects(r.Context(), s.DB, inboxFilter(r), pageFrom(r))
	s.respond(w, r, http.StatusOK, result, err)
}

func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	project, err := services.GetProject(r.Context(), s.DB, id)
	s.respond(w, r, http.StatusOK, project, err)
}

func (s *Server) UpdateProjectStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req services.ProjectStatusInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	before, err := services.GetProject(r.Context(), s.DB, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	project, err := services.UpdateProjectStatus(r.Context(), s.DB, id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if before.Status != project.Status {
		s.notify(notify.ProjectStatusChanged(project))
	}
	WriteJSON(w, http.StatusOK, project)
}

func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.DeleteProject(r.Context(), s.DB, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Projet supprimé"})
}
