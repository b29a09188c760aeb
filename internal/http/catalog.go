package httpapi

import (
	"net/http"

	"fablab-backend-go/internal/services"
)

type ReorderRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

func catalogFilter(r *http.Request) services.CatalogFilter {
	q := r.URL.Query()
	return services.CatalogFilter{
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Region:   q.Get("region"),
		City:     q.Get("city"),
		IsActive: q.Get("is_active"),
		Search:   q.Get("search"),
	}
}

func (s *Server) ActiveEquipment(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, resEquipment, func() (interface{}, error) {
		return services.ListActiveEquipment(r.Context(), s.DB, catalogFilter(r))
	})
}

func (s *Server) ListEquipment(w http.ResponseWriter, r *http.Request) {
	result, err := services.ListEquipment(r.Context(), s.DB, catalogFilter(r), pageFrom(r))
	s.respond(w, r, http.StatusOK, result, err)
}

func (s *Server) GetEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := services.GetEquipment(r.Context(), s.DB, id)
	s.respond(w, r, http.StatusOK, item, err)
}

func (s *Server) CreateEquipment(w http.ResponseWriter, r *http.Request) {
	var req services.EquipmentInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := services.CreateEquipment(r.Context(), s.DB, req)
	if err == nil {
		s.changed(r, "created", resEquipment, item.ID)
	}
	s.respond(w, r, http.StatusCreated, item, err)
}

func (s *Server) UpdateEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req services.EquipmentInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := services.UpdateEquipment(r.Context(), s.DB, id, req)
	if err == nil {
		s.changed(r, "updated", resEquipment, id)
	}
	s.respond(w, r, http.StatusOK, item, err)
}

func (s *Server) DeleteEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.DeleteEquipment(r.Context(), s.DB, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "deleted", resEquipment, id)
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Équipement supprimé"})
}

func (s *Server) ReorderEquipment(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.ReorderEquipment(r.Context(), s.DB, req.IDs); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "reordered", resEquipment, 0)
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Ordre mis à jour"})
}

func (s *Server) ActiveTeam(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, resTeam, func() (interface{}, error) {
		return services.ListActiveTeam(r.Context(), s.DB)
	})
}

func (s *Server) ListTeam(w http.ResponseWriter, r *http.Request) {
	result, err := services.ListTeam(r.Context(), s.DB, catalogFilter(r), pageFrom(r))
	s.respond(w, r, http.StatusOK, result, err)
}

func (s *Server) GetTeamMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	member, err := services.GetTeamMember(r.Context(), s.DB, id)
	s.respond(w, r, http.StatusOK, member, err)
}

func (s *Server) CreateTeamMember(w http.ResponseWriter, r *http.Request) {
	var req services.TeamInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	member, err := services.CreateTeamMember(r.Context(), s.DB, req)
	if err == nil {
		s.changed(r, "created", resTeam, member.ID)
	}
	s.respond(w, r, http.StatusCreated, member, err)
}

func (s *Server) UpdateTeamMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req services.TeamInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	member, err := services.UpdateTeamMember(r.Context(), s.DB, id, req)
	if err == nil {
		s.changed(r, "updated", resTeam, id)
	}
	s.respond(w, r, http.StatusOK, member, err)
}

func (s *Server) DeleteTeamMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.DeleteTeamMember(r.Context(), s.DB, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "deleted", resTeam, id)
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Membre supprimé"})
}

func (s *Server) ActivePPN(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, resPPN, func() (interface{}, error) {
		return services.ListActivePPN(r.Context(), s.DB, catalogFilter(r))
	})
}

func (s *Server) ListPPN(w http.ResponseWriter, r *http.Request) {
	result, err := services.ListPPN(r.Context(), s.DB, catalogFilter(r), pageFrom(r))
	s.respond(w, r, http.StatusOK, result, err)
}

func (s *Server) GetPPN(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	location, err := services.GetPPN(r.Context(), s.DB, id)
	s.respond(w, r, http.StatusOK, location, err)
}

func (s *Server) CreatePPN(w http.ResponseWriter, r *http.Request) {
	var req services.PPNInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	location, err := services.CreatePPN(r.Context(), s.DB, req)
	if err == nil {
		s.changed(r, "created", resPPN, location.ID)
	}
	s.respond(w, r, http.StatusCreated, location, err)
}

func (s *Server) UpdatePPN(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req services.PPNInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	location, err := services.UpdatePPN(r.Context(), s.DB, id, req)
	if err == nil {
		s.changed(r, "updated", resPPN, id)
	}
	s.respond(w, r, http.StatusOK, location, err)
}

func (s *Server) DeletePPN(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := services.DeletePPN(r.Context(), s.DB, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(r, "deleted", resPPN, id)
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Point PPN supprimé"})
}
