package httpapi

import (
	"errors"
	"net/http"

	"fablab-backend-go/internal/services"
)

const multipartOverhead = 1 << 20

func (s *Server) UploadMedia(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.Media.MaxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusBadRequest, "Le fichier est trop volumineux")
			return
		}
		WriteError(w, http.StatusBadRequest, "Aucun fichier fourni")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Aucun fichier fourni")
		return
	}
	defer file.Close()
	uploader := user.ID
	media, err := s.Media.Save(r.Context(), s.DB, services.MediaUpload{
		OriginalName: header.Filename,
		Alt:          r.FormValue("alt"),
		UploadedBy:   &uploader,
		Body:         file,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logFrom(r, s.Log).Info().Int64("media_id", media.ID).Str("mime", media.MimeType).Msg("media uploaded")
	WriteJSON(w, http.StatusCreated, media)
}

func (s *Server) ListMedia(w http.ResponseWriter, r *http.Request) {
	filter := services.MediaFilter{
		Type:   r.URL.Query().Get("type"),
		Search: r.URL.Query().Get("search"),
	}
	result, err := s.Media.List(r.Context(), s.DB, filter, pageFrom(r))
	s.respond(w, r, http.StatusOK, result, err)
}

func (s *Server) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Media.Delete(r.Context(), s.DB, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Fichier supprimé"})
}
