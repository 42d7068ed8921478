package httpapi

import (
	"io"
	"net/http"
)

// maxUploadBytes caps a single attachment.
const maxUploadBytes = 25 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.media == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "media storage not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", "form field file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}

	obj, err := s.media.Store(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "upload_failed", err.Error())
		return
	}
	s.log.Info().Str("file_id", obj.ID).Str("user_id", userID(r)).Int("size", len(data)).Msg("attachment stored")
	respondJSON(w, http.StatusCreated, obj)
}
