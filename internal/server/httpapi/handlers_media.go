package httpapi

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
	"github.com/dmitrijs2005/journalkeeper/internal/server/services"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
)

// maxMultipartMemory bounds the in-memory part of a multipart parse; larger
// files spill to temp files.
const maxMultipartMemory = 32 << 20

type mediaRecordResponse struct {
	*models.MediaRecord
	URL string `json:"url"`
}

type progressResponse struct {
	Uploading bool                      `json:"uploading"`
	Files     []services.UploadProgress `json:"files"`
}

// handleUploadMedia accepts a multipart batch under the "files" field and
// attaches every completed upload to the entry from the URL.
func (s *Server) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	entryID := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, fmt.Errorf("%w: invalid multipart body", common.ErrorValidation))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, fmt.Errorf("%w: no files in request", common.ErrorValidation))
		return
	}

	files := make([]services.UploadFile, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()

	for _, hdr := range headers {
		contentType, err := s.partContentType(hdr)
		if err != nil {
			writeError(w, err)
			return
		}
		f, err := hdr.Open()
		if err != nil {
			writeError(w, common.ErrorInternal)
			return
		}
		opened = append(opened, f)
		files = append(files, services.UploadFile{
			Name:        hdr.Filename,
			ContentType: contentType,
			Size:        hdr.Size,
			Data:        f,
		})
	}

	uploader := s.sessions.Uploader(userID)
	records, err := uploader.UploadFiles(r.Context(), files, &entryID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]mediaRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, mediaRecordResponse{MediaRecord: rec, URL: uploader.MediaURL(rec.StoragePath)})
	}
	writeJSON(w, http.StatusCreated, out)
}

// partContentType uses the declared part header and falls back to content
// sniffing when the client sent none.
func (s *Server) partContentType(hdr *multipart.FileHeader) (string, error) {
	declared := hdr.Header.Get("Content-Type")
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	f, err := hdr.Open()
	if err != nil {
		return "", common.ErrorInternal
	}
	defer func() { _ = f.Close() }()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: cannot detect content type of %s", common.ErrorValidation, hdr.Filename)
	}
	return mt.String(), nil
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	entryID := chi.URLParam(r, "id")

	uploader := s.sessions.Uploader(userID)
	records, err := uploader.MediaByEntry(r.Context(), entryID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]mediaRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, mediaRecordResponse{MediaRecord: rec, URL: uploader.MediaURL(rec.StoragePath)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	ok, err := s.sessions.Uploader(userID).DeleteMedia(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, common.ErrorNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMediaProgress(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	uploader := s.sessions.Uploader(userID)

	files := uploader.Progress()
	if files == nil {
		files = []services.UploadProgress{}
	}
	writeJSON(w, http.StatusOK, progressResponse{
		Uploading: uploader.Uploading(),
		Files:     files,
	})
}
