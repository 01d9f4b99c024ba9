// ABOUTME: Admin document console endpoints: upload, list and delete knowledge-base PDFs
// ABOUTME: Uploads are sniffed with mimetype; indexing is simulated by estimating chunk counts

package mockapi

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/uvci/campus-assistant/internal/api"
	"github.com/uvci/campus-assistant/internal/auth"
	"github.com/uvci/campus-assistant/internal/store"
)

const (
	msgPDFOnly          = "Seuls les fichiers PDF sont acceptés"
	msgUploaded         = "Document uploadé et indexé avec succès"
	msgDocumentNotFound = "Document introuvable ou erreur suppression"
	msgDocumentDeleted  = "Document supprimé avec succès"
)

// Indexing splits text into overlapping windows of this many bytes
const (
	chunkSize    = 1000
	chunkOverlap = 200
)

// estimateChunks returns how many overlapping chunks a document of size
// bytes produces.
func estimateChunks(size int64) int {
	if size <= 0 {
		return 0
	}
	if size <= chunkSize {
		return 1
	}
	step := int64(chunkSize - chunkOverlap)
	return 1 + int((size-chunkSize+step-1)/step)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Fichier trop volumineux")
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []validationIssue{{Loc: []string{"body", "file"}, Msg: "Field required", Type: "missing"}},
		})
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		writeError(w, http.StatusBadRequest, msgPDFOnly)
		return
	}

	mt, err := mimetype.DetectReader(file)
	if err != nil {
		s.logger.Error("sniffing upload", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	if !mt.Is("application/pdf") {
		s.logger.Info("rejecting upload with wrong content", "filename", filename, "mime", mt.String())
		writeError(w, http.StatusBadRequest, msgPDFOnly)
		return
	}

	size := header.Size
	user := auth.MustUserFromContext(r.Context())
	doc := &store.Document{
		ID:         uuid.New().String(),
		Filename:   filename,
		SizeBytes:  size,
		ChunkCount: estimateChunks(size),
		UploadedBy: user.ID,
		UploadedAt: s.now(),
	}
	if err := s.store.CreateDocument(r.Context(), doc); err != nil {
		s.logger.Error("recording document", "error", err)
		writeError(w, http.StatusInternalServerError, "Erreur upload: "+err.Error())
		return
	}

	s.logger.Info("document indexed", "document_id", doc.ID, "filename", doc.Filename, "chunks", doc.ChunkCount)
	writeJSON(w, http.StatusOK, api.UploadResult{
		Message:    msgUploaded,
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		ChunkCount: doc.ChunkCount,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		s.logger.Error("listing documents", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(docs, func(d *store.Document, _ int) api.Document {
		return api.Document{
			ID:         d.ID,
			Filename:   d.Filename,
			ChunkCount: d.ChunkCount,
			UploadedAt: d.UploadedAt,
		}
	}))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteDocument(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgDocumentNotFound)
		return
	}
	if err != nil {
		s.logger.Error("deleting document", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeMessage(w, msgDocumentDeleted)
}
