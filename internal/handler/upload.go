package handler

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/upload"
)

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	OK  bool   `json:"ok"`
	URL string `json:"url"`
}

// UploadHandler accepts image uploads and serves stored images.
type UploadHandler struct {
	store    *upload.Store
	files    fs.FS
	maxBytes int64
	logger   *slog.Logger
}

func NewUploadHandler(store *upload.Store, maxBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		store:    store,
		files:    os.DirFS(store.Dir()),
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// HandleUpload stores the multipart field "file".
//
// HTTP: POST /api/upload
//
// A part named "file" without a filename is parsed by net/http as a plain
// form value, which is how "No selected file" is told apart from a request
// with no file part at all.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			err = apperror.ValidationFailed("file", upload.MsgTooLarge)
		case errors.Is(err, http.ErrMissingFile) && r.MultipartForm != nil && len(r.MultipartForm.Value["file"]) > 0:
			err = apperror.ValidationFailed("file", upload.MsgNoFileChosen)
		default:
			err = apperror.ValidationFailed("file", upload.MsgNoFilePart)
		}
		writeError(w, h.logger, err)
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	url, err := h.store.Save(header.Filename, file)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{OK: true, URL: url})
}

// HandleServe returns a stored image.
//
// HTTP: GET /uploads/{filename}
//
// Files are read through an fs.FS rooted at the upload directory, which
// rejects "..", absolute paths and anything outside the root.
func (h *UploadHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if !fs.ValidPath(name) || name == "." || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}

	info, err := fs.Stat(h.files, name)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFileFS(w, r, h.files, name)
}
