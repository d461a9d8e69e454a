package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"childgen/internal/uploads"
)

const (
	multipartMemory  = 32 << 20
	defaultMaxUpload = 10 << 20
)

type uploadResponse struct {
	FilePath  string `json:"filePath"`
	FileURL   string `json:"fileUrl,omitempty"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	ChildKey  string `json:"childKey"`
	ImageType string `json:"imageType"`
	Success   bool   `json:"success"`
	Status    string `json:"status"`
}

// UploadImage stores a parent image under the role given as imageType.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	a.upload(w, r, "", "Image uploaded successfully")
}

// UploadAgingImage stores an image under the fixed aging role.
func (a *App) UploadAgingImage(w http.ResponseWriter, r *http.Request) {
	a.upload(w, r, uploads.RoleAging, "Aging image uploaded successfully")
}

func (a *App) upload(w http.ResponseWriter, r *http.Request, fixedRole, message string) {
	if a.Uploads == nil {
		a.uploadError(w, http.StatusServiceUnavailable, "upload store not configured")
		return
	}
	limit := int64(defaultMaxUpload)
	if a.Config != nil && a.Config.UploadMaxBytes > 0 {
		limit = a.Config.UploadMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.uploadError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("image exceeds %d bytes", limit))
			return
		}
		a.uploadError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		a.uploadError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		a.uploadError(w, http.StatusBadRequest, "failed to read image")
		return
	}
	if len(data) == 0 {
		a.uploadError(w, http.StatusBadRequest, "image file is empty")
		return
	}

	role := fixedRole
	if role == "" {
		role = formOrQuery(r, "imageType")
	}
	key := uploads.NewKey(formOrQuery(r, "userId"), formOrQuery(r, "childKey"), role)
	relPath, err := key.Path()
	if err != nil {
		a.uploadError(w, http.StatusBadRequest, err.Error())
		return
	}

	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		a.Metrics.ObserveUpload(key.Role, "rejected")
		a.uploadError(w, http.StatusBadRequest, "uploaded file is not an image")
		return
	}

	img := uploads.Image{Data: data, MIMEType: mime, Filename: path.Base(header.Filename), StoredAt: a.now().UTC()}
	if err := a.Uploads.Put(r.Context(), key, img); err != nil {
		a.Metrics.ObserveUpload(key.Role, "error")
		a.log(r).Error().Err(err).Str("key", key.String()).Msg("upload: store image failed")
		a.uploadError(w, http.StatusInternalServerError, "failed to store image")
		return
	}
	a.Metrics.ObserveUpload(key.Role, "ok")
	a.log(r).Info().Str("key", key.String()).Int("bytes", len(data)).Str("mime", mime).Msg("upload: image stored")

	resp := uploadResponse{
		FilePath:  "uploads/" + relPath,
		Message:   message,
		UserID:    key.UserID,
		ChildKey:  key.ChildKey,
		ImageType: key.Role,
		Success:   true,
		Status:    "success",
	}
	if a.Config != nil && a.Config.PublicBaseURL != "" {
		resp.FileURL = a.Config.PublicBaseURL + "/" + resp.FilePath
	}
	a.json(w, http.StatusOK, resp)
}

// GetUpload serves stored image bytes.
func (a *App) GetUpload(w http.ResponseWriter, r *http.Request) {
	if a.Uploads == nil {
		a.error(w, http.StatusServiceUnavailable, "error", "upload store not configured")
		return
	}
	key := uploads.Key{
		UserID:   chi.URLParam(r, "userId"),
		ChildKey: chi.URLParam(r, "childKey"),
		Role:     strings.ToLower(chi.URLParam(r, "role")),
	}
	if _, err := key.Path(); err != nil {
		a.error(w, http.StatusBadRequest, "error", err.Error())
		return
	}
	img, err := a.Uploads.Get(r.Context(), key)
	if errors.Is(err, uploads.ErrNotFound) {
		a.error(w, http.StatusNotFound, "error", "image not found")
		return
	}
	if err != nil {
		a.log(r).Error().Err(err).Str("key", key.String()).Msg("upload: load image failed")
		a.error(w, http.StatusInternalServerError, "error", "failed to load image")
		return
	}
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

func (a *App) uploadError(w http.ResponseWriter, code int, message string) {
	failed := false
	a.json(w, code, errorResponse{Error: "Failed to upload image: " + message, Status: "error", Success: &failed})
}

func formOrQuery(r *http.Request, name string) string {
	if v := strings.TrimSpace(r.FormValue(name)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get(name))
}
