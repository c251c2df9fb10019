package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"familyphotos/internal/service"
)

// multipartOverhead leaves room for form fields next to the file part
const multipartOverhead = 1 << 20

// AlbumHandler serves albums and photo uploads
type AlbumHandler struct {
	albums        *service.AlbumService
	photos        *service.PhotoService
	maxUploadSize int64
	logger        *zap.Logger
}

// NewAlbumHandler creates a new album handler
func NewAlbumHandler(albums *service.AlbumService, photos *service.PhotoService, maxUploadSize int64, logger *zap.Logger) *AlbumHandler {
	return &AlbumHandler{albums: albums, photos: photos, maxUploadSize: maxUploadSize, logger: logger}
}

// ListAlbums returns the caller's personal albums with cover URLs
func (h *AlbumHandler) ListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.albums.MyAlbums(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// CreateAlbum creates a personal album
func (h *AlbumHandler) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	var in service.AlbumInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidBody, "", err)
		return
	}
	album, err := h.albums.CreateAlbum(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, album)
}

// ListFamilyAlbums returns the albums of the caller's families with cover URLs
func (h *AlbumHandler) ListFamilyAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.albums.MyFamilyAlbums(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// CreateFamilyAlbum creates an album in one of the caller's families
func (h *AlbumHandler) CreateFamilyAlbum(w http.ResponseWriter, r *http.Request) {
	var in struct {
		service.AlbumInput
		FamilyID string `json:"familyId"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidBody, "", err)
		return
	}
	album, err := h.albums.CreateFamilyAlbum(r.Context(), in.FamilyID, in.AlbumInput)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, album)
}

// AlbumPhotos lists a personal album's photos with signed URLs
func (h *AlbumHandler) AlbumPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.photos.AlbumPhotos(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, photos)
}

// FamilyAlbumPhotos lists a family album's photos with signed URLs
func (h *AlbumHandler) FamilyAlbumPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.photos.FamilyAlbumPhotos(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, photos)
}

// UploadPhoto stores a multipart upload in a personal album
func (h *AlbumHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	photo, err := h.photos.UploadPhoto(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

// UploadFamilyPhoto stores a multipart upload in a family album
func (h *AlbumHandler) UploadFamilyPhoto(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	photo, err := h.photos.UploadFamilyPhoto(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

// readUpload parses the "file" part and the descriptive form fields
func (h *AlbumHandler) readUpload(w http.ResponseWriter, r *http.Request) (service.UploadInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, h.logger, http.StatusRequestEntityTooLarge, "File too large", "", err)
			return service.UploadInput{}, false
		}
		respondWithError(w, h.logger, http.StatusBadRequest, "Invalid upload", "", err)
		return service.UploadInput{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "is required", Field: "file"})
		return service.UploadInput{}, false
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		respondWithError(w, h.logger, http.StatusRequestEntityTooLarge, "File too large", "", nil)
		return service.UploadInput{}, false
	}
	data, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "Invalid upload", "", err)
		return service.UploadInput{}, false
	}

	var tags []string
	for _, value := range r.MultipartForm.Value["tags"] {
		for _, tag := range strings.Split(value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	return service.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		CaptureDate: r.FormValue("captureDate"),
		Location:    r.FormValue("location"),
		Tags:        tags,
	}, true
}
