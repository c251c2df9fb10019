package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"familyphotos/internal/service"
)

// PhotoHandler serves photo URLs, deletion, comments and likes. The same
// handler serves personal photos and, with family set, family photos.
type PhotoHandler struct {
	photos *service.PhotoService
	social *service.SocialService
	family bool
	logger *zap.Logger
}

// NewPhotoHandler creates the handler for personal photos
func NewPhotoHandler(photos *service.PhotoService, social *service.SocialService, logger *zap.Logger) *PhotoHandler {
	return &PhotoHandler{photos: photos, social: social, logger: logger}
}

// NewFamilyPhotoHandler creates the handler for family photos
func NewFamilyPhotoHandler(photos *service.PhotoService, social *service.SocialService, logger *zap.Logger) *PhotoHandler {
	return &PhotoHandler{photos: photos, social: social, family: true, logger: logger}
}

// Routes mounts the per-photo routes
func (h *PhotoHandler) Routes(r chi.Router) {
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/url", h.URL)
		r.Delete("/", h.Delete)
		r.Get("/comments", h.Comments)
		r.Post("/comments", h.AddComment)
		r.Get("/likes", h.Likes)
		r.Put("/likes", h.Like)
		r.Delete("/likes", h.Unlike)
	})
}

// URL returns fresh signed URLs for the photo and its thumbnail
func (h *PhotoHandler) URL(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var (
		urls *service.PhotoURLs
		err  error
	)
	if h.family {
		urls, err = h.photos.FamilyPhotoURL(r.Context(), id)
	} else {
		urls, err = h.photos.PhotoURL(r.Context(), id)
	}
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, urls)
}

// Delete removes the photo record and its objects
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var err error
	if h.family {
		err = h.photos.DeleteFamilyPhoto(r.Context(), id)
	} else {
		err = h.photos.DeletePhoto(r.Context(), id)
	}
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Comments lists the photo's comments
func (h *PhotoHandler) Comments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var (
		comments interface{}
		err      error
	)
	if h.family {
		comments, err = h.social.FamilyComments(r.Context(), id)
	} else {
		comments, err = h.social.Comments(r.Context(), id)
	}
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// AddComment comments on the photo as the caller
func (h *PhotoHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidBody, "", err)
		return
	}
	id := chi.URLParam(r, "id")
	var (
		comment interface{}
		err     error
	)
	if h.family {
		comment, err = h.social.AddFamilyComment(r.Context(), id, in.Content)
	} else {
		comment, err = h.social.AddComment(r.Context(), id, in.Content)
	}
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// Likes returns the like count and whether the caller likes the photo
func (h *PhotoHandler) Likes(w http.ResponseWriter, r *http.Request) {
	if h.family {
		h.likeSummary(w, r, h.social.FamilyPhotoLikes)
		return
	}
	h.likeSummary(w, r, h.social.Likes)
}

// Like marks the photo as liked by the caller
func (h *PhotoHandler) Like(w http.ResponseWriter, r *http.Request) {
	if h.family {
		h.likeSummary(w, r, h.social.LikeFamilyPhoto)
		return
	}
	h.likeSummary(w, r, h.social.Like)
}

// Unlike removes the caller's like
func (h *PhotoHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	if h.family {
		h.likeSummary(w, r, h.social.UnlikeFamilyPhoto)
		return
	}
	h.likeSummary(w, r, h.social.Unlike)
}

func (h *PhotoHandler) likeSummary(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, photoID string) (*service.LikeSummary, error)) {
	summary, err := op(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
