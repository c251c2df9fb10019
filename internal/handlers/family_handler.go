package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"familyphotos/internal/service"
)

// ProfileHandler serves the caller's profile
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *zap.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles *service.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// Get returns the caller's profile, creating it on first view
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.Get(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Update changes the fields present in the body
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidBody, "", err)
		return
	}
	profile, err := h.profiles.Update(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// FamilyHandler serves family creation, joining and membership
type FamilyHandler struct {
	families *service.FamilyService
	logger   *zap.Logger
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(families *service.FamilyService, logger *zap.Logger) *FamilyHandler {
	return &FamilyHandler{families: families, logger: logger}
}

// List returns the caller's families
func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	families, err := h.families.UserFamilies(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, families)
}

// Create creates a family with the caller as admin
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidBody, "", err)
		return
	}
	created, err := h.families.CreateFamily(r.Context(), in.Name)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Join adds the caller to the family with the given code
func (h *FamilyHandler) Join(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FamilyCode string `json:"familyCode"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidBody, "", err)
		return
	}
	joined, err := h.families.JoinFamily(r.Context(), in.FamilyCode)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, joined)
}

// Members lists a family's members
func (h *FamilyHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.families.Members(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// Leave removes the caller's membership
func (h *FamilyHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.families.LeaveFamily(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invite emails the family code to an address
func (h *FamilyHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidBody, "", err)
		return
	}
	if err := h.families.Invite(r.Context(), chi.URLParam(r, "id"), in.Email); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
