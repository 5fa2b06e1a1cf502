package httpapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/odyvault/internal/domain"
	"github.com/cesargomez89/odyvault/internal/http/dto"
)

func (h *Handler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.Playlists.ListAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (h *Handler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaylistRequest
	if errs := decodeJSON(w, r, &req); errs != nil {
		writeValidation(w, errs)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	p := req.ToDomain("")
	if err := h.Playlists.Save(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	h.writePlaylist(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) SavePlaylist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.PlaylistRequest
	if errs := decodeJSON(w, r, &req); errs != nil {
		writeValidation(w, errs)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	if err := h.Playlists.Save(r.Context(), req.ToDomain(id)); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writePlaylist(w, r, id)
}

func (h *Handler) RemovePlaylist(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Playlists.Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) AddPlaylistItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.PlaylistItemRequest
	if errs := decodeJSON(w, r, &req); errs != nil {
		writeValidation(w, errs)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	if err := h.Playlists.AddItem(r.Context(), id, req.ClaimID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writePlaylist(w, r, id)
}

func (h *Handler) RemovePlaylistItem(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Playlists.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "claimID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) MovePlaylistItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.PositionRequest
	if errs := decodeJSON(w, r, &req); errs != nil {
		writeValidation(w, errs)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	if err := h.Playlists.MoveItem(r.Context(), id, chi.URLParam(r, "claimID"), *req.Position); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writePlaylist(w, r, id)
}

func (h *Handler) writePlaylist(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.Playlists.Get(r.Context(), id)
	if err == nil && p == nil {
		err = domain.ErrNotFound
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
