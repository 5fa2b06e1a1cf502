package httpapp

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/odyvault/internal/domain"
	"github.com/cesargomez89/odyvault/internal/http/dto"
)

type listResponse[T any] struct {
	Items      []T             `json:"items"`
	Pagination *dto.Pagination `json:"pagination"`
}

func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	page, size, errs := dto.ParsePage(r.URL.Query())
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	var (
		favs []*domain.Favorite
		err  error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		favs, err = h.Favorites.Search(r.Context(), q)
	} else {
		favs, err = h.Favorites.ListAll(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items, p := dto.Paginate(favs, page, size)
	writeJSON(w, http.StatusOK, listResponse[*domain.Favorite]{Items: items, Pagination: p})
}

func (h *Handler) GetFavorite(w http.ResponseWriter, r *http.Request) {
	f, err := h.Favorites.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && f == nil {
		err = domain.ErrNotFound
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) SaveFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.FavoriteRequest
	if errs := decodeJSON(w, r, &req); errs != nil {
		writeValidation(w, errs)
		return
	}
	if errs := req.Validate(id); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	f := req.ToDomain(id)
	if err := h.Favorites.Save(r.Context(), f); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Favorites.Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) ListProgress(w http.ResponseWriter, r *http.Request) {
	page, size, errs := dto.ParsePage(r.URL.Query())
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	all, err := h.Progress.ListAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	records, p := dto.Paginate(all, page, size)
	items := make([]dto.ProgressResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, dto.NewProgressResponse(rec))
	}
	writeJSON(w, http.StatusOK, listResponse[dto.ProgressResponse]{Items: items, Pagination: p})
}

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.Progress.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && p == nil {
		err = domain.ErrNotFound
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewProgressResponse(p))
}

func (h *Handler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.ProgressRequest
	if errs := decodeJSON(w, r, &req); errs != nil {
		writeValidation(w, errs)
		return
	}
	if errs := req.Validate(id); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	p := req.ToDomain(id)
	if err := h.Progress.Save(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewProgressResponse(p))
}

func (h *Handler) RemoveProgress(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Progress.Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Settings.ListAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settings.Get(r.Context(), chi.URLParam(r, "key"))
	if err == nil && s == nil {
		err = domain.ErrNotFound
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) SaveSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req dto.SettingRequest
	if errs := decodeJSON(w, r, &req); errs != nil {
		writeValidation(w, errs)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	if err := h.Settings.Save(r.Context(), key, *req.Value); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.GetSetting(w, r)
}

func (h *Handler) RemoveSetting(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Settings.Remove(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}
