package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cesargomez89/odyvault/internal/catalog"
	"github.com/cesargomez89/odyvault/internal/constants"
	"github.com/cesargomez89/odyvault/internal/domain"
	"github.com/cesargomez89/odyvault/internal/http/dto"
	"github.com/cesargomez89/odyvault/internal/logger"
	"github.com/cesargomez89/odyvault/internal/store"
)

type Handler struct {
	DB          *store.DB
	Content     *catalog.CachedFetcher
	Cache       *store.CacheStore
	Favorites   *store.FavoriteStore
	Progress    *store.ProgressStore
	Playlists   *store.PlaylistStore
	Settings    *store.SettingsStore
	Diagnostics *store.Diagnostics
	Logger      *logger.Logger
}

// NewHandler wires every store built on db.
func NewHandler(db *store.DB, content *catalog.CachedFetcher, cache *store.CacheStore, diag *store.Diagnostics, log *logger.Logger) *Handler {
	return &Handler{
		DB:          db,
		Content:     content,
		Cache:       cache,
		Favorites:   store.NewFavoriteStore(db),
		Progress:    store.NewProgressStore(db),
		Playlists:   store.NewPlaylistStore(db),
		Settings:    store.NewSettingsStore(db),
		Diagnostics: diag,
		Logger:      log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(requestID)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Get("/content", h.ListContent)
		r.Get("/content/{id}", h.GetContent)
		r.Delete("/content/{id}", h.InvalidateContent)
		r.Delete("/cache/tags/{tag}", h.InvalidateTag)
		r.Post("/cache/sweep", h.SweepCache)

		r.Get("/favorites", h.ListFavorites)
		r.Get("/favorites/{id}", h.GetFavorite)
		r.Put("/favorites/{id}", h.SaveFavorite)
		r.Delete("/favorites/{id}", h.RemoveFavorite)

		r.Get("/progress", h.ListProgress)
		r.Get("/progress/{id}", h.GetProgress)
		r.Put("/progress/{id}", h.SaveProgress)
		r.Delete("/progress/{id}", h.RemoveProgress)

		r.Get("/playlists", h.ListPlaylists)
		r.Post("/playlists", h.CreatePlaylist)
		r.Get("/playlists/{id}", h.GetPlaylist)
		r.Put("/playlists/{id}", h.SavePlaylist)
		r.Delete("/playlists/{id}", h.RemovePlaylist)
		r.Post("/playlists/{id}/items", h.AddPlaylistItem)
		r.Delete("/playlists/{id}/items/{claimID}", h.RemovePlaylistItem)
		r.Put("/playlists/{id}/items/{claimID}/position", h.MovePlaylistItem)

		r.Get("/settings", h.ListSettings)
		r.Get("/settings/{key}", h.GetSetting)
		r.Put("/settings/{key}", h.SaveSetting)
		r.Delete("/settings/{key}", h.RemoveSetting)

		r.Get("/diagnostics/stats", h.CacheStats)
		r.Get("/diagnostics/database", h.DatabaseInfo)
		r.Post("/diagnostics/maintenance", h.RunMaintenance)
	})
}

const requestIDHeader = "X-Request-ID"

type ctxKey struct{}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", constants.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeValidation(w http.ResponseWriter, errs []dto.ValidationError) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: dto.ToResponse(errs), Fields: dto.ToMap(errs)})
}

// writeError maps a store or fetch failure onto a status code. Nothing here
// panics; unexpected failures are logged and reported as 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errs, ok := dto.FromDomain(err); ok {
		writeValidation(w, errs)
		return
	}

	var fetchErr *catalog.FetchError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: h.message(r, msgNotFound)})
	case errors.Is(err, store.ErrAcquireTimeout), errors.Is(err, store.ErrNotReady):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: h.message(r, msgBusy)})
	case errors.As(err, &fetchErr):
		h.Logger.Warn("Content fetch failed", "request_id", requestIDFrom(r.Context()), "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: h.message(r, msgUpstream)})
	default:
		h.Logger.Error("Request failed", "request_id", requestIDFrom(r.Context()), "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: h.message(r, msgStorage)})
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) []dto.ValidationError {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return []dto.ValidationError{{Field: "body", Message: "invalid JSON: " + err.Error()}}
	}
	return nil
}
