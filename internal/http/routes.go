package httpapp

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/odyvault/internal/domain"
	"github.com/cesargomez89/odyvault/internal/http/dto"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.DB.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListContent(w http.ResponseWriter, r *http.Request) {
	q, errs := dto.ParseContentQuery(r.URL.Query())
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	var (
		items []domain.RemoteItem
		err   error
	)
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		items, err = h.Content.Refresh(r.Context(), q)
	} else {
		items, err = h.Content.Fetch(r.Context(), q)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewContentListResponse(items, q))
}

func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	item, err := h.Content.Item(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewContentResponse(*item))
}

func (h *Handler) InvalidateContent(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Cache.InvalidateOne(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) InvalidateTag(w http.ResponseWriter, r *http.Request) {
	n, err := h.Content.Invalidate(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *Handler) SweepCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.Cache.SweepExpired(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Diagnostics.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) DatabaseInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.Diagnostics.DatabaseInfo(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) RunMaintenance(w http.ResponseWriter, r *http.Request) {
	report, err := h.Diagnostics.RunMaintenance(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	for _, step := range report.Failed() {
		h.Logger.Warn("Maintenance step failed", "step", step.Name, "error", step.Err)
	}
	writeJSON(w, http.StatusOK, report)
}
