package httpapp

import (
	"context"
	"net/http"
	"time"

	"github.com/cesargomez89/odyvault/internal/constants"
)

const (
	msgNotFound = "not_found"
	msgBusy     = "busy"
	msgUpstream = "upstream"
	msgStorage  = "storage"
)

const defaultLanguage = "en"

var messages = map[string]map[string]string{
	"en": {
		msgNotFound: "Not found",
		msgBusy:     "The library is busy, please try again",
		msgUpstream: "Content provider is unavailable",
		msgStorage:  "Could not access the local library",
	},
	"es": {
		msgNotFound: "No encontrado",
		msgBusy:     "La biblioteca está ocupada, inténtalo de nuevo",
		msgUpstream: "El proveedor de contenido no está disponible",
		msgStorage:  "No se pudo acceder a la biblioteca local",
	},
	"de": {
		msgNotFound: "Nicht gefunden",
		msgBusy:     "Die Bibliothek ist beschäftigt, bitte erneut versuchen",
		msgUpstream: "Der Inhaltsanbieter ist nicht erreichbar",
		msgStorage:  "Auf die lokale Bibliothek konnte nicht zugegriffen werden",
	},
}

const languageLookupTimeout = 100 * time.Millisecond

// message returns key in the user's configured language, falling back to
// English when the setting cannot be read.
func (h *Handler) message(r *http.Request, key string) string {
	lang := defaultLanguage
	if h.Settings != nil {
		ctx, cancel := context.WithTimeout(r.Context(), languageLookupTimeout)
		if v, err := h.Settings.String(ctx, constants.SettingLanguage); err == nil && v != "" {
			lang = v
		}
		cancel()
	}
	if msg, ok := messages[lang][key]; ok {
		return msg
	}
	return messages[defaultLanguage][key]
}
