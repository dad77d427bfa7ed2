package server

import (
	"net/http"

	"share-drop/internal/files"
)

// deleteHandler handles POST /delete/{id}. Only the uploader may delete
// a file; files without owner information cannot be deleted at all.
func (cfg Config) deleteHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			cfg.Metrics.deletes.WithLabelValues(resultLabel(http.StatusNotFound)).Inc()
			cfg.writeFileError(w, r, files.ErrNotFound)
			return
		}

		if err := cfg.Files.Delete(r.Context(), id, cfg.Auth.currentUser(r)); err != nil {
			cfg.Metrics.deletes.WithLabelValues(resultLabel(statusOf(err))).Inc()
			cfg.writeFileError(w, r, err)
			return
		}

		cfg.Metrics.deletes.WithLabelValues("ok").Inc()
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "File deleted successfully",
		})
	})
}
