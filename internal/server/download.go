package server

import (
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"share-drop/internal/files"
)

// downloadHandler handles GET /download/{id}. It is public: anyone with
// the id can fetch the file. The original filename is offered as an
// attachment.
func (cfg Config) downloadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			cfg.Metrics.downloads.WithLabelValues(resultLabel(http.StatusNotFound)).Inc()
			cfg.writeFileError(w, r, files.ErrNotFound)
			return
		}

		d, err := cfg.Files.Download(r.Context(), id)
		if err != nil {
			cfg.Metrics.downloads.WithLabelValues(resultLabel(statusOf(err))).Inc()
			cfg.writeFileError(w, r, err)
			return
		}
		defer func() { _ = d.Content.Close() }()

		ctype := mime.TypeByExtension(filepath.Ext(d.Name))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Content-Disposition", attachmentDisposition(d.Name))

		cfg.Metrics.downloads.WithLabelValues("ok").Inc()
		http.ServeContent(w, r, d.Name, d.ModTime, d.Content)
	})
}

// attachmentDisposition builds an RFC 6266 header value, switching to
// the RFC 2231 encoded form for non-ASCII names.
func attachmentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
