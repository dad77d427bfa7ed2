package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"share-drop/internal/files"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// userMessages are the texts shown for service errors.
var userMessages = map[error]string{
	files.ErrNoFile:          "No file part",
	files.ErrEmptyFilename:   "No selected file",
	files.ErrInvalidFilename: "Invalid filename",
	files.ErrNotFound:        "File not found",
	files.ErrBlobMissing:     "File not found on disk",
	files.ErrNoOwner:         "Cannot delete file: no owner information",
	files.ErrNotOwner:        "You do not have permission to delete this file",
}

// writeFileError maps a files.Service error onto a JSON response.
func (cfg Config) writeFileError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusRequestEntityTooLarge {
		cfg.writeTooLarge(w)
		return
	}

	for sentinel, msg := range userMessages {
		if errors.Is(err, sentinel) {
			writeError(w, status, msg)
			return
		}
	}

	cfg.Logger.Error("request failed",
		zap.String("rid", RequestIDFromContext(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))

	var ioErr *files.IOError
	if errors.As(err, &ioErr) {
		writeError(w, status, "Error "+ioErr.Op)
		return
	}
	writeError(w, status, "Internal server error")
}

// statusOf maps a files.Service error to an HTTP status.
func statusOf(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, files.ErrNoFile), errors.Is(err, files.ErrEmptyFilename), errors.Is(err, files.ErrInvalidFilename):
		return http.StatusBadRequest
	case errors.Is(err, files.ErrNoOwner), errors.Is(err, files.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, files.ErrNotFound), errors.Is(err, files.ErrBlobMissing):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (cfg Config) writeTooLarge(w http.ResponseWriter) {
	writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
		"error":    "File too large",
		"max_size": sizeLabel(cfg.MaxUploadBytes),
	})
}

// sizeLabel renders a byte limit compactly, e.g. "10GB".
func sizeLabel(n int64) string {
	s := humanize.IBytes(uint64(n))
	s = strings.Replace(s, "iB", "B", 1)
	s = strings.Replace(s, ".0 ", " ", 1)
	return strings.ReplaceAll(s, " ", "")
}
