package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"share-drop/internal/files"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// indexRow is one file as displayed on the index page.
type indexRow struct {
	ID        int64
	Name      string
	Uploaded  string
	Size      string
	CanDelete bool
}

type indexPage struct {
	Base    string
	User    string
	Error   string
	MaxSize string
	Files   []indexRow
}

// indexHandler renders the file list. Anonymous visitors see the list
// read-only together with the login form.
func (cfg Config) indexHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg.renderIndex(w, r, cfg.Auth.currentUser(r), http.StatusOK, "")
	})
}

func (cfg Config) renderIndex(w http.ResponseWriter, r *http.Request, user string, status int, errMsg string) {
	page := indexPage{
		Base:    basePath(r),
		User:    user,
		Error:   errMsg,
		MaxSize: sizeLabel(cfg.MaxUploadBytes),
	}

	entries, err := cfg.Files.ListVisible(r.Context(), user)
	if err != nil {
		cfg.Logger.Error("list files",
			zap.String("rid", RequestIDFromContext(r.Context())),
			zap.Error(err))
		status = http.StatusInternalServerError
		page.Error = "Could not load the file list"
	}
	page.Files = indexRows(entries)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := indexTmpl.Execute(w, page); err != nil {
		cfg.Logger.Error("render index", zap.Error(err))
	}
}

func indexRows(entries []files.Entry) []indexRow {
	rows := make([]indexRow, 0, len(entries))
	for _, e := range entries {
		size := "unknown"
		if e.SizeBytes != nil {
			size = humanize.IBytes(uint64(*e.SizeBytes))
		}
		rows = append(rows, indexRow{
			ID:        e.ID,
			Name:      e.OriginalName,
			Uploaded:  e.UploadTime.Local().Format("2006-01-02 15:04:05"),
			Size:      size,
			CanDelete: e.CanDelete,
		})
	}
	return rows
}
