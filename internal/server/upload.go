package server

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"share-drop/internal/files"
)

// uploadHandler handles POST /upload. The multipart field "file" is
// streamed straight to disk without buffering the body. Requests larger
// than MaxUploadBytes fail with 413, before reading when Content-Length
// already says so.
func (cfg Config) uploadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := cfg.Auth.currentUser(r)
		status := http.StatusOK
		defer func() { cfg.Metrics.uploads.WithLabelValues(resultLabel(status)).Inc() }()

		if r.ContentLength > cfg.MaxUploadBytes {
			status = http.StatusRequestEntityTooLarge
			cfg.writeTooLarge(w)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)

		fail := func(err error) {
			status = statusOf(err)
			cfg.writeFileError(w, r, err)
		}

		mr, err := r.MultipartReader()
		if err != nil {
			fail(files.ErrNoFile)
			return
		}

		var part interface {
			io.Reader
			FileName() string
		}
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					fail(err)
					return
				}
				fail(files.ErrNoFile)
				return
			}
			if p.FormName() == "file" {
				part = p
				break
			}
		}
		if part == nil {
			fail(files.ErrNoFile)
			return
		}

		counted := &countingReader{r: part}
		id, err := cfg.Files.Upload(r.Context(), part.FileName(), counted, email)
		if err != nil {
			fail(err)
			return
		}

		cfg.Metrics.uploadBytes.Add(float64(counted.n))
		cfg.Logger.Debug("upload complete",
			zap.String("rid", RequestIDFromContext(r.Context())),
			zap.Int64("id", id),
			zap.Int64("bytes", counted.n))

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "File uploaded successfully",
			"file_id": id,
		})
	})
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
