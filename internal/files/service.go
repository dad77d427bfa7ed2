// Package files implements upload, download, delete and listing on top
// of the catalog and the blob directory.
//
// A record exists only while its blob does: a blob whose catalog insert
// fails is removed again, and a record whose blob has vanished is purged
// the next time it is looked up.
package files

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"share-drop/internal/catalog"
)

// Catalog is the subset of the record store the service needs.
type Catalog interface {
	Create(ctx context.Context, nr catalog.NewRecord) (int64, error)
	Get(ctx context.Context, id int64) (*catalog.Record, error)
	ListAll(ctx context.Context) ([]catalog.Record, error)
	Delete(ctx context.Context, id int64) error
}

// Blobs stores file contents.
type Blobs interface {
	Write(ctx context.Context, name string, r io.Reader) (path string, size int64, err error)
	Stat(path string) (size int64, exists bool, err error)
	Open(path string) (*os.File, error)
	Remove(path string) error
}

// Service ties catalog records to blobs.
type Service struct {
	catalog Catalog
	blobs   Blobs
	logger  *zap.Logger
	newName func() string
}

// New returns a Service.
func New(c Catalog, b Blobs, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: c, blobs: b, logger: logger, newName: uuid.NewString}
}

// Download is an opened blob ready to be served. The caller closes
// Content.
type Download struct {
	Content io.ReadSeekCloser
	Name    string
	Size    int64
	ModTime time.Time
}

// Entry is one row of the listing.
type Entry struct {
	ID           int64
	OriginalName string
	UploadTime   time.Time
	// SizeBytes is nil when neither the record nor the disk knows it.
	SizeBytes *int64
	CanDelete bool
}

// Upload stores content under a random name and records it as owned by
// ownerEmail. Either both the blob and the record exist afterwards or
// neither does.
func (s *Service) Upload(ctx context.Context, rawFilename string, content io.Reader, ownerEmail string) (int64, error) {
	if content == nil {
		return 0, ErrNoFile
	}
	if rawFilename == "" {
		return 0, ErrEmptyFilename
	}
	name := SanitizeFilename(rawFilename)
	if name == "" {
		return 0, ErrInvalidFilename
	}

	stored := s.newName() + storedExt(name)
	path, size, err := s.blobs.Write(ctx, stored, content)
	if err != nil {
		return 0, &IOError{Op: "saving file", Err: err}
	}

	var owner *string
	if ownerEmail != "" {
		owner = &ownerEmail
	}
	id, err := s.catalog.Create(ctx, catalog.NewRecord{
		StoredName:   stored,
		OriginalName: name,
		FilePath:     path,
		OwnerEmail:   owner,
		SizeBytes:    &size,
	})
	if err != nil {
		if rmErr := s.blobs.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Error("orphan blob left after failed insert",
				zap.String("path", path), zap.Error(rmErr))
		}
		return 0, &IOError{Op: "recording file", Err: err}
	}

	s.logger.Info("file uploaded",
		zap.Int64("id", id),
		zap.String("name", name),
		zap.String("stored_name", stored),
		zap.Int64("size", size),
		zap.String("owner", ownerEmail))
	return id, nil
}

// Download opens the blob of record id. A record whose blob is gone is
// purged and ErrBlobMissing returned.
func (s *Service) Download(ctx context.Context, id int64) (*Download, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	f, err := s.blobs.Open(rec.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.purge(ctx, rec, "download")
			return nil, ErrBlobMissing
		}
		return nil, &IOError{Op: "opening file", Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, &IOError{Op: "opening file", Err: err}
	}

	return &Download{
		Content: f,
		Name:    rec.OriginalName,
		Size:    info.Size(),
		ModTime: rec.UploadTime,
	}, nil
}

// Delete removes record id and its blob on behalf of requesterEmail, who
// must own it. The record is kept when the blob cannot be removed.
func (s *Service) Delete(ctx context.Context, id int64, requesterEmail string) error {
	rec, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !rec.HasOwner() {
		return ErrNoOwner
	}
	if requesterEmail == "" || !rec.OwnedBy(requesterEmail) {
		return ErrNotOwner
	}

	if err := s.blobs.Remove(rec.FilePath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return &IOError{Op: "deleting file", Err: err}
		}
		s.logger.Warn("blob already missing at delete", zap.Int64("id", id), zap.String("path", rec.FilePath))
	}

	if err := s.catalog.Delete(ctx, id); err != nil {
		// The blob is gone; the next lookup purges the stale row.
		s.logger.Error("record not deleted after blob removal", zap.Int64("id", id), zap.Error(err))
		return nil
	}

	s.logger.Info("file deleted", zap.Int64("id", id), zap.String("owner", requesterEmail))
	return nil
}

// ListVisible returns every record, newest first, flagged with whether
// callerEmail may delete it. An empty callerEmail is an anonymous caller.
func (s *Service) ListVisible(ctx context.Context, callerEmail string) ([]Entry, error) {
	recs, err := s.catalog.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		size := rec.SizeBytes
		if size == nil {
			n, ok, err := s.blobs.Stat(rec.FilePath)
			if err != nil {
				s.logger.Warn("stat blob", zap.Int64("id", rec.ID), zap.Error(err))
			} else if ok {
				size = &n
			}
		}
		out = append(out, Entry{
			ID:           rec.ID,
			OriginalName: rec.OriginalName,
			UploadTime:   rec.UploadTime,
			SizeBytes:    size,
			CanDelete:    callerEmail != "" && rec.OwnedBy(callerEmail),
		})
	}
	return out, nil
}

func (s *Service) get(ctx context.Context, id int64) (*catalog.Record, error) {
	rec, err := s.catalog.Get(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *Service) purge(ctx context.Context, rec *catalog.Record, during string) {
	if err := s.catalog.Delete(ctx, rec.ID); err != nil {
		s.logger.Error("purge stale record", zap.Int64("id", rec.ID), zap.String("during", during), zap.Error(err))
		return
	}
	s.logger.Warn("purged record whose blob is missing",
		zap.Int64("id", rec.ID), zap.String("path", rec.FilePath), zap.String("during", during))
}
