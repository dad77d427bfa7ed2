package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"share-drop/internal/catalog"
	"share-drop/internal/storage"
)

type fixture struct {
	svc  *Service
	cat  *catalog.Store
	disk *storage.Disk
	logs *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cat, err := catalog.Open(context.Background(), catalog.Options{SQLitePath: filepath.Join(dir, "files.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	disk, err := storage.New(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	f := &fixture{cat: cat, disk: disk, logs: logs}
	f.svc = New(cat, disk, zap.New(core))
	return f
}

func (f *fixture) upload(t *testing.T, name, content, owner string) int64 {
	t.Helper()
	id, err := f.svc.Upload(context.Background(), name, strings.NewReader(content), owner)
	require.NoError(t, err)
	return id
}

func TestUpload_StoresBlobAndRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := "slide deck bytes"

	id := f.upload(t, "report.pptx", content, "a@x.com")

	rec, err := f.cat.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "report.pptx", rec.OriginalName)
	assert.True(t, strings.HasSuffix(rec.StoredName, ".pptx"))
	assert.NotEqual(t, "report.pptx", rec.StoredName)
	assert.Equal(t, filepath.Join(f.disk.Dir(), rec.StoredName), rec.FilePath)
	require.NotNil(t, rec.SizeBytes)
	assert.Equal(t, int64(len(content)), *rec.SizeBytes)
	assert.True(t, rec.OwnedBy("a@x.com"))

	onDisk, err := os.ReadFile(rec.FilePath)
	require.NoError(t, err)
	assert.Equal(t, content, string(onDisk))
}

func TestUpload_SameNameTwiceGetsDistinctBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id1 := f.upload(t, "a.txt", "one", "a@x.com")
	id2 := f.upload(t, "a.txt", "two", "a@x.com")
	assert.Greater(t, id2, id1)

	r1, err := f.cat.Get(ctx, id1)
	require.NoError(t, err)
	r2, err := f.cat.Get(ctx, id2)
	require.NoError(t, err)
	assert.NotEqual(t, r1.FilePath, r2.FilePath)
}

func TestUpload_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, "a.txt", nil, "a@x.com")
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = f.svc.Upload(ctx, "", strings.NewReader("x"), "a@x.com")
	assert.ErrorIs(t, err, ErrEmptyFilename)

	_, err = f.svc.Upload(ctx, "../..", strings.NewReader("x"), "a@x.com")
	assert.ErrorIs(t, err, ErrInvalidFilename)

	entries, err := os.ReadDir(f.disk.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpload_WriteFailureIsIOError(t *testing.T) {
	f := newFixture(t)
	f.svc.newName = func() string { return "fixed" }
	f.upload(t, "a.txt", "first", "a@x.com")

	_, err := f.svc.Upload(context.Background(), "b.txt", strings.NewReader("second"), "a@x.com")
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "saving file", ioErr.Op)
	assert.ErrorIs(t, err, os.ErrExist)

	list, err := f.cat.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// failingCatalog rejects every insert.
type failingCatalog struct {
	Catalog
}

func (failingCatalog) Create(context.Context, catalog.NewRecord) (int64, error) {
	return 0, errors.New("disk I/O error")
}

func TestUpload_InsertFailureRemovesBlob(t *testing.T) {
	f := newFixture(t)
	svc := New(failingCatalog{Catalog: f.cat}, f.disk, zap.NewNop())

	_, err := svc.Upload(context.Background(), "a.txt", strings.NewReader("data"), "a@x.com")
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "recording file", ioErr.Op)

	entries, err := os.ReadDir(f.disk.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "no orphan blob may remain")
}

func TestDownload_RoundTrip(t *testing.T) {
	f := newFixture(t)
	content := bytes.Repeat([]byte{0, 1, 2, 3}, 1024)
	id, err := f.svc.Upload(context.Background(), "report.pptx", bytes.NewReader(content), "a@x.com")
	require.NoError(t, err)

	d, err := f.svc.Download(context.Background(), id)
	require.NoError(t, err)
	defer d.Content.Close()

	assert.Equal(t, "report.pptx", d.Name)
	assert.Equal(t, int64(len(content)), d.Size)
	assert.False(t, d.ModTime.IsZero())
	got, err := io.ReadAll(d.Content)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDownload_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Download(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDownload_MissingBlobPurgesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.upload(t, "a.txt", "data", "a@x.com")

	rec, err := f.cat.Get(ctx, id)
	require.NoError(t, err)
	require.NoError(t, os.Remove(rec.FilePath))

	_, err = f.svc.Download(ctx, id)
	assert.ErrorIs(t, err, ErrBlobMissing)

	_, err = f.cat.Get(ctx, id)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Equal(t, 1, f.logs.FilterMessage("purged record whose blob is missing").Len())
}

func TestDelete_Owner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.upload(t, "a.txt", "data", "a@x.com")
	rec, err := f.cat.Get(ctx, id)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, id, "a@x.com"))

	_, err = f.cat.Get(ctx, id)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	_, ok, err := f.disk.Stat(rec.FilePath)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, f.svc.Delete(ctx, id, "a@x.com"), ErrNotFound)
}

func TestDelete_Forbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.upload(t, "a.txt", "data", "a@x.com")

	assert.ErrorIs(t, f.svc.Delete(ctx, id, "b@x.com"), ErrNotOwner)
	assert.ErrorIs(t, f.svc.Delete(ctx, id, ""), ErrNotOwner)

	rec, err := f.cat.Get(ctx, id)
	require.NoError(t, err)
	_, ok, err := f.disk.Stat(rec.FilePath)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDelete_NoOwnerIsNeverDeletable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path, _, err := f.disk.Write(ctx, "legacy.bin", strings.NewReader("old"))
	require.NoError(t, err)
	id, err := f.cat.Create(ctx, catalog.NewRecord{StoredName: "legacy.bin", OriginalName: "legacy.bin", FilePath: path})
	require.NoError(t, err)

	for _, who := range []string{"a@x.com", "b@x.com", ""} {
		assert.ErrorIs(t, f.svc.Delete(ctx, id, who), ErrNoOwner, who)
	}
	_, err = f.cat.Get(ctx, id)
	assert.NoError(t, err)
}

func TestDelete_MissingBlobStillRemovesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.upload(t, "a.txt", "data", "a@x.com")
	rec, err := f.cat.Get(ctx, id)
	require.NoError(t, err)
	require.NoError(t, os.Remove(rec.FilePath))

	require.NoError(t, f.svc.Delete(ctx, id, "a@x.com"))
	_, err = f.cat.Get(ctx, id)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

// stuckBlobs cannot remove anything.
type stuckBlobs struct {
	Blobs
}

func (stuckBlobs) Remove(string) error {
	return &os.PathError{Op: "remove", Path: "x", Err: os.ErrPermission}
}

func TestDelete_BlobRemovalFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.upload(t, "a.txt", "data", "a@x.com")

	svc := New(f.cat, stuckBlobs{Blobs: f.disk}, zap.NewNop())
	err := svc.Delete(ctx, id, "a@x.com")
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "deleting file", ioErr.Op)

	_, err = f.cat.Get(ctx, id)
	assert.NoError(t, err)
}

// stickyCatalog refuses to delete records.
type stickyCatalog struct {
	Catalog
}

func (stickyCatalog) Delete(context.Context, int64) error {
	return errors.New("database is locked")
}

func TestDelete_RecordFailureAfterBlobRemovalIsLogged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.upload(t, "a.txt", "data", "a@x.com")

	core, logs := observer.New(zap.WarnLevel)
	svc := New(stickyCatalog{Catalog: f.cat}, f.disk, zap.New(core))
	require.NoError(t, svc.Delete(ctx, id, "a@x.com"))
	assert.Equal(t, 1, logs.FilterMessage("record not deleted after blob removal").Len())

	// The stale row heals on the next download.
	_, err := f.svc.Download(ctx, id)
	assert.ErrorIs(t, err, ErrBlobMissing)
	_, err = f.cat.Get(ctx, id)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestListVisible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := f.upload(t, "mine.txt", "12345", "a@x.com")
	theirs := f.upload(t, "theirs.txt", "1", "b@x.com")

	path, _, err := f.disk.Write(ctx, "legacy.bin", strings.NewReader("legacy!"))
	require.NoError(t, err)
	legacy, err := f.cat.Create(ctx, catalog.NewRecord{StoredName: "legacy.bin", OriginalName: "legacy.bin", FilePath: path, SizeBytes: nil})
	require.NoError(t, err)
	_, err = f.cat.Create(ctx, catalog.NewRecord{StoredName: "gone", OriginalName: "gone.bin", FilePath: filepath.Join(f.disk.Dir(), "gone")})
	require.NoError(t, err)

	list, err := f.svc.ListVisible(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, list, 4)

	byID := map[int64]Entry{}
	for _, e := range list {
		byID[e.ID] = e
	}
	assert.True(t, byID[mine].CanDelete)
	assert.False(t, byID[theirs].CanDelete)
	assert.False(t, byID[legacy].CanDelete)
	assert.Equal(t, int64(5), *byID[mine].SizeBytes)
	assert.Equal(t, int64(7), *byID[legacy].SizeBytes)
	assert.Nil(t, list[0].SizeBytes, "newest row has no blob and no recorded size")

	anon, err := f.svc.ListVisible(ctx, "")
	require.NoError(t, err)
	require.Len(t, anon, 4)
	for _, e := range anon {
		assert.False(t, e.CanDelete)
	}
}
