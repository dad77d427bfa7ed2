package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDisk(t *testing.T) *Disk {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), "uploads", "nested"))
	require.NoError(t, err)
	return d
}

func TestNew_CreatesDirectory(t *testing.T) {
	d := newDisk(t)
	info, err := os.Stat(d.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, filepath.IsAbs(d.Dir()))

	_, err = New("")
	assert.Error(t, err)
}

func TestWrite_StatOpenRemove(t *testing.T) {
	d := newDisk(t)

	path, size, err := d.Write(context.Background(), "abc.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d.Dir(), "abc.txt"), path)
	assert.Equal(t, int64(5), size)

	n, ok, err := d.Stat(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)

	f, err := d.Open(path)
	require.NoError(t, err)
	b, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	require.NoError(t, d.Remove(path))
	_, ok, err = d.Stat(path)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, errors.Is(d.Remove(path), os.ErrNotExist))
}

func TestWrite_EmptyContent(t *testing.T) {
	d := newDisk(t)
	path, size, err := d.Write(context.Background(), "empty", strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, size)
	_, ok, _ := d.Stat(path)
	assert.True(t, ok)
}

func TestWrite_RejectsUnsafeNames(t *testing.T) {
	d := newDisk(t)
	for _, name := range []string{"", ".", "..", "../x", `a\b`, "a/b"} {
		_, _, err := d.Write(context.Background(), name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestWrite_DoesNotOverwrite(t *testing.T) {
	d := newDisk(t)
	path, _, err := d.Write(context.Background(), "dup", strings.NewReader("first"))
	require.NoError(t, err)

	_, _, err = d.Write(context.Background(), "dup", strings.NewReader("second"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrExist)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(b))
}

type failingReader struct{ n int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.n == 0 {
		f.n++
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection dropped")
}

func TestWrite_RemovesPartialFile(t *testing.T) {
	d := newDisk(t)
	_, _, err := d.Write(context.Background(), "partial.bin", &failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection dropped")

	_, ok, err := d.Stat(filepath.Join(d.Dir(), "partial.bin"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWrite_StopsOnCancelledContext(t *testing.T) {
	d := newDisk(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := d.Write(ctx, "late.bin", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
	entries, err := os.ReadDir(d.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStat_Directory(t *testing.T) {
	d := newDisk(t)
	_, ok, err := d.Stat(d.Dir())
	require.NoError(t, err)
	assert.False(t, ok)
}
