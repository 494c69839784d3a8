package ingest

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"nereus/pkg/api"
	"nereus/pkg/store"
	"nereus/pkg/util/context"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipOf(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newGateway(t *testing.T) (Gateway, store.Store) {
	s, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	return NewGateway(s), s
}

func jobDirs(t *testing.T, s store.Store) []string {
	ids, err := s.ListJobIDs(context.Background())
	require.NoError(t, err)
	return ids
}

func TestIngest(t *testing.T) {
	g, s := newGateway(t)
	data := zipOf(t, map[string]string{
		"photos/IMG_0001.JPG":  "a",
		"photos/IMG_0002.jpeg": "b",
		"photos/scan.TIF":      "c",
		"notes.txt":            "not an image",
	})

	res, err := g.Ingest(context.Background(), bytes.NewReader(data), "photos.ZIP")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ImageCount)
	for _, dir := range []string{res.Job.RootDir, res.Job.InputDir, res.Job.OutputDir} {
		assert.DirExists(t, dir)
	}
	assert.FileExists(t, filepath.Join(res.Job.RootDir, "upload.zip"))
	assert.FileExists(t, filepath.Join(res.Job.InputDir, "photos", "IMG_0001.JPG"))

	status, err := s.GetStatus(context.Background(), res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, api.StatusUnknown, status)
}

func TestIngestRejects(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     func(t *testing.T) []byte
		kind     api.ErrorKind
	}{
		{
			name:     "not an archive",
			filename: "photo.jpg",
			data:     func(t *testing.T) []byte { return []byte("jpeg") },
			kind:     api.KindValidation,
		},
		{
			name:     "no filename",
			filename: "",
			data:     func(t *testing.T) []byte { return zipOf(t, map[string]string{"a.png": "a"}) },
			kind:     api.KindValidation,
		},
		{
			name:     "empty",
			filename: "photos.zip",
			data:     func(t *testing.T) []byte { return nil },
			kind:     api.KindValidation,
		},
		{
			name:     "corrupt",
			filename: "photos.zip",
			data:     func(t *testing.T) []byte { return []byte("PK not really a zip") },
			kind:     api.KindBadArchive,
		},
		{
			name:     "no images",
			filename: "photos.zip",
			data:     func(t *testing.T) []byte { return zipOf(t, map[string]string{"readme.md": "hello", "dir/data.csv": "1,2"}) },
			kind:     api.KindNoUsableInput,
		},
		{
			name:     "zip slip",
			filename: "photos.zip",
			data:     func(t *testing.T) []byte { return zipOf(t, map[string]string{"../../evil.png": "x"}) },
			kind:     api.KindBadArchive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, s := newGateway(t)
			_, err := g.Ingest(context.Background(), bytes.NewReader(tt.data(t)), tt.filename)
			require.Error(t, err)
			assert.Equal(t, tt.kind, api.KindOf(err))

			// no job directory left behind
			assert.Empty(t, jobDirs(t, s))
			entries, err := os.ReadDir(s.WorkRoot())
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestIsImage(t *testing.T) {
	for _, name := range []string{"a.jpg", "a.JPEG", "b.png", "c.tiff", "d.TIF"} {
		assert.True(t, IsImage(name), name)
	}
	for _, name := range []string{"a.gif", "jpg", "a.jpg.txt", ".png.bak"} {
		assert.False(t, IsImage(name), name)
	}
}
