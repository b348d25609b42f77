package modelasset

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDownloads(t *testing.T) {
	t.Parallel()

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("model-bytes"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "models", "face_landmarker.task")
	require.NoError(t, Ensure(path, srv.URL))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "model-bytes", string(data))
	assert.Equal(t, 1, hits)

	// Second call finds the file and skips the network.
	require.NoError(t, Ensure(path, srv.URL))
	assert.Equal(t, 1, hits)
}

func TestEnsureBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "face_landmarker.task")
	err := Ensure(path, srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "failed download must not leave a file")
}
