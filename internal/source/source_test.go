package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestOpen_LocalAndFileURL(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(p, []byte("a,b\n1,2\n"), 0o600))

	rc, err := Open(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", readAll(t, rc))

	rc, err = Open(context.Background(), "file://"+p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", readAll(t, rc))

	_, err = Open(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_Stdin(t *testing.T) {
	t.Parallel()

	rc, err := Open(context.Background(), "-", Options{Stdin: strings.NewReader("x;y\n")})
	require.NoError(t, err)
	assert.Equal(t, "x;y\n", readAll(t, rc))
}

func TestOpen_Empty(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "  ", Options{})
	assert.Error(t, err)
}

func TestOpen_HTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "csvsniff/1.0", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/data.csv":
			_, _ = io.WriteString(w, "id,name\n1,a\n")
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	rc, err := Open(context.Background(), srv.URL+"/data.csv", Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,a\n", readAll(t, rc))

	_, err = Open(context.Background(), srv.URL+"/missing.csv", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http status 404")
	assert.Contains(t, err.Error(), "nope")
}

func TestOpen_HTTPTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	_, err := Open(context.Background(), srv.URL, Options{Timeout: 50 * time.Millisecond})
	assert.Error(t, err)
}

func TestName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"-":                                 "stdin",
		"data/people.csv":                   "people",
		"file:///tmp/sales.2024.tsv":        "sales.2024",
		"https://example.com/exports/x.csv": "x",
		"https://example.com/":              "example.com",
		"noext":                             "noext",
		".hidden":                           ".hidden",
	}
	for in, want := range tests {
		assert.Equal(t, want, Name(in), in)
	}
}
