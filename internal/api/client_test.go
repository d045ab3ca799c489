package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/navscore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000/", "secret123")

	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, "secret123", c.apiKey)
	require.NotNil(t, c.httpClient)
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)
}

func TestNew_WithHTTPClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	c := New("http://localhost:5000", "", WithHTTPClient(hc))
	assert.Same(t, hc, c.httpClient)
}

func TestHealthcheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, healthPath, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.NoError(t, New(server.URL, "").Healthcheck())
}

func TestHealthcheck_ServerDown(t *testing.T) {
	assert.Error(t, New("http://127.0.0.1:1", "").Healthcheck())
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := New(server.URL, "").Healthcheck()
	assert.EqualError(t, err, "healthcheck returned status 503: maintenance")
}

func TestHealthcheck_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, New(server.URL, "").HealthcheckContext(ctx), context.Canceled)
}

func writeExport(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestUpload(t *testing.T) {
	fields := map[string]string{}
	var fileContent []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, uploadPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.NoError(t, r.ParseMultipartForm(10<<20)) {
			return
		}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		fileContent, _ = io.ReadAll(f)
	}))
	defer server.Close()

	path := writeExport(t, "harbour_20260501_120000.json.gz", "test content")
	err := New(server.URL, "mysecret").Upload(path, core.UploadMetadata{
		CourseName:  "harbour",
		Vehicle:     "wamv",
		RunID:       "r1",
		RunDuration: 3600.5,
		Crossed:     4,
		Invalid:     1,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"secret":      "mysecret",
		"filename":    "harbour_20260501_120000.json.gz",
		"courseName":  "harbour",
		"vehicle":     "wamv",
		"runId":       "r1",
		"runDuration": "3600.500000",
		"crossed":     "4",
		"invalid":     "1",
	}, fields)
	assert.Equal(t, "test content", string(fileContent))
}

func TestUpload_FileNotFound(t *testing.T) {
	err := New("http://localhost:5000", "secret").Upload("/nonexistent/file.json.gz", core.UploadMetadata{})
	assert.ErrorContains(t, err, "open export")
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	path := writeExport(t, "test.json.gz", "content")
	err := New(server.URL, "wrong-secret").Upload(path, core.UploadMetadata{})
	assert.EqualError(t, err, "upload returned status 403")
}
