package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Healthz(t *testing.T) {
	r := newTestRouter(NewMemoryStore(), nil)

	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_Swagger(t *testing.T) {
	r := newTestRouter(NewMemoryStore(), nil)

	w := doJSON(t, r, http.MethodGet, "/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/todos/{id}")
}

func TestRouter_Gzip(t *testing.T) {
	r := newTestRouter(NewMemoryStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

func TestRouter_DeleteIsNotCompressed(t *testing.T) {
	store := NewMemoryStore()
	seed(t, store, ToDo{ID: "1", Title: "x"})
	r := newTestRouter(store, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/todos/1", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Zero(t, w.Body.Len())
}

func TestRouter_StaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<todo-app></todo-app>"), 0644))
	r := newRouter(NewTodoHandler(NewMemoryStore(), nil), routerOptions{staticDir: dir})

	w := doJSON(t, r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<todo-app>")

	w = doJSON(t, r, http.MethodGet, "/api/todos", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestRouter_RecoversFromStorePanic(t *testing.T) {
	r := newTestRouter(panickingStore{}, nil)

	w := doJSON(t, r, http.MethodGet, "/api/todos/1", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

type panickingStore struct{ failingStore }

func (panickingStore) Get(context.Context, string) (*ToDo, error) { panic("driver bug") }

func TestOpenStore(t *testing.T) {
	s, err := openStore(context.Background(), StoreConfig{Backend: backendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = openStore(context.Background(), StoreConfig{Backend: "sqlite"})
	assert.Error(t, err)
}

func TestRequestLogger(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	r := newTestRouter(NewMemoryStore(), nil)

	doJSON(t, r, http.MethodGet, "/api/todos/missing", nil)

	var found *log.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "request" {
			found = e
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, log.WarnLevel, found.Level)
	assert.Equal(t, http.StatusNotFound, found.Data["status"])
	assert.Equal(t, "/api/todos/missing", found.Data["path"])
}

func TestSetupLogging(t *testing.T) {
	defer log.SetFormatter(&log.TextFormatter{})
	defer log.SetLevel(log.InfoLevel)

	require.NoError(t, setupLogging(LogConfig{Level: "debug", Format: "json"}))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	assert.Error(t, setupLogging(LogConfig{Level: "loud"}))
	assert.Error(t, setupLogging(LogConfig{Level: "info", Format: "xml"}))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}
