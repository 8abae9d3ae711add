package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllama(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"}]}`))
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != "nomic-embed-text" {
			http.Error(w, "unknown model", http.StatusNotFound)
			return
		}
		out := make([][]float64, len(req.Input))
		for i, s := range req.Input {
			out[i] = []float64{float64(len(s)), 1}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := newOllama(t)
	e := NewOllamaEmbedder("nomic-embed-text", srv.URL+"/", 0)

	got, err := e.Embed(context.Background(), []string{"abc", "hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3, 1}, {5, 1}}, got)

	got, err = e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOllamaEmbedder_Errors(t *testing.T) {
	srv := newOllama(t)
	e := NewOllamaEmbedder("missing-model", srv.URL, 0)

	_, err := e.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 404")

	assert.Error(t, e.Available(context.Background()))
}

func TestOllamaEmbedder_Available(t *testing.T) {
	srv := newOllama(t)
	e := NewOllamaEmbedder("nomic-embed-text:v1.5", srv.URL, 0)
	assert.NoError(t, e.Available(context.Background()))

	srv.Close()
	assert.Error(t, e.Available(context.Background()))
}
