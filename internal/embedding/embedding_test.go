package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

func embedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed_RoundTrip(t *testing.T) {
	var gotPrompts []string
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotPrompts = append(gotPrompts, req.Prompt)
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	})

	c := New(srv.URL, "nomic-embed-text")
	vectors, err := c.Embed(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 3 {
		t.Errorf("vectors = %v", vectors)
	}
	if len(gotPrompts) != 2 || gotPrompts[0] != "alpha" {
		t.Errorf("prompts = %v", gotPrompts)
	}
}

func TestEmbed_BatchCap(t *testing.T) {
	c := New("http://localhost:0", "m")
	texts := make([]string, BatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err := c.Embed(context.Background(), texts)
	if !cwerr.IsKind(err, cwerr.InvalidArguments) {
		t.Errorf("oversized batch = %v, want InvalidArguments", err)
	}
}

func TestEmbed_ServerErrorIsUnavailable(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	})
	c := New(srv.URL, "m")
	_, err := c.Embed(context.Background(), []string{"x"})
	if !cwerr.IsKind(err, cwerr.Unavailable) {
		t.Errorf("server error = %v, want Unavailable", err)
	}
}

func TestEmbed_ConnectionRefusedIsUnavailable(t *testing.T) {
	c := New("http://127.0.0.1:1", "m")
	_, err := c.EmbedOne(context.Background(), "x")
	if !cwerr.IsKind(err, cwerr.Unavailable) {
		t.Errorf("refused = %v, want Unavailable", err)
	}
}

func TestHealth(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text"}]}`))
	})
	c := New(srv.URL, "nomic-embed-text")
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}

	other := New(srv.URL, "some-other-model")
	if err := other.Health(context.Background()); !cwerr.IsKind(err, cwerr.Unavailable) {
		t.Errorf("unknown model = %v, want Unavailable", err)
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	c := New("http://127.0.0.1:1", "m")
	vectors, err := c.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Errorf("empty input = %v, %v", vectors, err)
	}
}
