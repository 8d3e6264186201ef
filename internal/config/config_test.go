package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"PRIMARY_STORE_URL", "GRAPH_STORE_URL", "VECTOR_STORE_URL", "EMBEDDING_URL", "EMBEDDING_MODEL_ID", "EMBEDDING_DIM", "WEB_URL"} {
		t.Setenv(key, "")
	}
	cfg := FromEnv()

	if cfg.PrimaryStoreURL != DefaultPrimaryStoreURL {
		t.Errorf("PrimaryStoreURL = %s", cfg.PrimaryStoreURL)
	}
	if cfg.EmbeddingModelID != DefaultEmbeddingModelID {
		t.Errorf("EmbeddingModelID = %s", cfg.EmbeddingModelID)
	}
	if cfg.EmbeddingDim != 768 {
		t.Errorf("EmbeddingDim = %d, want 768", cfg.EmbeddingDim)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PRIMARY_STORE_URL", "redis://example:6380")
	t.Setenv("EMBEDDING_DIM", "1024")
	cfg := FromEnv()

	if cfg.PrimaryStoreURL != "redis://example:6380" {
		t.Errorf("PrimaryStoreURL = %s", cfg.PrimaryStoreURL)
	}
	if cfg.EmbeddingDim != 1024 {
		t.Errorf("EmbeddingDim = %d, want 1024", cfg.EmbeddingDim)
	}
}

func TestFromEnv_BadDimFallsBack(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "not-a-number")
	if FromEnv().EmbeddingDim != DefaultEmbeddingDim {
		t.Error("invalid EMBEDDING_DIM must fall back to default")
	}
}

// --- Path helpers ---

func TestStackPath(t *testing.T) {
	got := StackPath("/home/user/project")
	want := filepath.Join("/home/user/project", CwaDir, StackFile)
	if got != want {
		t.Errorf("StackPath = %s, want %s", got, want)
	}
}

// --- FileStore ---

func TestSaveAndLoadStack(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileStore()

	stack := Stack{TechStack: []string{"rust", "axum", "neo4j"}}
	if err := store.SaveStack(tmpDir, stack); err != nil {
		t.Fatalf("SaveStack failed: %v", err)
	}

	loaded, err := store.LoadStack(tmpDir)
	if err != nil {
		t.Fatalf("LoadStack failed: %v", err)
	}
	if len(loaded.TechStack) != 3 || loaded.TechStack[0] != "rust" {
		t.Errorf("TechStack = %v", loaded.TechStack)
	}
}

func TestLoadStack_MissingFileIsEmpty(t *testing.T) {
	stack, err := NewFileStore().LoadStack(t.TempDir())
	if err != nil {
		t.Fatalf("LoadStack failed: %v", err)
	}
	if len(stack.TechStack) != 0 {
		t.Errorf("TechStack = %v, want empty", stack.TechStack)
	}
}

func TestLoadStack_MalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(CwaPath(tmpDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(StackPath(tmpDir), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore().LoadStack(tmpDir); err == nil {
		t.Error("malformed stack.json must return an error")
	}
}

func TestSaveAndLoadConstitution(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileStore()

	if err := store.SaveConstitution(tmpDir, "# Rules\n\nBe kind.\n"); err != nil {
		t.Fatalf("SaveConstitution failed: %v", err)
	}
	got, err := store.LoadConstitution(tmpDir)
	if err != nil {
		t.Fatalf("LoadConstitution failed: %v", err)
	}
	if got != "# Rules\n\nBe kind.\n" {
		t.Errorf("constitution = %q", got)
	}
}

func TestLoadConstitution_Missing(t *testing.T) {
	got, err := NewFileStore().LoadConstitution(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConstitution failed: %v", err)
	}
	if got != "" {
		t.Errorf("constitution = %q, want empty", got)
	}
}
