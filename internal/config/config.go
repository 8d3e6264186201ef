// Package config holds process configuration and the .cwa/ project files.
//
// Runtime configuration is environment-driven with documented defaults.
// Project-local files (.cwa/stack.json, .cwa/constitution.md) are accessed
// through a Store interface so tools and codegen can be tested against a
// temp directory.
package config

import (
	"os"
	"strconv"
)

// Config is the process-wide configuration, created once at startup and
// passed explicitly to the composition root.
type Config struct {
	// PrimaryStoreURL is the Redis URL holding all authoritative state.
	PrimaryStoreURL string
	// GraphStoreURL is the Neo4j bolt URL for the graph projection.
	GraphStoreURL string
	// GraphUser and GraphPassword authenticate the graph driver.
	GraphUser     string
	GraphPassword string
	// VectorStoreURL is the Qdrant gRPC host:port.
	VectorStoreURL string
	// EmbeddingURL is the Ollama-compatible embedding endpoint base URL.
	EmbeddingURL string
	// EmbeddingModelID selects the embedding model.
	EmbeddingModelID string
	// EmbeddingDim is the vector dimensionality of the configured model.
	EmbeddingDim int
	// WebAddr is the dashboard listen address.
	WebAddr string
}

// Defaults for a local single-machine deployment.
const (
	DefaultPrimaryStoreURL  = "redis://127.0.0.1:6379"
	DefaultGraphStoreURL    = "neo4j://127.0.0.1:7687"
	DefaultVectorStoreURL   = "127.0.0.1:6334"
	DefaultEmbeddingURL     = "http://127.0.0.1:11434"
	DefaultEmbeddingModelID = "nomic-embed-text"
	DefaultEmbeddingDim     = 768
	DefaultWebAddr          = "127.0.0.1:3030"
)

// FromEnv builds a Config from environment variables, falling back to the
// documented defaults for anything unset.
func FromEnv() Config {
	return Config{
		PrimaryStoreURL:  envOr("PRIMARY_STORE_URL", DefaultPrimaryStoreURL),
		GraphStoreURL:    envOr("GRAPH_STORE_URL", DefaultGraphStoreURL),
		GraphUser:        envOr("GRAPH_STORE_USER", "neo4j"),
		GraphPassword:    envOr("GRAPH_STORE_PASSWORD", "password"),
		VectorStoreURL:   envOr("VECTOR_STORE_URL", DefaultVectorStoreURL),
		EmbeddingURL:     envOr("EMBEDDING_URL", DefaultEmbeddingURL),
		EmbeddingModelID: envOr("EMBEDDING_MODEL_ID", DefaultEmbeddingModelID),
		EmbeddingDim:     envIntOr("EMBEDDING_DIM", DefaultEmbeddingDim),
		WebAddr:          envOr("WEB_URL", DefaultWebAddr),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
