// Package config provides configuration loading and validation for carekb.
//
// Configuration is resolved in priority order:
//  1. Defaults (NewConfig)
//  2. Config file (~/.carekb/config.yaml or an explicit path)
//  3. CAREKB_* environment variables (highest priority)
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	kberrors "github.com/carekb/carekb/internal/errors"
)

// Config represents the complete carekb configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures on-disk storage locations.
type PathsConfig struct {
	// DocumentsDir stores managed copies of ingested source documents.
	DocumentsDir string `yaml:"documents_dir" json:"documents_dir"`

	// IndexDir stores metadata.json and index.bin.
	IndexDir string `yaml:"index_dir" json:"index_dir"`

	// SynonymsFile is an optional JSON synonym table (word -> synonyms).
	// Empty means the built-in care-domain table is used.
	SynonymsFile string `yaml:"synonyms_file" json:"synonyms_file"`
}

// SearchConfig configures hybrid search parameters.
type SearchConfig struct {
	// TopK is the number of results returned to the caller.
	TopK int `yaml:"top_k" json:"top_k"`

	// CandidateWidth is the per-channel candidate count before fusion.
	// Wider than TopK so fusion has room to reorder.
	CandidateWidth int `yaml:"candidate_width" json:"candidate_width"`

	// BM25Weight is the weight for lexical matching (0.0-1.0).
	// Must sum to 1.0 with VectorWeight.
	BM25Weight float64 `yaml:"bm25_weight" json:"bm25_weight"`

	// VectorWeight is the weight for semantic similarity (0.0-1.0).
	// Must sum to 1.0 with BM25Weight.
	VectorWeight float64 `yaml:"vector_weight" json:"vector_weight"`

	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60 (industry standard used by Azure AI Search, OpenSearch).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// K1 is the BM25 term frequency saturation parameter.
	K1 float64 `yaml:"bm25_k1" json:"bm25_k1"`

	// B is the BM25 length normalization parameter.
	B float64 `yaml:"bm25_b" json:"bm25_b"`
}

// ChunkingConfig configures the chunking pipeline.
type ChunkingConfig struct {
	// ChunkSize is the target window size in characters.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// ChunkOverlap is the number of characters shared between
	// consecutive chunks. Must be smaller than ChunkSize.
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedding backend: "ollama" or "static".
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// Timeout bounds a single embedding request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// MaxRetries is the number of retry attempts for transient failures.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// Workers bounds the embedding worker pool during index rebuilds.
	Workers int `yaml:"workers" json:"workers"`

	// CacheSize is the LRU embedding cache capacity.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Defaults mirror the shipped configuration.
const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultTopK           = 3
	DefaultCandidateWidth = 20
	DefaultRRFConstant    = 60
	DefaultBM25K1         = 1.5
	DefaultBM25B          = 0.75
	DefaultOllamaHost     = "http://localhost:11434"
	DefaultEmbedModel     = "nomic-embed-text"
	DefaultEmbedTimeout   = 30 * time.Second
)

// Embedding provider names accepted in EmbeddingsConfig.Provider.
const (
	ProviderOllama = "ollama"
	ProviderStatic = "static"
)

// NewConfig returns a config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DocumentsDir: defaultDataPath("documents"),
			IndexDir:     defaultDataPath("index"),
			SynonymsFile: "",
		},
		Search: SearchConfig{
			TopK:           DefaultTopK,
			CandidateWidth: DefaultCandidateWidth,
			BM25Weight:     0.3,
			VectorWeight:   0.7,
			RRFConstant:    DefaultRRFConstant,
			K1:             DefaultBM25K1,
			B:              DefaultBM25B,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      DefaultEmbedModel,
			OllamaHost: DefaultOllamaHost,
			Timeout:    DefaultEmbedTimeout,
			MaxRetries: 3,
			Workers:    4,
			CacheSize:  1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// defaultDataPath returns a path under ~/.carekb.
func defaultDataPath(sub string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".carekb", sub)
	}
	return filepath.Join(home, ".carekb", sub)
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "carekb", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".carekb", "config.yaml")
	}
	return filepath.Join(home, ".config", "carekb", "config.yaml")
}

// Load reads configuration from the given path (or the default location
// when path is empty), applies env overrides, and validates the result.
// A missing config file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, kberrors.New(kberrors.ErrCodeConfigInvalid,
				fmt.Sprintf("cannot parse config file %s: %v", path, err), err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, kberrors.Wrap(kberrors.ErrCodeConfigNotFound, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies CAREKB_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CAREKB_BM25_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.BM25Weight = w
		}
	}
	if v := os.Getenv("CAREKB_VECTOR_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.VectorWeight = w
		}
	}
	if v := os.Getenv("CAREKB_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("CAREKB_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CAREKB_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CAREKB_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("CAREKB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CAREKB_DOCUMENTS_DIR"); v != "" {
		c.Paths.DocumentsDir = v
	}
	if v := os.Getenv("CAREKB_INDEX_DIR"); v != "" {
		c.Paths.IndexDir = v
	}
	if v := os.Getenv("CAREKB_SYNONYMS_FILE"); v != "" {
		c.Paths.SynonymsFile = v
	}
}

// Validate checks configuration invariants. Violations are hard failures
// surfaced at configuration time, never during a query.
func (c *Config) Validate() error {
	if c.Search.BM25Weight < 0 || c.Search.BM25Weight > 1 {
		return kberrors.ConfigError(
			fmt.Sprintf("bm25_weight must be between 0 and 1, got %f", c.Search.BM25Weight), nil)
	}
	if c.Search.VectorWeight < 0 || c.Search.VectorWeight > 1 {
		return kberrors.ConfigError(
			fmt.Sprintf("vector_weight must be between 0 and 1, got %f", c.Search.VectorWeight), nil)
	}

	sum := c.Search.BM25Weight + c.Search.VectorWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return kberrors.ConfigError(
			fmt.Sprintf("bm25_weight + vector_weight must equal 1.0, got %.4f", sum), nil)
	}

	if c.Search.TopK <= 0 {
		return kberrors.ConfigError(
			fmt.Sprintf("top_k must be positive, got %d", c.Search.TopK), nil)
	}
	if c.Search.CandidateWidth < c.Search.TopK {
		return kberrors.ConfigError(
			fmt.Sprintf("candidate_width (%d) must be at least top_k (%d)",
				c.Search.CandidateWidth, c.Search.TopK), nil)
	}
	if c.Search.RRFConstant <= 0 {
		return kberrors.ConfigError(
			fmt.Sprintf("rrf_constant must be positive, got %d", c.Search.RRFConstant), nil)
	}
	if c.Search.K1 <= 0 {
		return kberrors.ConfigError(
			fmt.Sprintf("bm25_k1 must be positive, got %f", c.Search.K1), nil)
	}
	if c.Search.B < 0 || c.Search.B > 1 {
		return kberrors.ConfigError(
			fmt.Sprintf("bm25_b must be between 0 and 1, got %f", c.Search.B), nil)
	}

	if c.Chunking.ChunkSize <= 0 {
		return kberrors.New(kberrors.ErrCodeInvalidChunk,
			fmt.Sprintf("chunk_size must be positive, got %d", c.Chunking.ChunkSize), nil)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return kberrors.New(kberrors.ErrCodeInvalidChunk,
			fmt.Sprintf("chunk_overlap (%d) must be non-negative and smaller than chunk_size (%d)",
				c.Chunking.ChunkOverlap, c.Chunking.ChunkSize), nil)
	}

	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{ProviderOllama: true, ProviderStatic: true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return kberrors.ConfigError(
				fmt.Sprintf("embeddings.provider must be 'ollama' or 'static', got %s",
					c.Embeddings.Provider), nil)
		}
	}
	if c.Embeddings.Timeout <= 0 {
		return kberrors.ConfigError(
			fmt.Sprintf("embeddings.timeout must be positive, got %s", c.Embeddings.Timeout), nil)
	}
	if c.Embeddings.Workers <= 0 {
		return kberrors.ConfigError(
			fmt.Sprintf("embeddings.workers must be positive, got %d", c.Embeddings.Workers), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return kberrors.ConfigError(
			fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s",
				c.Logging.Level), nil)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MetadataPath returns the metadata state file location.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.Paths.IndexDir, "metadata.json")
}

// IndexPath returns the vector index blob location.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Paths.IndexDir, "index.bin")
}

// LockPath returns the cross-process writer lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.IndexDir, ".carekb.lock")
}
