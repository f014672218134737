package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kberrors "github.com/carekb/carekb/internal/errors"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, DefaultTopK, cfg.Search.TopK)
	assert.Equal(t, DefaultRRFConstant, cfg.Search.RRFConstant)
	assert.Equal(t, DefaultBM25K1, cfg.Search.K1)
	assert.Equal(t, DefaultBM25B, cfg.Search.B)
	assert.Equal(t, DefaultChunkSize, cfg.Chunking.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, ProviderOllama, cfg.Embeddings.Provider)
	assert.InDelta(t, 1.0, cfg.Search.BM25Weight+cfg.Search.VectorWeight, 1e-9)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, cfg.Search.TopK)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
search:
  top_k: 5
  candidate_width: 30
chunking:
  chunk_size: 500
  chunk_overlap: 100
embeddings:
  provider: static
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 30, cfg.Search.CandidateWidth)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, ProviderStatic, cfg.Embeddings.Provider)
	// Untouched sections keep defaults.
	assert.Equal(t, DefaultRRFConstant, cfg.Search.RRFConstant)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeConfigInvalid, kberrors.GetCode(err))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CAREKB_EMBED_PROVIDER", "static")
	t.Setenv("CAREKB_RRF_CONSTANT", "42")
	t.Setenv("CAREKB_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 42, cfg.Search.RRFConstant)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{
			"weights do not sum to one",
			func(c *Config) { c.Search.BM25Weight = 0.5; c.Search.VectorWeight = 0.7 },
			kberrors.ErrCodeConfigInvalid,
		},
		{
			"negative weight",
			func(c *Config) { c.Search.BM25Weight = -0.1 },
			kberrors.ErrCodeConfigInvalid,
		},
		{
			"zero top_k",
			func(c *Config) { c.Search.TopK = 0 },
			kberrors.ErrCodeConfigInvalid,
		},
		{
			"candidate width below top_k",
			func(c *Config) { c.Search.TopK = 10; c.Search.CandidateWidth = 5 },
			kberrors.ErrCodeConfigInvalid,
		},
		{
			"overlap not smaller than size",
			func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize },
			kberrors.ErrCodeInvalidChunk,
		},
		{
			"unknown provider",
			func(c *Config) { c.Embeddings.Provider = "openai" },
			kberrors.ErrCodeConfigInvalid,
		},
		{
			"bad log level",
			func(c *Config) { c.Logging.Level = "loud" },
			kberrors.ErrCodeConfigInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.code, kberrors.GetCode(err))
		})
	}
}

func TestValidate_FailuresAreFatal(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.BM25Weight = 0.9

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, kberrors.IsFatal(err))
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := NewConfig()
	cfg.Search.TopK = 7
	cfg.Search.CandidateWidth = 25
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Search.TopK)
}

func TestDerivedPaths(t *testing.T) {
	cfg := NewConfig()
	cfg.Paths.IndexDir = "/data/kb"

	assert.Equal(t, filepath.Join("/data/kb", "metadata.json"), cfg.MetadataPath())
	assert.Equal(t, filepath.Join("/data/kb", "index.bin"), cfg.IndexPath())
	assert.Equal(t, filepath.Join("/data/kb", ".carekb.lock"), cfg.LockPath())
}
