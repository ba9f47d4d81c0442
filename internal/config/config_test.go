package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty temp dir and clears NBS_* vars.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, key := range []string{
		"NBS_SEARCH_MODE", "NBS_ALPHA", "NBS_TOP_K", "NBS_MIN_SIMILARITY", "NBS_BACKEND",
		"NBS_POSTGRES_DSN", "NBS_SQLITE_PATH", "NBS_FUSION_BASE_URL", "NBS_FUSION_MODEL",
		"NBS_EMBEDDINGS_PROVIDER", "NBS_EMBEDDINGS_MODEL", "NBS_EMBEDDINGS_BASE_URL", "NBS_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// =============================================================================
// Defaults
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	assert.Equal(t, CurrentVersion, cfg.Version)

	assert.Equal(t, "hybrid", cfg.Search.Mode)
	assert.Equal(t, 0.7, cfg.Search.Alpha)
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, 0.0, cfg.Search.MinSimilarity)
	assert.Equal(t, "sqlite", cfg.Search.Backend)
	assert.Equal(t, "fts5", cfg.Search.LexicalBackend)
	assert.Equal(t, "hnsw", cfg.Search.VectorBackend)
	assert.Equal(t, 2, cfg.Search.MaxExpansions)

	assert.Equal(t, "OPENAI_API_KEY", cfg.Fusion.APIKeyEnv)
	assert.Equal(t, 10*time.Second, cfg.Fusion.Timeout)
	assert.Equal(t, 0.1, cfg.Fusion.Temperature)
	assert.Equal(t, 100, cfg.Fusion.MaxTokens)
	assert.False(t, cfg.FusionConfigured())

	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 256, cfg.Embeddings.Dimensions)
	assert.Equal(t, 1000, cfg.Embeddings.CacheSize)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
	assert.Equal(t, 4, cfg.Embeddings.Workers)

	assert.Equal(t, "index.db", filepath.Base(cfg.Database.SQLitePath))
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Logging.MaxSizeMB)

	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// Precedence
// =============================================================================

func TestLoad_NoFiles_UsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

func TestLoad_Precedence_UserThenProjectThenEnv(t *testing.T) {
	// Given: user, project and env all set overlapping keys
	xdg := isolate(t)
	writeFile(t, filepath.Join(xdg, "nbs-retrieval", "config.yaml"), `
search:
  alpha: 0.4
  top_k: 20
fusion:
  model: user-model
`)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigYAML), `
search:
  top_k: 30
  mode: cosine
`)
	t.Setenv("NBS_SEARCH_MODE", "hybrid")

	// When: loading
	cfg, err := Load(dir)

	// Then: each layer wins over the one before it
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.Search.Alpha)
	assert.Equal(t, 30, cfg.Search.TopK)
	assert.Equal(t, "hybrid", cfg.Search.Mode)
	assert.Equal(t, "user-model", cfg.Fusion.Model)
	assert.True(t, cfg.FusionConfigured())

	// Untouched keys keep defaults
	assert.Equal(t, "fts5", cfg.Search.LexicalBackend)
}

func TestLoad_ExplicitZeroAlpha(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigYAML), "search:\n  alpha: 0\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Search.Alpha)
}

func TestLoad_YMLFallbackAndYAMLPreferred(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigYML), "search:\n  top_k: 7\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.TopK)

	writeFile(t, filepath.Join(dir, ProjectConfigYAML), "search:\n  top_k: 8\n")
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Search.TopK)
}

func TestLoad_Durations(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigYAML), "fusion:\n  timeout: 3s\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Fusion.Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("NBS_ALPHA", "0.25")
	t.Setenv("NBS_TOP_K", "15")
	t.Setenv("NBS_MIN_SIMILARITY", "0.3")
	t.Setenv("NBS_EMBEDDINGS_PROVIDER", "ollama")
	t.Setenv("NBS_EMBEDDINGS_MODEL", "nomic-embed-text")
	t.Setenv("NBS_FUSION_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("NBS_FUSION_MODEL", "qwen2.5")
	t.Setenv("NBS_SQLITE_PATH", "/tmp/nbs.db")
	t.Setenv("NBS_LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Search.Alpha)
	assert.Equal(t, 15, cfg.Search.TopK)
	assert.Equal(t, 0.3, cfg.Search.MinSimilarity)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, "http://localhost:8080/v1", cfg.Fusion.BaseURL)
	assert.Equal(t, "qwen2.5", cfg.Fusion.Model)
	assert.Equal(t, "/tmp/nbs.db", cfg.Database.SQLitePath)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidNumericEnvIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("NBS_ALPHA", "lots")
	t.Setenv("NBS_TOP_K", "ten")

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Search.Alpha)
	assert.Equal(t, 10, cfg.Search.TopK)
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	isolate(t)
	t.Setenv("NBS_BACKEND", "postgres")

	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres_dsn")

	t.Setenv("NBS_POSTGRES_DSN", "postgres://nbs@localhost/nbs")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Search.Backend)
}

func TestLoad_MalformedYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigYAML), "search: [unterminated\n")

	_, err := Load(dir)

	assert.Error(t, err)
}

func TestLoad_ExpandsHome(t *testing.T) {
	isolate(t)
	t.Setenv("NBS_SQLITE_PATH", "~/data/index.db")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data", "index.db"), cfg.Database.SQLitePath)
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"mode", func(c *Config) { c.Search.Mode = "bm25" }, "search.mode"},
		{"alpha high", func(c *Config) { c.Search.Alpha = 1.1 }, "search.alpha"},
		{"alpha negative", func(c *Config) { c.Search.Alpha = -0.1 }, "search.alpha"},
		{"top_k", func(c *Config) { c.Search.TopK = 0 }, "search.top_k"},
		{"min_similarity", func(c *Config) { c.Search.MinSimilarity = 2 }, "search.min_similarity"},
		{"max_expansions", func(c *Config) { c.Search.MaxExpansions = -1 }, "search.max_expansions"},
		{"backend", func(c *Config) { c.Search.Backend = "mysql" }, "search.backend"},
		{"lexical", func(c *Config) { c.Search.LexicalBackend = "lucene" }, "search.lexical_backend"},
		{"vector", func(c *Config) { c.Search.VectorBackend = "ivf" }, "search.vector_backend"},
		{"provider", func(c *Config) { c.Embeddings.Provider = "mlx" }, "embeddings.provider"},
		{"dimensions", func(c *Config) { c.Embeddings.Dimensions = -3 }, "embeddings.dimensions"},
		{"temperature", func(c *Config) { c.Fusion.Temperature = 3 }, "fusion.temperature"},
		{"level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_AcceptsBoundaries(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.Alpha = 0
	assert.NoError(t, cfg.Validate())
	cfg.Search.Alpha = 1
	cfg.Search.MinSimilarity = -1
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// Persistence
// =============================================================================

func TestWriteYAML_RoundTrips(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Search.Alpha = 0.55
	cfg.Fusion.Timeout = 4 * time.Second

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigYAML)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.55, loaded.Search.Alpha)
	assert.Equal(t, 4*time.Second, loaded.Fusion.Timeout)
}

func TestGetUserConfigPath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "nbs-retrieval", "config.yaml"), GetUserConfigPath())
	assert.False(t, UserConfigExists())
}
