// Package config loads nbs-retrieval configuration from defaults, YAML files
// and NBS_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the configuration schema version written by WriteYAML.
const CurrentVersion = 1

// Project configuration file names, in lookup order.
const (
	ProjectConfigYAML = ".nbs-retrieval.yaml"
	ProjectConfigYML  = ".nbs-retrieval.yml"
)

// Config represents the complete nbs-retrieval configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Fusion     FusionConfig     `yaml:"fusion" json:"fusion"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// SearchConfig configures retrieval.
type SearchConfig struct {
	// Mode is "hybrid" or "cosine".
	Mode string `yaml:"mode" json:"mode"`

	// Alpha weights the vector stream (0.0-1.0); 1-Alpha weights keywords.
	Alpha float64 `yaml:"alpha" json:"alpha"`

	// TopK is the default number of results.
	TopK int `yaml:"top_k" json:"top_k"`

	// MinSimilarity drops vector candidates below it.
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity"`

	// Backend is "postgres" (fusion in SQL) or "sqlite" (fusion in process).
	Backend string `yaml:"backend" json:"backend"`

	// LexicalBackend is "fts5" or "bleve" for the sqlite backend.
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`

	// VectorBackend is "hnsw" or "exact" for the sqlite backend.
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`

	// MaxExpansions caps synonyms added per matched term.
	MaxExpansions int `yaml:"max_expansions" json:"max_expansions"`
}

// FusionConfig configures the LLM that merges multi-question queries.
// An empty Model leaves fusion unconfigured and multi-question queries
// fall back to the original text.
type FusionConfig struct {
	Provider    string        `yaml:"provider" json:"provider"`
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Model       string        `yaml:"model" json:"model"`
	APIKeyEnv   string        `yaml:"api_key_env" json:"api_key_env"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static", "openai" or "ollama".
	Provider   string        `yaml:"provider" json:"provider"`
	Model      string        `yaml:"model" json:"model"`
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env" json:"api_key_env"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	CacheSize  int           `yaml:"cache_size" json:"cache_size"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	Workers    int           `yaml:"workers" json:"workers"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// DatabaseConfig locates the stores.
type DatabaseConfig struct {
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path" json:"sqlite_path"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
	Stderr    bool   `yaml:"stderr" json:"stderr"`
}

// NewConfig returns a configuration with defaults.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Search: SearchConfig{
			Mode:           "hybrid",
			Alpha:          0.7,
			TopK:           10,
			MinSimilarity:  0.0,
			Backend:        "sqlite",
			LexicalBackend: "fts5",
			VectorBackend:  "hnsw",
			MaxExpansions:  2,
		},
		Fusion: FusionConfig{
			Provider:    "openai",
			APIKeyEnv:   "OPENAI_API_KEY",
			Timeout:     10 * time.Second,
			Temperature: 0.1,
			MaxTokens:   100,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Dimensions: 256,
			CacheSize:  1000,
			BatchSize:  32,
			Workers:    4,
			Timeout:    60 * time.Second,
		},
		Database: DatabaseConfig{
			SQLitePath: filepath.Join(defaultDataDir(), "index.db"),
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      filepath.Join(defaultDataDir(), "logs", "nbs.log"),
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// defaultDataDir returns ~/.nbs, or a temp directory when there is no home.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".nbs")
	}
	return filepath.Join(home, ".nbs")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/nbs-retrieval/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/nbs-retrieval/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nbs-retrieval", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "nbs-retrieval", "config.yaml")
	}
	return filepath.Join(home, ".config", "nbs-retrieval", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the project directory dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/nbs-retrieval/config.yaml)
//  3. Project config (.nbs-retrieval.yaml in dir)
//  4. Environment variables (NBS_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := ProjectConfigPath(dir); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ProjectConfigPath returns the project config file in dir, preferring
// .yaml over .yml, or "" when neither exists.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{ProjectConfigYAML, ProjectConfigYML} {
		if path := filepath.Join(dir, name); fileExists(path) {
			return path
		}
	}
	return ""
}

// loadYAML decodes path over c. Keys absent from the file keep their
// current values, so an explicit zero (alpha: 0) is honoured.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies NBS_* environment variable overrides.
// Unparseable numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NBS_SEARCH_MODE"); v != "" {
		c.Search.Mode = v
	}
	if v := os.Getenv("NBS_ALPHA"); v != "" {
		if a, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			c.Search.Alpha = a
		}
	}
	if v := os.Getenv("NBS_TOP_K"); v != "" {
		if k, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Search.TopK = k
		}
	}
	if v := os.Getenv("NBS_MIN_SIMILARITY"); v != "" {
		if m, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			c.Search.MinSimilarity = m
		}
	}
	if v := os.Getenv("NBS_BACKEND"); v != "" {
		c.Search.Backend = v
	}

	if v := os.Getenv("NBS_POSTGRES_DSN"); v != "" {
		c.Database.PostgresDSN = v
	}
	if v := os.Getenv("NBS_SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}

	if v := os.Getenv("NBS_FUSION_BASE_URL"); v != "" {
		c.Fusion.BaseURL = v
	}
	if v := os.Getenv("NBS_FUSION_MODEL"); v != "" {
		c.Fusion.Model = v
	}

	if v := os.Getenv("NBS_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("NBS_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("NBS_EMBEDDINGS_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}

	if v := os.Getenv("NBS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// expandPaths resolves a leading "~/" in file paths.
func (c *Config) expandPaths() {
	c.Database.SQLitePath = expandHome(c.Database.SQLitePath)
	c.Logging.File = expandHome(c.Logging.File)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	validModes := map[string]bool{"hybrid": true, "cosine": true}
	if !validModes[strings.ToLower(c.Search.Mode)] {
		return fmt.Errorf("search.mode must be 'hybrid' or 'cosine', got %s", c.Search.Mode)
	}
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("search.alpha must be between 0 and 1, got %v", c.Search.Alpha)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.MinSimilarity < -1 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("search.min_similarity must be between -1 and 1, got %v", c.Search.MinSimilarity)
	}
	if c.Search.MaxExpansions < 0 {
		return fmt.Errorf("search.max_expansions must be non-negative, got %d", c.Search.MaxExpansions)
	}

	validBackends := map[string]bool{"postgres": true, "sqlite": true}
	if !validBackends[strings.ToLower(c.Search.Backend)] {
		return fmt.Errorf("search.backend must be 'postgres' or 'sqlite', got %s", c.Search.Backend)
	}
	validLexical := map[string]bool{"fts5": true, "bleve": true}
	if !validLexical[strings.ToLower(c.Search.LexicalBackend)] {
		return fmt.Errorf("search.lexical_backend must be 'fts5' or 'bleve', got %s", c.Search.LexicalBackend)
	}
	validVector := map[string]bool{"hnsw": true, "exact": true}
	if !validVector[strings.ToLower(c.Search.VectorBackend)] {
		return fmt.Errorf("search.vector_backend must be 'hnsw' or 'exact', got %s", c.Search.VectorBackend)
	}
	if strings.EqualFold(c.Search.Backend, "postgres") && c.Database.PostgresDSN == "" {
		return fmt.Errorf("database.postgres_dsn is required for the postgres backend")
	}

	validProviders := map[string]bool{"static": true, "openai": true, "ollama": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'static', 'openai' or 'ollama', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 0 {
		return fmt.Errorf("embeddings.dimensions must be non-negative, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.Workers < 0 || c.Embeddings.BatchSize < 0 {
		return fmt.Errorf("embeddings.workers and embeddings.batch_size must be non-negative")
	}

	if c.Fusion.Temperature < 0 || c.Fusion.Temperature > 2 {
		return fmt.Errorf("fusion.temperature must be between 0 and 2, got %v", c.Fusion.Temperature)
	}
	if c.Fusion.MaxTokens < 0 {
		return fmt.Errorf("fusion.max_tokens must be non-negative, got %d", c.Fusion.MaxTokens)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// FusionConfigured reports whether a fusion model is set.
func (c *Config) FusionConfigured() bool {
	return strings.TrimSpace(c.Fusion.Model) != ""
}

// WriteYAML writes the configuration to a YAML file, creating its directory.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
