// Package config loads and validates symdex configuration.
//
// Configuration is applied in order of increasing precedence: hardcoded
// defaults, the project file (.symdex.yaml in the workspace root), then
// SYMDEX_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete symdex configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	TextIndex  TextIndexConfig  `yaml:"text_index" json:"text_index"`
	Vectors    VectorsConfig    `yaml:"vectors" json:"vectors"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Registry   RegistryConfig   `yaml:"registry" json:"registry"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig configures which paths to include and exclude.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// IndexConfig configures the incremental indexer.
type IndexConfig struct {
	// Workers is the number of concurrent hash/extract workers (0 = NumCPU).
	Workers int `yaml:"workers" json:"workers"`

	// MaxFileSizeMB is the largest file the indexer will read, in MB.
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`

	// RespectGitignore enables .gitignore parsing during the scan.
	RespectGitignore bool `yaml:"respect_gitignore" json:"respect_gitignore"`
}

// TextIndexConfig selects the full-text backend for symbol search.
// "fts5" keeps the index inside the symbol store and is the default;
// "bleve" maintains a separate bleve index next to the store.
type TextIndexConfig struct {
	Backend string `yaml:"backend" json:"backend"`
}

// VectorsConfig configures the HNSW graph inside the vector store.
type VectorsConfig struct {
	// M is the maximum number of graph neighbors per node.
	M int `yaml:"m" json:"m"`
	// EfSearch is the candidate list size during search.
	EfSearch int `yaml:"ef_search" json:"ef_search"`
	// RebuildAfterIndex triggers a background rebuild when an index pass
	// changed any symbols.
	RebuildAfterIndex bool `yaml:"rebuild_after_index" json:"rebuild_after_index"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "static" (deterministic, no network)
	// or "ollama".
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model name (ollama provider only).
	Model string `yaml:"model" json:"model"`

	// OllamaHost is the Ollama API endpoint (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// CacheSize is the number of embeddings kept in the in-memory LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// Timeout is the per-request embedding timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RegistryConfig configures workspace registry retention.
type RegistryConfig struct {
	// ReferenceTTL is how long an unaccessed reference workspace's index is
	// kept before cleanup. The primary workspace never expires.
	ReferenceTTL time.Duration `yaml:"reference_ttl" json:"reference_ttl"`

	// AutoCleanup removes expired reference indexes when the registry loads.
	AutoCleanup bool `yaml:"auto_cleanup" json:"auto_cleanup"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// Debounce is how long to coalesce file events before indexing.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// ServerConfig configures logging and the serve surface.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/target/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/go.sum",
}

// TextBackendFTS5 keeps full-text search inside the SQLite store.
const TextBackendFTS5 = "fts5"

// TextBackendBleve maintains a standalone bleve index.
const TextBackendBleve = "bleve"

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: defaultExcludePatterns,
		},
		Index: IndexConfig{
			Workers:          runtime.NumCPU(),
			MaxFileSizeMB:    1,
			RespectGitignore: true,
		},
		TextIndex: TextIndexConfig{
			Backend: TextBackendFTS5,
		},
		Vectors: VectorsConfig{
			M:                 32,
			EfSearch:          64,
			RebuildAfterIndex: true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "bge-small",
			OllamaHost: "",
			BatchSize:  32,
			CacheSize:  4096,
			Timeout:    60 * time.Second,
		},
		Registry: RegistryConfig{
			ReferenceTTL: 7 * 24 * time.Hour,
			AutoCleanup:  true,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// Load loads configuration for a workspace root:
// defaults, then .symdex.yaml/.symdex.yml, then SYMDEX_* env overrides.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile loads .symdex.yaml or .symdex.yml if present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".symdex.yaml", ".symdex.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		c.mergeWith(&parsed)
		return nil
	}
	// No config file is fine, defaults apply.
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		// Project excludes extend the defaults rather than replace them.
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Index.MaxFileSizeMB != 0 {
		c.Index.MaxFileSizeMB = other.Index.MaxFileSizeMB
	}

	if other.TextIndex.Backend != "" {
		c.TextIndex.Backend = other.TextIndex.Backend
	}

	if other.Vectors.M != 0 {
		c.Vectors.M = other.Vectors.M
	}
	if other.Vectors.EfSearch != 0 {
		c.Vectors.EfSearch = other.Vectors.EfSearch
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}
	if other.Embeddings.Timeout != 0 {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}

	if other.Registry.ReferenceTTL != 0 {
		c.Registry.ReferenceTTL = other.Registry.ReferenceTTL
	}

	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies SYMDEX_* environment variables, the highest
// precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SYMDEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("SYMDEX_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SYMDEX_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("SYMDEX_TEXT_BACKEND"); v != "" {
		c.TextIndex.Backend = v
	}
	if v := os.Getenv("SYMDEX_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.Workers = n
		}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Index.Workers < 0 {
		return fmt.Errorf("index.workers must be >= 0, got %d", c.Index.Workers)
	}
	if c.Index.MaxFileSizeMB <= 0 {
		return fmt.Errorf("index.max_file_size_mb must be > 0, got %d", c.Index.MaxFileSizeMB)
	}

	switch c.TextIndex.Backend {
	case TextBackendFTS5, TextBackendBleve:
	default:
		return fmt.Errorf("text_index.backend must be %q or %q, got %q",
			TextBackendFTS5, TextBackendBleve, c.TextIndex.Backend)
	}

	if c.Vectors.M <= 0 {
		return fmt.Errorf("vectors.m must be > 0, got %d", c.Vectors.M)
	}
	if c.Vectors.EfSearch <= 0 {
		return fmt.Errorf("vectors.ef_search must be > 0, got %d", c.Vectors.EfSearch)
	}

	switch c.Embeddings.Provider {
	case "static", "ollama":
	default:
		return fmt.Errorf("embeddings.provider must be \"static\" or \"ollama\", got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be > 0, got %d", c.Embeddings.BatchSize)
	}

	if c.Registry.ReferenceTTL < 0 {
		return fmt.Errorf("registry.reference_ttl must be >= 0, got %s", c.Registry.ReferenceTTL)
	}

	return nil
}

// MaxFileSizeBytes returns the index max file size in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Index.MaxFileSizeMB) * 1024 * 1024
}

// Workers returns the effective worker count.
func (c *Config) Workers() int {
	if c.Index.Workers > 0 {
		return c.Index.Workers
	}
	return runtime.NumCPU()
}
