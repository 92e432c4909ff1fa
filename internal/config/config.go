// Package config loads and validates sovereign's daemon configuration.
//
// Configuration is resolved in three layers, lowest to highest precedence:
// built-in defaults, an optional YAML file, then environment variable
// overrides. This mirrors the layered-defaults approach used throughout the
// daemon's other subsystems.
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

// Config is the complete sovereign daemon configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Listeners ListenersConfig `yaml:"listeners" json:"listeners"`
	Retrieval RetrievalConfig `yaml:"retrieval" json:"retrieval"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Watcher   WatcherConfig   `yaml:"watcher" json:"watcher"`
	P2P       P2PConfig       `yaml:"p2p" json:"p2p"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// PathsConfig configures where the daemon keeps its data.
type PathsConfig struct {
	// DataDir holds the SQLite database, bleve index, and CRDT document.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// ListenersConfig configures the daemon's three client-facing listeners.
type ListenersConfig struct {
	UnixSocketPath string `yaml:"unix_socket_path" json:"unix_socket_path"`
	TCPAddr        string `yaml:"tcp_addr" json:"tcp_addr"`
	WSAddr         string `yaml:"ws_addr" json:"ws_addr"`
}

// RetrievalConfig tunes the hybrid retrieval engine.
type RetrievalConfig struct {
	// SemanticWeight weights the semantic (embedding) score in the linear
	// merge; the keyword score is weighted (1 - SemanticWeight).
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`
	MaxResults     int     `yaml:"max_results" json:"max_results"`
	ChunkSize      int     `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// EmbeddingConfig configures the embedding generator and its cache.
type EmbeddingConfig struct {
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	CacheSize  int `yaml:"cache_size" json:"cache_size"`
}

// WatcherConfig tunes the file watcher's debounce window.
type WatcherConfig struct {
	DebounceInterval time.Duration `yaml:"debounce_interval" json:"debounce_interval"`
}

// P2PConfig configures the peer sync service.
type P2PConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level         string `yaml:"level" json:"level"`
	FilePath      string `yaml:"file_path" json:"file_path"`
	MaxSizeMB     int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles      int    `yaml:"max_files" json:"max_files"`
	WriteToStderr bool   `yaml:"write_to_stderr" json:"write_to_stderr"`
}

// NewConfig returns a Config populated with built-in defaults.
func NewConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".sovereign")

	return &Config{
		Paths: PathsConfig{
			DataDir: dataDir,
		},
		Listeners: ListenersConfig{
			UnixSocketPath: filepath.Join(dataDir, "sovereign.sock"),
			TCPAddr:        "127.0.0.1:7655",
			WSAddr:         "127.0.0.1:7656",
		},
		Retrieval: RetrievalConfig{
			SemanticWeight: 0.7,
			MaxResults:     20,
			ChunkSize:      1000,
			ChunkOverlap:   200,
		},
		Embedding: EmbeddingConfig{
			Dimensions: 256,
			CacheSize:  2000,
		},
		Watcher: WatcherConfig{
			DebounceInterval: 500 * time.Millisecond,
		},
		P2P: P2PConfig{
			ListenAddr: "127.0.0.1:7654",
		},
		Logging: LoggingConfig{
			Level:         "info",
			FilePath:      filepath.Join(dataDir, "sovereign.log"),
			MaxSizeMB:     50,
			MaxFiles:      5,
			WriteToStderr: runtime.GOOS != "windows",
		},
	}
}

// Load builds a Config from defaults, then applies overrides from the YAML
// file at path (if it exists) and from environment variables. An empty path
// skips the file layer.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOVEREIGN_DATA_DIR"); v != "" {
		cfg.Paths.DataDir = v
	}
	if v := os.Getenv("SOVEREIGN_UNIX_SOCKET"); v != "" {
		cfg.Listeners.UnixSocketPath = v
	}
	if v := os.Getenv("SOVEREIGN_TCP_ADDR"); v != "" {
		cfg.Listeners.TCPAddr = v
	}
	if v := os.Getenv("SOVEREIGN_WS_ADDR"); v != "" {
		cfg.Listeners.WSAddr = v
	}
	if v := os.Getenv("SOVEREIGN_P2P_ADDR"); v != "" {
		cfg.P2P.ListenAddr = v
	}
	if v := os.Getenv("SOVEREIGN_SEMANTIC_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.SemanticWeight = f
		}
	}
	if v := os.Getenv("SOVEREIGN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if c.Retrieval.SemanticWeight < 0 || c.Retrieval.SemanticWeight > 1 {
		return fmt.Errorf("retrieval.semantic_weight must be in [0,1], got %f", c.Retrieval.SemanticWeight)
	}
	if c.Retrieval.MaxResults <= 0 {
		return fmt.Errorf("retrieval.max_results must be positive, got %d", c.Retrieval.MaxResults)
	}
	if c.Retrieval.ChunkSize <= 0 {
		return fmt.Errorf("retrieval.chunk_size must be positive, got %d", c.Retrieval.ChunkSize)
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap must be in [0, chunk_size), got %d", c.Retrieval.ChunkOverlap)
	}
	if c.Watcher.DebounceInterval <= 0 {
		return fmt.Errorf("watcher.debounce_interval must be positive, got %s", c.Watcher.DebounceInterval)
	}
	return nil
}

// EnsureDataDir creates the configured data directory if it does not exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.Paths.DataDir, 0o755)
}
