package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// DataConfig locates the spreadsheet exports.
type DataConfig struct {
	Folder string   `yaml:"folder"`
	Files  []string `yaml:"files,omitempty"`
}

// SchemaConfig locates the expected-parameter schema document.
type SchemaConfig struct {
	Path string `yaml:"path"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	Model          string  `yaml:"model"`
	TimeoutSecs    int     `yaml:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	Burst          int     `yaml:"burst"`
	Workers        int     `yaml:"workers"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures record persistence.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// SQLiteConfig points at the SQLite database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant gRPC endpoint.
type QdrantConfig struct {
	Addr        string `yaml:"addr"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ComposerConfig selects the response composer. Type is one of extractive,
// gemini, ollama or openai.
type ComposerConfig struct {
	Type      string `yaml:"type"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	ServerURL string `yaml:"server_url,omitempty"`
	MaxTokens int    `yaml:"max_tokens"`
}

// QueryConfig holds retrieval defaults.
type QueryConfig struct {
	TopK                  int `yaml:"top_k"`
	RetrievalTimeoutSecs  int `yaml:"retrieval_timeout_secs"`
	GenerationTimeoutSecs int `yaml:"generation_timeout_secs"`
}

// RetrievalTimeout returns the embedding deadline.
func (q QueryConfig) RetrievalTimeout() time.Duration {
	return time.Duration(q.RetrievalTimeoutSecs) * time.Second
}

// GenerationTimeout returns the composer deadline.
func (q QueryConfig) GenerationTimeout() time.Duration {
	return time.Duration(q.GenerationTimeoutSecs) * time.Second
}

// AnalysisConfig holds thresholds for profiling and schema comparison.
type AnalysisConfig struct {
	RequiredFillThreshold float64 `yaml:"required_fill_threshold"`
	DeriveThreshold       float64 `yaml:"derive_threshold"`
	ReportPath            string  `yaml:"report_path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Data        DataConfig        `yaml:"data"`
	Schema      SchemaConfig      `yaml:"schema"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Composer    ComposerConfig    `yaml:"composer"`
	Query       QueryConfig       `yaml:"query"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./bimrag.yaml first, then ~/.config/bimrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/bimrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "bimrag.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects unknown component types and out-of-range values.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "tfidf", "openai":
	default:
		return errors.Newf("unknown embedder type %q", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "memory", "sqlite", "qdrant":
	default:
		return errors.Newf("unknown vector store type %q", c.VectorStore.Type)
	}
	switch c.Composer.Type {
	case "extractive", "gemini", "ollama", "openai":
	default:
		return errors.Newf("unknown composer type %q", c.Composer.Type)
	}
	if c.Query.TopK <= 0 {
		return errors.Newf("query.top_k must be positive, got %d", c.Query.TopK)
	}
	for name, v := range map[string]float64{
		"analysis.required_fill_threshold": c.Analysis.RequiredFillThreshold,
		"analysis.derive_threshold":        c.Analysis.DeriveThreshold,
	} {
		if v < 0 || v > 1 {
			return errors.Newf("%s must be within [0,1], got %v", name, v)
		}
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, ".config", "bimrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Data:        DataConfig{Folder: "data"},
		Schema:      SchemaConfig{Path: "expected_schema.json"},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Composer:    ComposerConfig{Type: "extractive"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Data.Folder == "" {
		cfg.Data.Folder = "data"
	}
	if cfg.Schema.Path == "" {
		cfg.Schema.Path = "expected_schema.json"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.RequestsPerSec == 0 {
			o.RequestsPerSec = 5
		}
		if o.Burst == 0 {
			o.Burst = 1
		}
		if o.Workers == 0 {
			o.Workers = 4
		}
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	switch cfg.VectorStore.Type {
	case "sqlite":
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Path == "" {
			cfg.VectorStore.SQLite.Path = "bimrag.db"
		}
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		q := cfg.VectorStore.Qdrant
		if q.Addr == "" {
			q.Addr = "localhost:6334"
		}
		if q.Collection == "" {
			q.Collection = "bim_elements"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 10
		}
	}

	if cfg.Composer.Type == "" {
		cfg.Composer.Type = "extractive"
	}
	switch cfg.Composer.Type {
	case "gemini":
		if cfg.Composer.Model == "" {
			cfg.Composer.Model = "gemini-1.5-flash"
		}
		if cfg.Composer.APIKeyEnv == "" {
			cfg.Composer.APIKeyEnv = "GEMINI_API_KEY"
		}
	case "openai":
		if cfg.Composer.Model == "" {
			cfg.Composer.Model = "gpt-4o-mini"
		}
		if cfg.Composer.APIKeyEnv == "" {
			cfg.Composer.APIKeyEnv = "OPENAI_API_KEY"
		}
	case "ollama":
		if cfg.Composer.Model == "" {
			cfg.Composer.Model = "llama3"
		}
		if cfg.Composer.ServerURL == "" {
			cfg.Composer.ServerURL = "http://localhost:11434"
		}
	}
	if cfg.Composer.MaxTokens == 0 {
		cfg.Composer.MaxTokens = 1024
	}

	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 5
	}
	if cfg.Query.RetrievalTimeoutSecs == 0 {
		cfg.Query.RetrievalTimeoutSecs = 15
	}
	if cfg.Query.GenerationTimeoutSecs == 0 {
		cfg.Query.GenerationTimeoutSecs = 60
	}

	if cfg.Analysis.RequiredFillThreshold == 0 {
		cfg.Analysis.RequiredFillThreshold = 0.9
	}
	if cfg.Analysis.DeriveThreshold == 0 {
		cfg.Analysis.DeriveThreshold = 0.8
	}
	if cfg.Analysis.ReportPath == "" {
		cfg.Analysis.ReportPath = "ifc_analysis_report.html"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
