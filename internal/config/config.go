package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// SourceConfig is one directory of markdown files.
type SourceConfig struct {
	Path    string `yaml:"path" toml:"path" validate:"required"`
	Kind    string `yaml:"kind" toml:"kind" validate:"oneof=discourse site"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// CorpusConfig lists the corpus sources in ingestion order.
type CorpusConfig struct {
	Sources []SourceConfig `yaml:"sources" toml:"sources" validate:"dive"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size    int `yaml:"size" toml:"size" validate:"gt=0"`
	Overlap int `yaml:"overlap" toml:"overlap" validate:"gte=0,ltfield=Size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type              string  `yaml:"type" toml:"type" validate:"oneof=openai ollama hashing"`
	Model             string  `yaml:"model" toml:"model"`
	BaseURL           string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env" toml:"api_key_env"`
	Dimension         int     `yaml:"dimension" toml:"dimension" validate:"gte=0"`
	TimeoutSecs       int     `yaml:"timeout_secs" toml:"timeout_secs" validate:"gte=0"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second" validate:"gte=0"`
}

// VectorStoreConfig selects where the index is persisted.
type VectorStoreConfig struct {
	Type string `yaml:"type" toml:"type" validate:"oneof=sqlite badger"`
	Path string `yaml:"path" toml:"path" validate:"required"`
}

// CaptionerConfig configures image captioning.
type CaptionerConfig struct {
	Type        string `yaml:"type" toml:"type" validate:"oneof=gemini none"`
	Model       string `yaml:"model" toml:"model"`
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs" validate:"gte=0"`
}

// GeneratorConfig configures the answering model.
type GeneratorConfig struct {
	Type        string `yaml:"type" toml:"type" validate:"oneof=openai anthropic gemini"`
	Model       string `yaml:"model" toml:"model"`
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs" validate:"gte=0"`
	MaxTokens   int    `yaml:"max_tokens" toml:"max_tokens" validate:"gte=0"`
}

// RetrievalConfig bounds the context sent to the model.
type RetrievalConfig struct {
	MaxContextBlocks int `yaml:"max_context_blocks" toml:"max_context_blocks" validate:"gt=0"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr             string `yaml:"addr" toml:"addr"`
	Port             int    `yaml:"port" toml:"port" validate:"gt=0,lte=65535"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs" toml:"read_timeout_secs" validate:"gte=0"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs" toml:"write_timeout_secs" validate:"gte=0"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"oneof=console json"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus      CorpusConfig      `yaml:"corpus" toml:"corpus"`
	Chunker     ChunkerConfig     `yaml:"chunker" toml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder" toml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store" toml:"vector_store"`
	Captioner   CaptionerConfig   `yaml:"captioner" toml:"captioner"`
	Generator   GeneratorConfig   `yaml:"generator" toml:"generator"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" toml:"retrieval"`
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else {
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			err = toml.Unmarshal(data, cfg)
		} else {
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	applyConfigDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
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
	cfg, err = Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks field constraints.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ListenAddr is the host:port the server binds.
func (c *AppConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Addr, c.Server.Port)
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func (c *EmbedderConfig) Timeout() time.Duration  { return secs(c.TimeoutSecs) }
func (c *CaptionerConfig) Timeout() time.Duration { return secs(c.TimeoutSecs) }
func (c *GeneratorConfig) Timeout() time.Duration { return secs(c.TimeoutSecs) }
func (c *ServerConfig) ReadTimeout() time.Duration {
	return secs(c.ReadTimeoutSecs)
}
func (c *ServerConfig) WriteTimeout() time.Duration {
	return secs(c.WriteTimeoutSecs)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Chunker:     ChunkerConfig{Size: 1000, Overlap: 200},
		Embedder:    EmbedderConfig{Type: "hashing"},
		VectorStore: VectorStoreConfig{Type: "sqlite", Path: filepath.Join("data", "index.db")},
		Captioner:   CaptionerConfig{Type: "none"},
		Generator:   GeneratorConfig{Type: "openai"},
		Retrieval:   RetrievalConfig{MaxContextBlocks: 15},
		Server:      ServerConfig{Addr: "0.0.0.0", Port: 8000, ReadTimeoutSecs: 15, WriteTimeoutSecs: 180},
		Logging:     LoggingConfig{Level: "info", Format: "console"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	for i := range cfg.Corpus.Sources {
		if cfg.Corpus.Sources[i].Kind == "" {
			cfg.Corpus.Sources[i].Kind = "site"
		}
	}
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.APIKeyEnv == "" {
			cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
	case "ollama":
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "nomic-embed-text"
		}
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}

	if cfg.Captioner.Type == "" {
		cfg.Captioner.Type = "none"
	}
	if cfg.Captioner.Type == "gemini" {
		if cfg.Captioner.APIKeyEnv == "" {
			cfg.Captioner.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.Captioner.Model == "" {
			cfg.Captioner.Model = "gemini-2.0-flash"
		}
	}
	if cfg.Captioner.TimeoutSecs == 0 {
		cfg.Captioner.TimeoutSecs = 60
	}

	switch cfg.Generator.Type {
	case "openai":
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Generator.Model == "" {
			cfg.Generator.Model = "gpt-4o-mini"
		}
	case "anthropic":
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	case "gemini":
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "GEMINI_API_KEY"
		}
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 60
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 2048
	}

	if cfg.Retrieval.MaxContextBlocks == 0 {
		cfg.Retrieval.MaxContextBlocks = 15
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// applyEnvOverrides lets the platform choose the port.
func applyEnvOverrides(cfg *AppConfig) {
	for _, key := range []string{"RAGQA_PORT", "PORT"} {
		if v := os.Getenv(key); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				cfg.Server.Port = port
				return
			}
		}
	}
}
