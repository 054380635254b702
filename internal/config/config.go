package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"

	"github.com/curia-rag/curia/internal/chunk"
	"github.com/curia-rag/curia/internal/errors"
	"github.com/curia-rag/curia/internal/ledger"
)

// Default values, matching a stock Ollama install with the legal models pulled.
const (
	DefaultDataPath       = "data/raw/"
	DefaultDBPath         = "data/databases/"
	DefaultCollectionName = "curia_docs"
	DefaultEmbedModel     = "all-minilm:l6-v2"
	DefaultLLM            = "initium/law_model"
	DefaultOllamaHost     = "http://localhost:11434"
	DefaultTimeout        = 120 * time.Second
	DefaultBatchSize      = 1
	DefaultTopK           = 2
	DefaultLogLevel       = "info"
)

// FileNames are the config files looked up in the working directory, in order.
var FileNames = []string{"curia.yaml", "curia.yml"}

// Config is the complete curia configuration.
type Config struct {
	Data    DataConfig    `yaml:"data" json:"data"`
	Models  ModelsConfig  `yaml:"models" json:"models"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// DataConfig locates the documents and the database.
type DataConfig struct {
	DataPath       string `yaml:"data_path" json:"data_path"`
	DBPath         string `yaml:"db_path" json:"db_path"`
	CollectionName string `yaml:"collection_name" json:"collection_name"`
}

// ModelsConfig names the Ollama models.
type ModelsConfig struct {
	EmbedModelName string        `yaml:"embed_model_name" json:"embed_model_name"`
	LLMName        string        `yaml:"llm_name" json:"llm_name"`
	OllamaHost     string        `yaml:"ollama_host" json:"ollama_host"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
}

// IndexConfig tunes chunking, batching and retrieval.
type IndexConfig struct {
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	Overlap   int `yaml:"overlap" json:"overlap"`
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	TopK      int `yaml:"top_k" json:"top_k"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`

	// File is the log file path; empty means ~/.curia/logs/curia.log.
	File string `yaml:"file" json:"file"`
}

// Overrides are explicit values (usually CLI flags) that win over everything else.
// Nil or empty fields are not applied.
type Overrides struct {
	DataPath   string
	DBPath     string
	Collection string
	EmbedModel string
	LLM        string
	OllamaHost string
	LogLevel   string
	Timeout    time.Duration
	ChunkSize  *int
	Overlap    *int
	BatchSize  *int
	TopK       *int
}

// NewConfig creates a Config with the defaults.
func NewConfig() *Config {
	return &Config{
		Data: DataConfig{
			DataPath:       DefaultDataPath,
			DBPath:         DefaultDBPath,
			CollectionName: DefaultCollectionName,
		},
		Models: ModelsConfig{
			EmbedModelName: DefaultEmbedModel,
			LLMName:        DefaultLLM,
			OllamaHost:     DefaultOllamaHost,
			Timeout:        DefaultTimeout,
		},
		Index: IndexConfig{
			ChunkSize: chunk.DefaultSize,
			Overlap:   chunk.DefaultOverlap,
			BatchSize: DefaultBatchSize,
			TopK:      DefaultTopK,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}

// GetUserConfigPath returns the user-wide configuration file:
//   - $XDG_CONFIG_HOME/curia/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/curia/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "curia", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "curia", "config.yaml")
	}
	return filepath.Join(home, ".config", "curia", "config.yaml")
}

// Resolve builds the effective configuration. Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/curia/config.yaml)
//  3. The config file: path if given (it must exist), otherwise curia.yaml
//     in the working directory if present
//  4. CURIA_* environment variables
//  5. Overrides
func Resolve(path string, o Overrides) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if !fileExists(path) {
			return nil, errors.New(errors.ErrCodeConfigNotFound, fmt.Sprintf("config file %s not found", path), nil).
				WithSuggestion("create one with `curia config init`")
		}
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	} else {
		for _, name := range FileNames {
			if fileExists(name) {
				if err := cfg.loadYAML(name); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.apply(o)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML decodes path on top of c: keys present in the file replace the
// current values, absent keys keep them. Unknown keys are rejected.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies CURIA_* environment variables.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"CURIA_DATA_PATH":   &c.Data.DataPath,
		"CURIA_DB_PATH":     &c.Data.DBPath,
		"CURIA_COLLECTION":  &c.Data.CollectionName,
		"CURIA_EMBED_MODEL": &c.Models.EmbedModelName,
		"CURIA_LLM":         &c.Models.LLMName,
		"CURIA_OLLAMA_HOST": &c.Models.OllamaHost,
		"CURIA_LOG_LEVEL":   &c.Logging.Level,
		"CURIA_LOG_FILE":    &c.Logging.File,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CURIA_CHUNK_SIZE": &c.Index.ChunkSize,
		"CURIA_OVERLAP":    &c.Index.Overlap,
		"CURIA_BATCH_SIZE": &c.Index.BatchSize,
		"CURIA_TOP_K":      &c.Index.TopK,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("%s must be an integer, got %q", key, v), err)
		}
		*dst = n
	}

	if v := os.Getenv("CURIA_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("CURIA_TIMEOUT must be a duration, got %q", v), err)
		}
		c.Models.Timeout = d
	}
	return nil
}

func (c *Config) apply(o Overrides) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&c.Data.DataPath, o.DataPath)
	setString(&c.Data.DBPath, o.DBPath)
	setString(&c.Data.CollectionName, o.Collection)
	setString(&c.Models.EmbedModelName, o.EmbedModel)
	setString(&c.Models.LLMName, o.LLM)
	setString(&c.Models.OllamaHost, o.OllamaHost)
	setString(&c.Logging.Level, o.LogLevel)

	if o.Timeout > 0 {
		c.Models.Timeout = o.Timeout
	}

	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&c.Index.ChunkSize, o.ChunkSize)
	setInt(&c.Index.Overlap, o.Overlap)
	setInt(&c.Index.BatchSize, o.BatchSize)
	setInt(&c.Index.TopK, o.TopK)
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Data.CollectionName) == "" {
		return errors.ConfigError("data.collection_name must not be empty", nil)
	}
	if c.Data.DataPath == "" {
		return errors.ConfigError("data.data_path must not be empty", nil)
	}
	if c.Data.DBPath == "" {
		return errors.ConfigError("data.db_path must not be empty", nil)
	}
	if c.Models.EmbedModelName == "" {
		return errors.ConfigError("models.embed_model_name must not be empty", nil)
	}
	if c.Models.Timeout < 0 {
		return errors.ConfigError(fmt.Sprintf("models.timeout must be non-negative, got %s", c.Models.Timeout), nil)
	}

	if err := c.ChunkOptions().Validate(); err != nil {
		return errors.ConfigError(err.Error(), err)
	}
	if c.Index.BatchSize < 0 {
		return errors.ConfigError(fmt.Sprintf("index.batch_size must be non-negative, got %d", c.Index.BatchSize), nil)
	}
	if c.Index.TopK < 0 {
		return errors.ConfigError(fmt.Sprintf("index.top_k must be non-negative, got %d", c.Index.TopK), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return errors.ConfigError(fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level), nil)
	}

	return nil
}

// Warnings lists accepted but suspicious settings.
func (c *Config) Warnings() []string {
	var out []string
	if err := c.ChunkOptions().Warning(); err != nil {
		out = append(out, "index: "+err.Error())
	}
	return out
}

// ChunkOptions returns the chunker settings.
func (c *Config) ChunkOptions() chunk.Options {
	return chunk.Options{Size: c.Index.ChunkSize, Overlap: c.Index.Overlap}
}

// LedgerPath returns the processed-files ledger inside the db directory.
func (c *Config) LedgerPath() string {
	return ledger.Path(c.Data.DBPath)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
