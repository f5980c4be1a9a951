package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vango-dev/vprompt/internal/errors"
	"github.com/vango-dev/vprompt/pkg/tokenizer"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "vprompt.json"

	// DefaultInspectAddr is the default inspector listen address.
	DefaultInspectAddr = "localhost:7070"

	// DefaultInspectPipe is the pipe used for data read by the inspector.
	DefaultInspectPipe = "stdin"

	// DefaultArchivePrefix is the default key prefix of archived snapshots.
	DefaultArchivePrefix = "snapshots/"

	// DefaultMetricsNamespace is the default prometheus namespace.
	DefaultMetricsNamespace = "vprompt"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"
)

// Config represents the complete vprompt.json configuration.
type Config struct {
	// MaxTokens is the prompt token budget. Zero means unlimited.
	MaxTokens int `json:"maxTokens,omitempty"`

	// Separator is written between rendered leaves.
	Separator string `json:"separator,omitempty"`

	// Tokenizer names the tokenizer: "approx", "cl100k_base" or "o200k_base".
	Tokenizer string `json:"tokenizer,omitempty"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"logLevel,omitempty"`

	// Inspect contains inspector server configuration.
	Inspect InspectConfig `json:"inspect,omitempty"`

	// Archive contains snapshot archive configuration.
	Archive ArchiveConfig `json:"archive,omitempty"`

	// Metrics contains prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// InspectConfig contains inspector server settings.
type InspectConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty"`

	// Pipe is the name of the pipe stdin lines are pumped through.
	Pipe string `json:"pipe,omitempty"`
}

// ArchiveConfig contains snapshot archive settings. Records go to S3 when
// Bucket is set and to Dir otherwise.
type ArchiveConfig struct {
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Region string `json:"region,omitempty"`
	Dir    string `json:"dir,omitempty"`
}

// MetricsConfig contains prometheus settings.
type MetricsConfig struct {
	// Enabled serves /metrics from the inspector.
	Enabled bool `json:"enabled,omitempty"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified directory.
// It looks for vprompt.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("VP160").
				WithDetail("No vprompt.json found in " + filepath.Dir(path)).
				Wrap(err)
		}
		return nil, errors.New("VP160").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("VP160").
			WithDetail("Failed to parse vprompt.json: " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("VP160").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("VP160").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Tokenizer == "" {
		c.Tokenizer = tokenizer.NameApprox
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Inspect.Addr == "" {
		c.Inspect.Addr = DefaultInspectAddr
	}
	if c.Inspect.Pipe == "" {
		c.Inspect.Pipe = DefaultInspectPipe
	}
	if c.Archive.Bucket != "" && c.Archive.Prefix == "" {
		c.Archive.Prefix = DefaultArchivePrefix
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxTokens < 0 {
		return errors.New("VP161").
			WithDetail("maxTokens must not be negative").
			WithSuggestion("Use 0 for an unlimited budget")
	}
	switch c.Tokenizer {
	case tokenizer.NameApprox, tokenizer.NameCL100K, tokenizer.NameO200K:
	default:
		return errors.New("VP161").
			WithDetail("Unknown tokenizer " + c.Tokenizer).
			WithSuggestion("Use approx, cl100k_base or o200k_base")
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		return errors.New("VP161").
			WithDetail("Unknown log level " + c.LogLevel).
			WithSuggestion("Use debug, info, warn or error")
	}
	if c.Archive.Bucket != "" && c.Archive.Dir != "" {
		return errors.New("VP161").
			WithDetail("archive.bucket and archive.dir are mutually exclusive")
	}
	return nil
}

// Level returns the configured slog level, or info when it is unknown.
func (c *Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// ArchiveEnabled reports whether snapshots can be archived.
func (c *Config) ArchiveEnabled() bool {
	return c.Archive.Bucket != "" || c.Archive.Dir != ""
}

// ArchiveDir returns the disk archive directory, resolved against the
// config directory.
func (c *Config) ArchiveDir() string {
	if c.Archive.Dir == "" || filepath.IsAbs(c.Archive.Dir) {
		return c.Archive.Dir
	}
	return filepath.Join(c.Dir(), c.Archive.Dir)
}

// Exists checks if a vprompt.json exists in the directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing vprompt.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("VP160").
				WithDetail("No vprompt.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or its closest parent holding a vprompt.json.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}
	return Load(root)
}
