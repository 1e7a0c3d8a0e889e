// Package config handles vxh configuration: a YAML file under the user's
// config directory, overridden by environment variables and then by flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the directory name under XDG_CONFIG_HOME and XDG_DATA_HOME.
	ConfigDir = "vxh"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
	// HistoryFile is the default history database name.
	HistoryFile = "history.db"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultRateLimit     = 10.0
	DefaultWorkers       = 3
	DefaultPollInterval  = 10 * time.Second
	DefaultMaxWait       = 5 * time.Minute
	DefaultMaxPollMisses = 5
)

// Configuration errors.
var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrSecretInConfig = errors.New("config file must not contain a password")
)

// Config is the vxh configuration. It never holds the password.
type Config struct {
	Host          string      `yaml:"host,omitempty"`
	Username      string      `yaml:"username,omitempty"`
	VerifyTLS     bool        `yaml:"verify_tls"`
	Timeout       Duration    `yaml:"timeout,omitempty"`
	RateLimit     float64     `yaml:"rate_limit,omitempty"`
	Workers       int         `yaml:"workers,omitempty"`
	PollInterval  Duration    `yaml:"poll_interval,omitempty"`
	MaxWait       Duration    `yaml:"max_wait,omitempty"`
	MaxPollMisses int         `yaml:"max_poll_misses,omitempty"`
	Kinds         []string    `yaml:"kinds,omitempty"`
	PrecheckPath  string      `yaml:"precheck_path,omitempty"`
	OutputDir     string      `yaml:"output_dir,omitempty"`
	HistoryDB     string      `yaml:"history_db,omitempty"`
	MetricsFile   string      `yaml:"metrics_file,omitempty"`
	JournalFile   string      `yaml:"journal_file,omitempty"`
	LogLevel      string      `yaml:"log_level,omitempty"`
	Kafka         KafkaConfig `yaml:"kafka,omitempty"`
}

// KafkaConfig configures the Kafka report sink. It is off without brokers.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
}

// Enabled reports whether reports should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Defaults returns a config with every default applied.
func Defaults() *Config {
	return &Config{
		Timeout:       Duration(DefaultTimeout),
		RateLimit:     DefaultRateLimit,
		Workers:       DefaultWorkers,
		PollInterval:  Duration(DefaultPollInterval),
		MaxWait:       Duration(DefaultMaxWait),
		MaxPollMisses: DefaultMaxPollMisses,
		HistoryDB:     DefaultHistoryPath(),
	}
}

// Path returns the path to the config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/vxh/config.yml.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, ConfigFile)
}

// DefaultHistoryPath returns the default history database path.
// Respects XDG_DATA_HOME, defaults to ~/.local/share/vxh/history.db.
func DefaultHistoryPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, ConfigDir, HistoryFile)
}

// Load reads the config file at path over the defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := rejectSecrets(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.OutputDir = ExpandPath(cfg.OutputDir)
	cfg.HistoryDB = ExpandPath(cfg.HistoryDB)
	cfg.MetricsFile = ExpandPath(cfg.MetricsFile)
	cfg.JournalFile = ExpandPath(cfg.JournalFile)
	return cfg, nil
}

// rejectSecrets fails if the document carries a top-level password key.
func rejectSecrets(data []byte) error {
	var keys map[string]any
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	for k := range keys {
		switch strings.ToLower(k) {
		case "password", "secret", "pass":
			return fmt.Errorf("%w (found %q); use VXRAIL_PASSWORD or the prompt", ErrSecretInConfig, k)
		}
	}
	return nil
}

// Save writes the config to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks value ranges. The host is not required here because the
// credential chain may still supply it.
func (c *Config) Validate() error {
	var problems []string
	if c.Timeout.Std() <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.Workers <= 0 {
		problems = append(problems, "workers must be positive")
	}
	if c.PollInterval.Std() <= 0 {
		problems = append(problems, "poll_interval must be positive")
	}
	if c.MaxWait.Std() < c.PollInterval.Std() {
		problems = append(problems, "max_wait must be at least poll_interval")
	}
	if c.MaxPollMisses <= 0 {
		problems = append(problems, "max_poll_misses must be positive")
	}
	if c.RateLimit < 0 {
		problems = append(problems, "rate_limit must not be negative")
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		problems = append(problems, "kafka.topic is required when kafka.brokers is set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// HelpfulConfigMessage explains where settings come from.
func HelpfulConfigMessage() string {
	configPath := Path()
	return fmt.Sprintf(`No VxRail Manager configured.

Tip: Create %s to set a default manager:
  mkdir -p %s
  printf 'host: vxm.example.net\nusername: administrator@vsphere.local\n' > %s

or set VXRAIL_HOST and VXRAIL_USERNAME. The password is read from
VXRAIL_PASSWORD or prompted for; it is never stored in the config file.`,
		configPath,
		filepath.Dir(configPath),
		configPath)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
