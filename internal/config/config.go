// Package config manages YAML-based configuration and CLI flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/CageChen/cloverdrive/internal/assist"
	"github.com/CageChen/cloverdrive/internal/logging"
	"github.com/CageChen/cloverdrive/internal/vault"
)

// APIKeyEnv names the environment variable holding the generation API key.
const APIKeyEnv = "CLOVERDRIVE_API_KEY"

// AssistConfig configures the content generation backend.
type AssistConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Models   []string      `yaml:"models"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  uint64        `yaml:"retries"`

	// APIKey is read from the environment only and never written back.
	APIKey string `yaml:"-"`
}

// Config holds all configuration options for CloverDrive
type Config struct {
	DataDir   string `yaml:"data_dir"`
	VaultDir  string `yaml:"vault_dir"`
	TrashDir  string `yaml:"trash_dir"`
	Collision string `yaml:"collision"`

	Port  int    `yaml:"port"`
	Watch bool   `yaml:"watch"`
	Open  bool   `yaml:"open"`
	UIDir string `yaml:"ui_dir,omitempty"`

	Log    logging.Config `yaml:"log"`
	Assist AssistConfig   `yaml:"assist"`

	// Internal: path to config file for saving
	configPath string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DataDir:   DefaultDataDir(),
		VaultDir:  vault.DefaultVaultDir,
		TrashDir:  vault.DefaultTrashDir,
		Collision: string(vault.CollisionOverwrite),
		Port:      8080,
		Watch:     true,
		Open:      false,
		Log: logging.Config{
			Level:  "info",
			Format: "console",
		},
		Assist: AssistConfig{
			Endpoint: "http://127.0.0.1:8787/v1/generate",
			Models:   append([]string(nil), assist.DefaultModels...),
			Timeout:  30 * time.Second,
			Retries:  1,
		},
	}
}

// DefaultDataDir is the per-user application data directory.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "CloverDrive"
	}
	return filepath.Join(dir, "CloverDrive")
}

// GetConfigDir returns the config directory path
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/cloverdrive"
	}
	return filepath.Join(home, ".config", "cloverdrive")
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load loads configuration from file and command line arguments (without
// the program name).
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	// Accept `cloverdrive serve --port 9000` as well
	if len(args) > 0 && args[0] == "serve" {
		args = args[1:]
	}

	fs := flag.NewFlagSet("cloverdrive", flag.ContinueOnError)
	dataDir := fs.String("data", "", "Directory holding the vault and trash folders")
	port := fs.Int("port", 0, "HTTP server port")
	open := fs.Bool("open", false, "Open browser on startup")
	watch := fs.Bool("watch", true, "Push change events when the vault changes on disk")
	collision := fs.String("collision", "", "Name collision policy (overwrite/rename/reject)")
	logLevel := fs.String("log-level", "", "Log level (debug/info/warn/error)")
	configFile := fs.String("config", "", "Configuration file path")

	fs.StringVar(dataDir, "d", "", "Data directory (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// Determine config file path
	var cfgPath string
	if *configFile != "" {
		cfgPath = *configFile
	} else {
		globalConfig := GetConfigPath()
		if _, err := os.Stat(globalConfig); err == nil {
			cfgPath = globalConfig
		} else if _, err := os.Stat("cloverdrive.yaml"); err == nil {
			cfgPath = "cloverdrive.yaml"
		}
	}

	if cfgPath != "" {
		if err := cfg.loadFromFile(cfgPath); err != nil && *configFile != "" {
			// Only fail if the user asked for this file explicitly
			return nil, err
		}
		cfg.configPath = cfgPath
	} else {
		cfg.configPath = GetConfigPath()
	}

	// Command line flags override the config file only when explicitly set
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if set["open"] {
		cfg.Open = *open
	}
	if set["watch"] {
		cfg.Watch = *watch
	}
	if *collision != "" {
		cfg.Collision = *collision
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	cfg.Assist.APIKey = os.Getenv(APIKeyEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be fixed up silently.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if _, err := vault.ParseCollisionPolicy(c.Collision); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.DataDir == "" {
		return errors.New("config: data_dir is empty")
	}
	abs, err := filepath.Abs(c.DataDir)
	if err != nil {
		return fmt.Errorf("config: data_dir: %w", err)
	}
	c.DataDir = abs
	if c.Assist.Timeout <= 0 {
		c.Assist.Timeout = 30 * time.Second
	}
	return nil
}

// CollisionPolicy returns the parsed collision policy.
func (c *Config) CollisionPolicy() vault.CollisionPolicy {
	p, err := vault.ParseCollisionPolicy(c.Collision)
	if err != nil {
		return vault.CollisionOverwrite
	}
	return p
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Save saves the current configuration to the config file
func (c *Config) Save() error {
	// A relative data dir would move with the working directory of the next run
	if c.DataDir != "" {
		abs, err := filepath.Abs(c.DataDir)
		if err != nil {
			return err
		}
		c.DataDir = abs
	}

	configDir := filepath.Dir(c.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.configPath, data, 0644)
}

// WriteDefaults writes the default configuration to the config file when
// there is none yet. Values given as flags for this run are not persisted.
func (c *Config) WriteDefaults() error {
	if c.Exists() {
		return nil
	}
	def := DefaultConfig()
	if err := def.Validate(); err != nil {
		return err
	}
	def.configPath = c.configPath
	return def.Save()
}

// Exists reports whether the config file is present on disk.
func (c *Config) Exists() bool {
	_, err := os.Stat(c.configPath)
	return err == nil
}

// GetConfigFilePath returns the path to the config file
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}
