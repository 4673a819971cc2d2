package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"tasksync/internal/utils"

	_ "embed"
)

var (
	configOnce   sync.Once
	globalConfig *Config
	globalErr    error
)

var customConfigPath string // Custom config path set via --config flag

//go:embed config.sample.json
var sampleConfig []byte

const (
	CONFIG_DIR_PATH  = "tasksync"
	CONFIG_FILE_PATH = "config.json"
	CONFIG_FILE_PERM = 0644
)

// Environment variables that override the config file
const (
	EnvDBPath        = "TASKSYNC_DB_PATH"
	EnvBusyTimeoutMS = "TASKSYNC_BUSY_TIMEOUT_MS"
	EnvLogFile       = "TASKSYNC_LOG_FILE"
)

// Config represents the application configuration
type Config struct {
	// DBPath overrides the XDG data location of the database
	DBPath        string `json:"db_path,omitempty"`
	BusyTimeoutMS int    `json:"busy_timeout_ms" validate:"gte=0,lte=60000"`
	Verbose       bool   `json:"verbose"`
	Output        string `json:"output" validate:"oneof=text json yaml"`

	LogFile   LogFileConfig             `json:"log_file"`
	Providers map[string]ProviderConfig `json:"providers,omitempty" validate:"dive,keys,required,endkeys"`
}

// LogFileConfig configures the optional rotating log file
type LogFileConfig struct {
	Path       string `json:"path,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" validate:"gte=0"`
}

// ProviderConfig holds per-provider sync defaults
type ProviderConfig struct {
	// DeleteOrphans is the default for incremental syncs of this provider
	DeleteOrphans bool `json:"delete_orphans"`
}

// Default returns the configuration used when no file exists. Providers
// whose remote owns task existence delete orphans by default; obsidian does
// not. Entries in a config file override these per provider.
func Default() *Config {
	return &Config{
		Output: "text",
		Providers: map[string]ProviderConfig{
			"todoist":  {DeleteOrphans: true},
			"msToDo":   {DeleteOrphans: true},
			"obsidian": {DeleteOrphans: false},
		},
	}
}

// Validate checks field constraints
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("field %s failed %q validation: %w", verrs[0].Namespace(), verrs[0].Tag(), err)
		}
		return err
	}
	return nil
}

// Provider returns the settings of a provider, or zero settings if it has none
func (c *Config) Provider(id string) ProviderConfig {
	if c.Providers == nil {
		return ProviderConfig{}
	}
	return c.Providers[id]
}

// SetCustomConfigPath sets a custom config path to use instead of the default user config directory.
// If path is a directory, it looks for "config.json" inside it.
// This must be called before GetConfig() is called for the first time.
func SetCustomConfigPath(path string) {
	if path == "" {
		customConfigPath = ""
		return
	}
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		customConfigPath = filepath.Join(path, CONFIG_FILE_PATH)
	} else {
		customConfigPath = path
	}
}

// GetConfig loads the configuration once and returns it
func GetConfig() (*Config, error) {
	configOnce.Do(func() {
		configPath, err := GetConfigPath()
		if err != nil {
			globalErr = err
			return
		}
		globalConfig, globalErr = Load(configPath)
	})
	return globalConfig, globalErr
}

// GetConfigPath returns the config file location
func GetConfigPath() (string, error) {
	if customConfigPath != "" {
		return customConfigPath, nil
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, CONFIG_DIR_PATH, CONFIG_FILE_PATH), nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(dir, CONFIG_DIR_PATH, CONFIG_FILE_PATH), nil
}

// Load reads the config file at configPath, applies .env and environment
// overrides and validates the result. A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid JSON in config file %s: %w", configPath, err)
		}
	case os.IsNotExist(err):
		// defaults
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// .env next to the config file, then in the working directory. Existing
	// environment variables win over both.
	loadDotEnv(filepath.Join(filepath.Dir(configPath), ".env"), ".env")

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if cfg.Output == "" {
		cfg.Output = "text"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// applyEnv applies TASKSYNC_* overrides
func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		c.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBusyTimeoutMS)); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", EnvBusyTimeoutMS, err)
		}
		c.BusyTimeoutMS = ms
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		c.LogFile.Path = v
	}
	return nil
}

// expandPaths resolves ~ and $VARS in path settings
func (c *Config) expandPaths() error {
	var err error
	if c.DBPath, err = utils.ExpandPath(c.DBPath); err != nil {
		return fmt.Errorf("failed to expand db_path: %w", err)
	}
	if c.LogFile.Path, err = utils.ExpandPath(c.LogFile.Path); err != nil {
		return fmt.Errorf("failed to expand log_file.path: %w", err)
	}
	return nil
}

func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// WriteSample writes the embedded sample config to configPath. An existing
// file is left alone unless force is set.
func WriteSample(configPath string, force bool) error {
	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists at %s", configPath)
		}
	}
	if err := utils.EnsureParentDir(configPath); err != nil {
		return err
	}
	return os.WriteFile(configPath, sampleConfig, CONFIG_FILE_PERM)
}

// SampleConfig returns the embedded sample configuration
func SampleConfig() []byte {
	return sampleConfig
}
