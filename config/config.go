package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvGithubToken is the environment variable name for the GitHub API token
	EnvGithubToken = "ISSUEDESK_GITHUB_TOKEN"

	envPrefix = "ISSUEDESK"
)

const (
	KeyGitHubToken    = "github_token"
	KeyDatabasePath   = "database_path"
	KeyRepositories   = "repositories"
	KeyCacheMaxAge    = "cache_max_age"
	KeyWorkers        = "workers"
	KeyListenAddr     = "listen_addr"
	KeyRefreshRetries = "refresh_retries"
)

const (
	DefaultDatabasePath   = "issue_desk.db"
	DefaultCacheMaxAge    = 5 * time.Minute
	DefaultWorkers        = 5
	DefaultListenAddr     = "127.0.0.1:7420"
	DefaultRefreshRetries = 3
)

// Config represents the application configuration
type Config struct {
	// GitHub API token for authentication (optional, can be set via ISSUEDESK_GITHUB_TOKEN env var)
	GitHubToken string `mapstructure:"github_token"`

	// Path to the SQLite database file
	DatabasePath string `mapstructure:"database_path"`

	// Repositories pinned on first run, in the format "owner/name"
	Repositories []string `mapstructure:"repositories"`

	// How long a full refresh is served from the cache
	CacheMaxAge time.Duration `mapstructure:"cache_max_age"`

	// Parallel comment fetches per repository
	Workers int `mapstructure:"workers"`

	// Address the local HTTP server listens on
	ListenAddr string `mapstructure:"listen_addr"`

	// Attempts at refreshing an issue after a comment change
	RefreshRetries int `mapstructure:"refresh_retries"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyGitHubToken, "")
	v.SetDefault(KeyDatabasePath, DefaultDatabasePath)
	v.SetDefault(KeyRepositories, []string{})
	v.SetDefault(KeyCacheMaxAge, DefaultCacheMaxAge.String())
	v.SetDefault(KeyWorkers, DefaultWorkers)
	v.SetDefault(KeyListenAddr, DefaultListenAddr)
	v.SetDefault(KeyRefreshRetries, DefaultRefreshRetries)
}

// LoadConfig loads the configuration from a JSON file, letting ISSUEDESK_*
// environment variables override it
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.GitHubToken = strings.TrimSpace(config.GitHubToken)

	if config.DatabasePath == "" {
		config.DatabasePath = DefaultDatabasePath
	}

	// Make database path absolute if it's relative
	if !filepath.IsAbs(config.DatabasePath) {
		configDir := filepath.Dir(path)
		config.DatabasePath = filepath.Join(configDir, config.DatabasePath)
	}

	if config.CacheMaxAge <= 0 {
		config.CacheMaxAge = DefaultCacheMaxAge
	}
	if config.RefreshRetries < 1 {
		config.RefreshRetries = 1
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}

	return &config, nil
}

// SaveConfig saves the configuration to a JSON file. Environment overrides
// are not written back.
func SaveConfig(config *Config, path string) error {
	v := viper.New()
	v.SetConfigType("json")

	repos := config.Repositories
	if repos == nil {
		repos = []string{}
	}

	v.Set(KeyGitHubToken, config.GitHubToken)
	v.Set(KeyDatabasePath, config.DatabasePath)
	v.Set(KeyRepositories, repos)
	v.Set(KeyCacheMaxAge, config.CacheMaxAge.String())
	v.Set(KeyWorkers, config.Workers)
	v.Set(KeyListenAddr, config.ListenAddr)
	v.Set(KeyRefreshRetries, config.RefreshRetries)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig creates a default configuration file if it doesn't exist
func CreateDefaultConfig(path string) error {
	// Check if the file already exists
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, don't overwrite
	}

	config := &Config{
		GitHubToken:    "",
		DatabasePath:   DefaultDatabasePath,
		Repositories:   []string{"example/repo"},
		CacheMaxAge:    DefaultCacheMaxAge,
		Workers:        DefaultWorkers,
		ListenAddr:     DefaultListenAddr,
		RefreshRetries: DefaultRefreshRetries,
	}

	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return SaveConfig(config, path)
}
