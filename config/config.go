package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DataPaths holds data directory and file path configuration.
// These paths can be overridden via environment variables.
type DataPaths struct {
	// DataDir is the base data directory (CASETRACK_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// SQLitePath is the SQLite database file path (CASETRACK_SQLITE_PATH, default: ${DataDir}/casetrack.db)
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Config holds all configuration for the casetrack service
type Config struct {
	// DataPaths holds all data directory configuration
	DataPaths DataPaths `mapstructure:"data_paths"`

	API struct {
		Version   string `mapstructure:"version"`
		Host      string `mapstructure:"host"`
		Port      int    `mapstructure:"port"`
		RateLimit struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			Burst             int `mapstructure:"burst"`
		} `mapstructure:"rate_limit"`
	} `mapstructure:"api"`

	Auth struct {
		JWTSecret  string        `mapstructure:"jwt_secret"`
		JWTExpiry  time.Duration `mapstructure:"jwt_expiry"`
		BcryptCost int           `mapstructure:"bcrypt_cost"`
	} `mapstructure:"auth"`

	Hooks struct {
		// Budget bounds the execution time of a single hook invocation.
		Budget time.Duration `mapstructure:"budget"`
	} `mapstructure:"hooks"`

	// Activity configures the optional Redis stream publisher for the
	// activity log. Disabled by default; recording to SQLite always happens.
	Activity struct {
		Redis struct {
			Enabled  bool   `mapstructure:"enabled"`
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"activity"`
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.sqlite_path", "") // Empty = derive from data_dir

	viper.SetDefault("api.version", "v2")
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8081)
	viper.SetDefault("api.rate_limit.requests_per_second", 100)
	viper.SetDefault("api.rate_limit.burst", 100)

	viper.SetDefault("auth.jwt_secret", "")
	viper.SetDefault("auth.jwt_expiry", 24*time.Hour)
	viper.SetDefault("auth.bcrypt_cost", 12)

	viper.SetDefault("hooks.budget", 5*time.Second)

	viper.SetDefault("activity.redis.enabled", false)
	viper.SetDefault("activity.redis.addr", "localhost:6379")
	viper.SetDefault("activity.redis.password", "")
	viper.SetDefault("activity.redis.db", 0)
}

// loadFromEnv binds environment variable overrides
func loadFromEnv() {
	viper.SetEnvPrefix("CASETRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("data_paths.data_dir", "CASETRACK_DATA_DIR")
	_ = viper.BindEnv("data_paths.sqlite_path", "CASETRACK_SQLITE_PATH")
	_ = viper.BindEnv("auth.jwt_secret", "CASETRACK_JWT_SECRET")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	config.ResolveDataPaths()

	return &config, nil
}

// ResolveDataPaths resolves all data paths, deriving from DataDir if not explicitly set
func (c *Config) ResolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	if c.DataPaths.SQLitePath == "" {
		c.DataPaths.SQLitePath = filepath.Join(dataDir, "casetrack.db")
	} else if !filepath.IsAbs(c.DataPaths.SQLitePath) {
		c.DataPaths.SQLitePath = filepath.Clean(c.DataPaths.SQLitePath)
	}

	c.DataPaths.DataDir = dataDir
}

// GetDataDir returns the resolved base data directory
func (c *Config) GetDataDir() string {
	if c.DataPaths.DataDir == "" {
		return "./data"
	}
	return c.DataPaths.DataDir
}

// GetSQLitePath returns the resolved SQLite database path
func (c *Config) GetSQLitePath() string {
	if c.DataPaths.SQLitePath == "" {
		return filepath.Join(c.GetDataDir(), "casetrack.db")
	}
	return c.DataPaths.SQLitePath
}

// validateConfig validates the configuration for security and correctness
func validateConfig(config *Config) error {
	if config.API.Port < 1 || config.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d (must be 1-65535)", config.API.Port)
	}
	if config.API.Host == "" {
		return fmt.Errorf("invalid API host: host cannot be empty")
	}
	if config.API.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit requests_per_second must be positive")
	}
	if config.API.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	// JWT secret strength: 256 bits minimum, reject obvious placeholder values.
	if config.Auth.JWTSecret != "" {
		if len(config.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT secret must be at least 32 characters (256 bits)")
		}
		weakSecrets := []string{
			"secret", "password", "changeme", "default", "admin",
			"jwt_secret", "supersecret", "mysecret", "test", "example",
		}
		lowerSecret := strings.ToLower(config.Auth.JWTSecret)
		for _, weak := range weakSecrets {
			if strings.Contains(lowerSecret, weak) {
				return fmt.Errorf("JWT secret appears to contain a weak/default value: use a cryptographically secure random string")
			}
		}
	}

	if config.Auth.JWTExpiry <= 0 {
		return fmt.Errorf("JWT expiry must be positive")
	}
	if config.Auth.BcryptCost < 10 || config.Auth.BcryptCost > 31 {
		return fmt.Errorf("invalid bcrypt cost: %d (must be 10-31)", config.Auth.BcryptCost)
	}

	if config.Hooks.Budget <= 0 {
		return fmt.Errorf("hook budget must be positive")
	}

	if config.Activity.Redis.Enabled && config.Activity.Redis.Addr == "" {
		return fmt.Errorf("activity redis enabled but addr is empty")
	}

	return nil
}
