package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// MaxPageSize is the largest page the timeline endpoint will return
	MaxPageSize = 200
	// DefaultContinueThreshold is the minimum first-page length that makes
	// the paginator ask for older pages.
	DefaultContinueThreshold = MaxPageSize / 2

	envPrefix = "TWEETCOLLECTOR_"
)

// Config holds all configuration options for the timeline collector
type Config struct {
	// API credentials
	Twitter TwitterConfig `yaml:"twitter" json:"twitter" toml:"twitter"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit" toml:"rate_limit"`

	// Pagination and filtering
	Collection CollectionConfig `yaml:"collection" json:"collection" toml:"collection"`

	// Relational store
	Database DatabaseConfig `yaml:"database" json:"database" toml:"database"`

	// Count table and checkpoints
	Output OutputConfig `yaml:"output" json:"output" toml:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging" toml:"logging"`
}

// TwitterConfig holds the OAuth1 application and user tokens
type TwitterConfig struct {
	ConsumerKey    string `yaml:"consumer_key" json:"consumer_key" toml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret" json:"consumer_secret" toml:"consumer_secret"`
	AccessToken    string `yaml:"access_token" json:"access_token" toml:"access_token"`
	AccessSecret   string `yaml:"access_secret" json:"access_secret" toml:"access_secret"`
	Account        string `yaml:"account" json:"account" toml:"account"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window" json:"requests_per_window" toml:"requests_per_window"`
	Window            time.Duration `yaml:"window" json:"window" toml:"window"`
	// FallbackWait is used when the API signals exhaustion without a reset time
	FallbackWait time.Duration `yaml:"fallback_wait" json:"fallback_wait" toml:"fallback_wait"`
	// RequestTimeout bounds a single HTTP request, not the rate-limit wait
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" toml:"request_timeout"`
}

// CollectionConfig controls pagination and filtering
type CollectionConfig struct {
	PageSize          int    `yaml:"page_size" json:"page_size" toml:"page_size"`
	ContinueThreshold int    `yaml:"continue_threshold" json:"continue_threshold" toml:"continue_threshold"`
	StrictFullPages   bool   `yaml:"strict_full_pages" json:"strict_full_pages" toml:"strict_full_pages"`
	Language          string `yaml:"language" json:"language" toml:"language"`
	Resume            bool   `yaml:"resume" json:"resume" toml:"resume"`
}

// DatabaseConfig holds the relational store settings
type DatabaseConfig struct {
	Driver       string `yaml:"driver" json:"driver" toml:"driver"`
	DSN          string `yaml:"dsn" json:"dsn" toml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns" toml:"max_open_conns"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	CountTable    string `yaml:"count_table" json:"count_table" toml:"count_table"`
	CheckpointDir string `yaml:"checkpoint_dir" json:"checkpoint_dir" toml:"checkpoint_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level" toml:"level"`
	File    string `yaml:"file" json:"file" toml:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color" toml:"no_color"`
	// Quiet drops console output; File still receives every entry
	Quiet bool `yaml:"quiet" json:"quiet" toml:"quiet"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 900,
			Window:            15 * time.Minute,
			FallbackWait:      15 * time.Minute,
			RequestTimeout:    30 * time.Second,
		},
		Collection: CollectionConfig{
			PageSize:          MaxPageSize,
			ContinueThreshold: DefaultContinueThreshold,
			Language:          "en",
		},
		Database: DatabaseConfig{
			Driver:       "sqlite3",
			DSN:          "tweets.db",
			MaxOpenConns: 1,
		},
		Output: OutputConfig{
			CountTable: "tweet_count.csv",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// HasCredentials reports whether all four OAuth values are present
func (c *Config) HasCredentials() bool {
	t := c.Twitter
	return t.ConsumerKey != "" && t.ConsumerSecret != "" && t.AccessToken != "" && t.AccessSecret != ""
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(envPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	setString("CONSUMER_KEY", &c.Twitter.ConsumerKey)
	setString("CONSUMER_SECRET", &c.Twitter.ConsumerSecret)
	setString("ACCESS_TOKEN", &c.Twitter.AccessToken)
	setString("ACCESS_SECRET", &c.Twitter.AccessSecret)
	setString("ACCOUNT", &c.Twitter.Account)

	setInt("REQUESTS_PER_WINDOW", &c.RateLimit.RequestsPerWindow)
	setDuration("RATE_WINDOW", &c.RateLimit.Window)
	setDuration("FALLBACK_WAIT", &c.RateLimit.FallbackWait)

	setInt("PAGE_SIZE", &c.Collection.PageSize)
	setInt("CONTINUE_THRESHOLD", &c.Collection.ContinueThreshold)
	setBool("STRICT_FULL_PAGES", &c.Collection.StrictFullPages)
	if v, ok := os.LookupEnv(envPrefix + "LANGUAGE"); ok {
		c.Collection.Language = v
	}

	setString("DB_DRIVER", &c.Database.Driver)
	setString("DB_DSN", &c.Database.DSN)
	setString("COUNT_TABLE", &c.Output.CountTable)
	setString("CHECKPOINT_DIR", &c.Output.CheckpointDir)

	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML or TOML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"tweetcollector.yaml",
		"tweetcollector.toml",
		".tweetcollector.yaml",
		".tweetcollector.yml",
		".tweetcollector.toml",
		filepath.Join(home, ".config", "tweetcollector", "config.yaml"),
		filepath.Join(home, ".config", "tweetcollector", "config.toml"),
		filepath.Join(home, ".tweetcollector.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.RequestsPerWindow <= 0 {
		errs = append(errs, errors.New("requests per window must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.RateLimit.FallbackWait <= 0 {
		errs = append(errs, errors.New("fallback wait must be positive"))
	}

	if c.Collection.PageSize <= 0 || c.Collection.PageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("page size must be between 1 and %d", MaxPageSize))
	}
	if c.Collection.ContinueThreshold <= 0 {
		errs = append(errs, errors.New("continue threshold must be positive"))
	}
	if c.Collection.ContinueThreshold > c.Collection.PageSize {
		errs = append(errs, errors.New("continue threshold cannot exceed page size"))
	}

	if c.Database.Driver == "" {
		errs = append(errs, errors.New("database driver is required"))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.Output.CountTable == "" {
		errs = append(errs, errors.New("count table path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(c)
		data = []byte(sb.String())
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys that are present override the loaded values.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["db"].(string); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := flags["counts"].(string); ok && v != "" {
		c.Output.CountTable = v
	}
	if v, ok := flags["language"].(string); ok {
		c.Collection.Language = v
	}
	if v, ok := flags["page-size"].(int); ok && v > 0 {
		c.Collection.PageSize = v
	}
	if v, ok := flags["continue-threshold"].(int); ok && v > 0 {
		c.Collection.ContinueThreshold = v
	}
	if v, ok := flags["strict-pages"].(bool); ok {
		c.Collection.StrictFullPages = v
	}
	if v, ok := flags["resume"].(bool); ok {
		c.Collection.Resume = v
	}
	if v, ok := flags["account"].(string); ok && v != "" {
		c.Twitter.Account = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["quiet"].(bool); ok && v {
		c.Logging.Quiet = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tweetcollector.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
