package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ActionConfig struct {
	Name      string            `yaml:"name"`
	DryRun    bool              `yaml:"dry_run"`
	BatchSize int               `yaml:"batch_size"`
	Settings  map[string]string `yaml:"settings"`
}

type Config struct {
	ApiURL     string `yaml:"api_url"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	BucketName string `yaml:"bucket_name"`
	Region     string `yaml:"region"`

	// Negative sizes leave that side of the range open.
	MinSize    int64  `yaml:"min_size_bytes"`
	MaxSize    int64  `yaml:"max_size_bytes"`
	KeyPattern string `yaml:"key_pattern"`
	SourceFile string `yaml:"source_file"`
	OutputDir  string `yaml:"output_dir"`
	LogLevel   string `yaml:"log_level"`

	Action ActionConfig `yaml:"action"`
}

func defaults() *Config {
	return &Config{
		MinSize:   -1,
		MaxSize:   -1,
		OutputDir: ".",
		LogLevel:  "info",
		Action: ActionConfig{
			BatchSize: 100,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE, and finally the environment (including a local .env file).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using environment variables only")
	}

	config := defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	return config, nil
}

func loadFile(path string, config *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(config *Config) error {
	config.ApiURL = getEnv("API_URL", config.ApiURL)
	config.AccessKey = getEnv("ACCESS_KEY", config.AccessKey)
	config.SecretKey = getEnv("SECRET_KEY", config.SecretKey)
	config.BucketName = getEnv("BUCKET_NAME", config.BucketName)
	config.Region = getEnv("REGION", config.Region)
	config.KeyPattern = getEnv("KEY_PATTERN", config.KeyPattern)
	config.SourceFile = getEnv("SOURCE_FILE", config.SourceFile)
	config.OutputDir = getEnv("OUTPUT_DIR", config.OutputDir)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.Action.Name = getEnv("ACTION_NAME", config.Action.Name)

	var err error
	if config.MinSize, err = getEnvInt64("MIN_SIZE_BYTES", config.MinSize); err != nil {
		return err
	}
	if config.MaxSize, err = getEnvInt64("MAX_SIZE_BYTES", config.MaxSize); err != nil {
		return err
	}
	if config.Action.DryRun, err = getEnvBool("ACTION_DRY_RUN", config.Action.DryRun); err != nil {
		return err
	}
	batchSize, err := getEnvInt64("ACTION_BATCH_SIZE", int64(config.Action.BatchSize))
	if err != nil {
		return err
	}
	config.Action.BatchSize = int(batchSize)

	return nil
}

// Validate checks the settings a run cannot start without.
func (c *Config) Validate() error {
	if c.MinSize >= 0 && c.MaxSize >= 0 && c.MinSize > c.MaxSize {
		return fmt.Errorf("min size %d is greater than max size %d", c.MinSize, c.MaxSize)
	}
	if c.Action.BatchSize < 0 {
		return errors.New("action batch size must not be negative")
	}
	if c.BucketName == "" && c.NeedsStore() {
		return errors.New("bucket name is required")
	}
	return nil
}

// HasAction reports whether an action is configured.
func (c *Config) HasAction() bool {
	return strings.TrimSpace(c.Action.Name) != ""
}

// NeedsStore reports whether the run talks to the bucket at all: either to list
// it or to execute an action against it.
func (c *Config) NeedsStore() bool {
	if c.SourceFile == "" {
		return true
	}
	return c.HasAction() && !c.Action.DryRun
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return b, nil
}
