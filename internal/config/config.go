package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported input and output encodings.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// Config holds the engine configuration.
type Config struct {
	Environment  string `yaml:"environment"`
	LogLevel     string `yaml:"logLevel"`
	InputFormat  string `yaml:"inputFormat"`
	OutputFormat string `yaml:"outputFormat"`
	SQLitePath   string `yaml:"sqlitePath"`
	DatabaseURL  string `yaml:"databaseUrl"`
	Workers      int    `yaml:"workers"`
	Audit        bool   `yaml:"audit"`
	AuditPath    string `yaml:"auditPath"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`

	RedisAddr string        `yaml:"redisAddr"`
	RedisTTL  time.Duration `yaml:"redisTtl"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Environment:  "development",
		LogLevel:     "info",
		InputFormat:  FormatCSV,
		OutputFormat: FormatCSV,
		Workers:      1,
		RedisTTL:     24 * time.Hour,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// ENGINE_CONFIG if set, then environment variables, and validates the result.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("ENGINE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields with every non-empty variable. Malformed numbers
// and booleans are reported together.
func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"APP_ENV":                     &c.Environment,
		"ENGINE_LOG_LEVEL":            &c.LogLevel,
		"ENGINE_INPUT_FORMAT":         &c.InputFormat,
		"ENGINE_OUTPUT_FORMAT":        &c.OutputFormat,
		"ENGINE_SQLITE_PATH":          &c.SQLitePath,
		"DATABASE_URL":                &c.DatabaseURL,
		"OTEL_EXPORTER_OTLP_ENDPOINT": &c.OTLPEndpoint,
		"ENGINE_AUDIT_PATH":           &c.AuditPath,
		"ENGINE_REDIS_ADDR":           &c.RedisAddr,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	var invalid []string
	if v := getenv("ENGINE_WORKERS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			invalid = append(invalid, "ENGINE_WORKERS")
		} else {
			c.Workers = n
		}
	}
	if v := getenv("ENGINE_AUDIT"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			invalid = append(invalid, "ENGINE_AUDIT")
		} else {
			c.Audit = b
		}
	}

	if v := getenv("ENGINE_REDIS_TTL"); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			invalid = append(invalid, "ENGINE_REDIS_TTL")
		} else {
			c.RedisTTL = d
		}
	}

	if len(invalid) > 0 {
		return errors.New("malformed environment variables: " + strings.Join(invalid, ", "))
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var invalid []string

	c.InputFormat = strings.ToLower(strings.TrimSpace(c.InputFormat))
	c.OutputFormat = strings.ToLower(strings.TrimSpace(c.OutputFormat))

	if !validFormat(c.InputFormat) {
		invalid = append(invalid, "ENGINE_INPUT_FORMAT")
	}
	if !validFormat(c.OutputFormat) {
		invalid = append(invalid, "ENGINE_OUTPUT_FORMAT")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		invalid = append(invalid, "ENGINE_LOG_LEVEL")
	}
	if c.Workers < 1 || c.Workers > 256 {
		invalid = append(invalid, "ENGINE_WORKERS")
	}
	if c.RedisTTL < 0 {
		invalid = append(invalid, "ENGINE_REDIS_TTL")
	}

	if len(invalid) > 0 {
		return errors.New("invalid configuration: " + strings.Join(invalid, ", "))
	}

	// Production runs must keep a pass/fail record of every transaction
	if (c.Environment == "production" || c.Environment == "staging") && !c.Audit {
		return errors.New("ENGINE_AUDIT must be enabled for " + c.Environment)
	}

	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

func validFormat(f string) bool {
	return f == FormatCSV || f == FormatJSONL
}
