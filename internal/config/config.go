package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/flagdex/internal/domain"
)

// Supported database drivers.
const (
	DriverValkey = "valkey"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config holds the flagdex API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Keyspace KeyspaceConfig `yaml:"keyspace"`
	Notify   NotifyConfig   `yaml:"notify"`
	Authz    AuthzConfig    `yaml:"authz"`
	Flag     FlagConfig     `yaml:"flag"`
	Index    IndexConfig    `yaml:"index"`
	Repair   RepairConfig   `yaml:"repair"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, memory (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// KeyspaceConfig names the keys and hash fields the index lives in.
// Empty fields keep the defaults.
type KeyspaceConfig struct {
	EntityPrefix string `yaml:"entity_prefix"`
	ScopePrefix  string `yaml:"scope_prefix"`
	ParentField  string `yaml:"parent_field"`
	ScopeField   string `yaml:"scope_field"`
	OwnerField   string `yaml:"owner_field"`
	DeletedField string `yaml:"deleted_field"`
	FlagField    string `yaml:"flag_field"`
	ScoreField   string `yaml:"score_field"`
	GlobalIndex  string `yaml:"global_index"`
	ScopedIndex  string `yaml:"scoped_index"` // must contain {scope}
}

// NotifyConfig holds change broadcast settings.
type NotifyConfig struct {
	ParentRoom       string `yaml:"parent_room"` // {id} is replaced with the parent id
	ScopeRoom        string `yaml:"scope_room"`
	EventName        string `yaml:"event_name"`
	PublishTimeoutMs int    `yaml:"publish_timeout_ms"`
}

// AuthzConfig holds the flag permission settings.
type AuthzConfig struct {
	Moderators []string `yaml:"moderators"`
}

// FlagConfig holds flag operation settings.
type FlagConfig struct {
	OpTimeoutMs int `yaml:"op_timeout_ms"` // 0 = no per-operation deadline
}

// IndexConfig holds pagination settings.
type IndexConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// RepairConfig holds the background repair settings.
type RepairConfig struct {
	IntervalSec int `yaml:"interval_sec"` // 0 = disabled
	Concurrency int `yaml:"concurrency"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates a YAML configuration.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Notify.PublishTimeoutMs <= 0 {
		c.Notify.PublishTimeoutMs = 2000
	}
	if c.Index.DefaultPageSize <= 0 {
		c.Index.DefaultPageSize = 20
	}
	if c.Index.MaxPageSize <= 0 {
		c.Index.MaxPageSize = 100
	}
	if c.Repair.Concurrency <= 0 {
		c.Repair.Concurrency = 8
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q, %q or %q, got %q",
			DriverValkey, DriverRedis, DriverMemory, c.Database.Driver)
	}
	if c.Index.DefaultPageSize > c.Index.MaxPageSize {
		return fmt.Errorf("index.default_page_size (%d) exceeds index.max_page_size (%d)",
			c.Index.DefaultPageSize, c.Index.MaxPageSize)
	}
	if c.Flag.OpTimeoutMs < 0 {
		return fmt.Errorf("flag.op_timeout_ms must not be negative, got %d", c.Flag.OpTimeoutMs)
	}
	if c.Repair.IntervalSec < 0 {
		return fmt.Errorf("repair.interval_sec must not be negative, got %d", c.Repair.IntervalSec)
	}
	return c.KeyspaceSettings().Validate() //nolint:wrapcheck // messages already name the field
}

// KeyspaceSettings overlays the configured names on domain.DefaultKeyspace.
func (c *Config) KeyspaceSettings() domain.Keyspace {
	ks := domain.DefaultKeyspace()
	k := c.Keyspace
	overlay := []struct {
		dst *string
		src string
	}{
		{&ks.EntityPrefix, k.EntityPrefix},
		{&ks.ScopePrefix, k.ScopePrefix},
		{&ks.ParentField, k.ParentField},
		{&ks.ScopeField, k.ScopeField},
		{&ks.OwnerField, k.OwnerField},
		{&ks.DeletedField, k.DeletedField},
		{&ks.FlagField, k.FlagField},
		{&ks.ScoreField, k.ScoreField},
		{&ks.GlobalIndex, k.GlobalIndex},
		{&ks.ScopedIndex, k.ScopedIndex},
	}
	for _, o := range overlay {
		if o.src != "" {
			*o.dst = o.src
		}
	}
	return ks
}

// PublishTimeout returns the notify deadline as a duration.
func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.Notify.PublishTimeoutMs) * time.Millisecond
}

// OpTimeout returns the per-operation deadline, zero when disabled.
func (c *Config) OpTimeout() time.Duration {
	return time.Duration(c.Flag.OpTimeoutMs) * time.Millisecond
}

// RepairInterval returns the background repair period, zero when disabled.
func (c *Config) RepairInterval() time.Duration {
	return time.Duration(c.Repair.IntervalSec) * time.Second
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
