package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete docscrape configuration
type Config struct {
	Rules        RulesConfig        `yaml:"rules" mapstructure:"rules"`
	Session      SessionConfig      `yaml:"session" mapstructure:"session"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Logging      LogConfig          `yaml:"logging" mapstructure:"logging"`
}

// RulesConfig points at the three declarative rule documents
type RulesConfig struct {
	MappingFile string `yaml:"mapping_file" mapstructure:"mapping_file"`
	MatcherFile string `yaml:"matcher_file" mapstructure:"matcher_file"`
	SourcesFile string `yaml:"sources_file" mapstructure:"sources_file"`
}

// SessionConfig controls the document session
type SessionConfig struct {
	ImplicitWait  time.Duration `yaml:"implicit_wait" mapstructure:"implicit_wait"` // Budget for every navigation
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRedirects  int           `yaml:"max_redirects" mapstructure:"max_redirects"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls the fetched-page cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitingConfig limits navigation per host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// OutputConfig controls emission of the enriched collection
type OutputConfig struct {
	JSONPath string `yaml:"json_path" mapstructure:"json_path"`
	Table    bool   `yaml:"table" mapstructure:"table"`
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
}

// LogConfig controls diagnostic logging
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
	File       string `yaml:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	cacheDir := filepath.Join(os.TempDir(), "docscrape-cache")
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".docscrape", "cache")
	}

	return &Config{
		Rules: RulesConfig{
			MappingFile: "field-mapping.json",
			MatcherFile: "matchers.json",
			SourcesFile: "sources.json",
		},
		Session: SessionConfig{
			ImplicitWait:  10 * time.Second,
			UserAgent:     "docscrape/0.1 (+https://github.com/ppiankov/docscrape)",
			MaxBodyBytes:  5_000_000,
			MaxRedirects:  5,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       cacheDir,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 1,
			BurstSize:         3,
		},
		Output: OutputConfig{
			JSONPath: "enriched.json",
			Table:    true,
		},
		Logging: LogConfig{
			Level:      "info",
			MaxSizeMB:  5,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}
