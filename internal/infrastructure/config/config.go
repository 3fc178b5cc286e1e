// Package config loads service configuration from defaults, an optional
// YAML/JSON file, a .env file and DOCQA_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// DOCQA_GENERATION_API_KEY for generation.api_key.
const EnvPrefix = "DOCQA"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Session    SessionConfig    `mapstructure:"session"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Generation GenerationConfig `mapstructure:"generation"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Index      IndexConfig      `mapstructure:"index"`
	PDF        PDFConfig        `mapstructure:"pdf"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second per client, 0 disables
	RateBurst      int           `mapstructure:"rate_burst"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// SessionConfig controls session lifetime. Expired sessions are evicted
// lazily at the start of each operation.
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"` // 0 keeps sessions forever
}

type RetrievalConfig struct {
	RelevanceThreshold    float64 `mapstructure:"relevance_threshold"`
	Parallelism           int     `mapstructure:"parallelism"`
	MaxConcurrent         int     `mapstructure:"max_concurrent"`
	NumericDisambiguation bool    `mapstructure:"numeric_disambiguation"`
	ChunkSize             int     `mapstructure:"chunk_size"`
	ChunkOverlap          int     `mapstructure:"chunk_overlap"`
}

type GenerationConfig struct {
	Provider    string        `mapstructure:"provider"` // ollama or openai
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type EmbeddingConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Parallelism int           `mapstructure:"parallelism"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type IndexConfig struct {
	Backend   string `mapstructure:"backend"` // memory or sqlite
	DataDir   string `mapstructure:"data_dir"`
	Normalize bool   `mapstructure:"normalize"`
}

type PDFConfig struct {
	ServiceURL string `mapstructure:"service_url"`
	PythonPath string `mapstructure:"python_path"` // directory holding pdf_service.py; empty means externally managed
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type WatchConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Dir        string        `mapstructure:"dir"`
	SessionID  string        `mapstructure:"session_id"`
	Extensions []string      `mapstructure:"extensions"`
	Debounce   time.Duration `mapstructure:"debounce"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SetDefaults registers every key so environment overrides are picked up
// by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_upload_bytes", 32<<20)

	v.SetDefault("session.ttl", "30m")

	v.SetDefault("retrieval.relevance_threshold", 0.25)
	v.SetDefault("retrieval.parallelism", 8)
	v.SetDefault("retrieval.max_concurrent", 8)
	v.SetDefault("retrieval.numeric_disambiguation", true)
	v.SetDefault("retrieval.chunk_size", 1000)
	v.SetDefault("retrieval.chunk_overlap", 150)

	v.SetDefault("generation.provider", "ollama")
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.model", "")
	v.SetDefault("generation.temperature", 0.2)
	v.SetDefault("generation.max_tokens", 512)
	v.SetDefault("generation.timeout", "60s")

	v.SetDefault("embedding.base_url", "http://localhost:11434")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.parallelism", 4)
	v.SetDefault("embedding.timeout", "30s")

	v.SetDefault("index.backend", "memory")
	v.SetDefault("index.data_dir", "./data")
	v.SetDefault("index.normalize", true)

	v.SetDefault("pdf.service_url", "http://localhost:8081")
	v.SetDefault("pdf.python_path", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", "5s")

	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.dir", "./documents")
	v.SetDefault("watch.session_id", "")
	v.SetDefault("watch.extensions", []string{".pdf", ".txt", ".md", ".html"})
	v.SetDefault("watch.debounce", "500ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// Load reads configuration into a Config. path may be empty, in which case
// config.{yaml,json} is searched in ./config and the working directory and
// a missing file is not an error. Values in a .env file are exported before
// the environment is read, without overriding variables already set.
func Load(v *viper.Viper, path string) (*Config, error) {
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address required"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must be >= 0"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be > 0"))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, errors.New("session.ttl must be >= 0"))
	}
	if t := c.Retrieval.RelevanceThreshold; t <= 0 || t >= 1 {
		errs = append(errs, fmt.Errorf("retrieval.relevance_threshold must be in (0, 1), got %v", t))
	}
	if c.Retrieval.ChunkSize <= 0 {
		errs = append(errs, errors.New("retrieval.chunk_size must be > 0"))
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		errs = append(errs, errors.New("retrieval.chunk_overlap must be in [0, chunk_size)"))
	}
	switch c.Generation.Provider {
	case "ollama":
	case "openai":
		if c.Generation.APIKey == "" {
			errs = append(errs, errors.New("generation.api_key required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("generation.provider must be ollama or openai, got %q", c.Generation.Provider))
	}
	if c.Generation.Timeout <= 0 {
		errs = append(errs, errors.New("generation.timeout must be > 0"))
	}
	if c.Generation.MaxTokens <= 0 {
		errs = append(errs, errors.New("generation.max_tokens must be > 0"))
	}
	switch c.Index.Backend {
	case "memory":
	case "sqlite":
		if c.Index.DataDir == "" {
			errs = append(errs, errors.New("index.data_dir required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("index.backend must be memory or sqlite, got %q", c.Index.Backend))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr required when redis is enabled"))
	}
	if c.Watch.Enabled && c.Watch.Dir == "" {
		errs = append(errs, errors.New("watch.dir required when watching is enabled"))
	}
	return errors.Join(errs...)
}
