// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // websocket Origin allow-list; empty = any
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StoreConfig struct {
	Name string `yaml:"name"`
}

// DefaultTemperature keeps model replies close to the retrieved facts.
const DefaultTemperature = 0.2

type AssistantConfig struct {
	LLMTimeout        time.Duration `yaml:"llm_timeout"`
	MaxOutputTokens   int           `yaml:"max_output_tokens"`
	Temperature       *float64      `yaml:"temperature"` // sent on every call; 0 is a valid value
	ProductCap        int           `yaml:"product_cap"`
	KnowledgeCap      int           `yaml:"knowledge_cap"`
	HistoryDepth      int           `yaml:"history_depth"`
	ContextDepth      int           `yaml:"context_depth"`
	OutboundBuffer    int           `yaml:"outbound_buffer"`
	MaxUtteranceBytes int           `yaml:"max_utterance_bytes"`
}

type AIConfig struct {
	Provider        string `yaml:"provider"` // openai|gemini|none; the other configured provider is the failover
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"` // any OpenAI-compatible gateway
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	DefaultModel    string `yaml:"default_model"`
	GeminiModel     string `yaml:"gemini_model"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent LLM calls
	CountTokens     bool   `yaml:"count_tokens"`     // tiktoken prompt pre-count
}

type CatalogConfig struct {
	Source       string `yaml:"source"`        // memory|postgres
	FixturesPath string `yaml:"fixtures_path"` // memory source; empty = bundled fixtures
}

type KnowledgeConfig struct {
	Dir           string `yaml:"dir"`
	Watch         bool   `yaml:"watch"`
	Bundled       *bool  `yaml:"bundled"`
	PDFServiceURL string `yaml:"pdf_service_url"`
}

type DatabaseConfig struct {
	URL                string `yaml:"url"`
	PersistTranscripts bool   `yaml:"persist_transcripts"`
	Workers            int    `yaml:"workers"`        // transcript writer pool
	TranscriptKey      string `yaml:"transcript_key"` // seals message content at rest; empty = plaintext
}

type RateLimitConfig struct {
	Messages int           `yaml:"messages"`
	Window   time.Duration `yaml:"window"`
}

type RedisConfig struct {
	URL       string          `yaml:"url"`
	Password  string          `yaml:"password"`
	DB        int             `yaml:"db"`
	TTL       time.Duration   `yaml:"ttl"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type AdminConfig struct {
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Assistant AssistantConfig `yaml:"assistant"`
	AI        AIConfig        `yaml:"ai"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Admin     AdminConfig     `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses -config and -dev and loads the file they point at.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

// Load reads .env (if present), then the YAML file (a missing file yields
// defaults), then applies environment overrides and defaults.
func Load(configPath string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	b, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// run on defaults
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	override(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Admin.APIKey, "ADMIN_API_KEY")
	override(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	override(&cfg.Store.Name, "STORE_NAME")
	override(&cfg.Database.TranscriptKey, "TRANSCRIPT_KEY")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if strings.TrimSpace(cfg.Store.Name) == "" {
		cfg.Store.Name = "Asistente Tienda"
	}

	a := &cfg.Assistant
	if a.LLMTimeout <= 0 {
		a.LLMTimeout = 15 * time.Second
	}
	if a.MaxOutputTokens <= 0 {
		a.MaxOutputTokens = 512
	}
	if a.Temperature == nil {
		t := DefaultTemperature
		a.Temperature = &t
	}
	if a.ProductCap <= 0 {
		a.ProductCap = 50
	}
	if a.KnowledgeCap <= 0 {
		a.KnowledgeCap = 10
	}
	if a.HistoryDepth <= 0 {
		a.HistoryDepth = 8
	}
	if a.ContextDepth <= 0 || a.ContextDepth > 4 {
		a.ContextDepth = 4
	}
	if a.OutboundBuffer <= 0 {
		a.OutboundBuffer = 32
	}
	if a.MaxUtteranceBytes <= 0 {
		a.MaxUtteranceBytes = 4096
	}

	if cfg.AI.Provider == "" {
		switch {
		case cfg.AI.OpenAIKey != "":
			cfg.AI.Provider = "openai"
		case cfg.AI.GeminiKey != "":
			cfg.AI.Provider = "gemini"
		default:
			cfg.AI.Provider = "none"
		}
	}
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.0-flash"
	}

	if cfg.Catalog.Source == "" {
		cfg.Catalog.Source = "memory"
	}
	if cfg.Knowledge.Bundled == nil {
		t := true
		cfg.Knowledge.Bundled = &t
	}
	if cfg.Database.Workers <= 0 {
		cfg.Database.Workers = 2
	}

	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Redis.RateLimit.Messages <= 0 {
		cfg.Redis.RateLimit.Messages = 10
	}
	if cfg.Redis.RateLimit.Window <= 0 {
		cfg.Redis.RateLimit.Window = time.Minute
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 12 * time.Hour
	}
}

func validate(cfg *Config) error {
	switch cfg.Catalog.Source {
	case "memory":
	case "postgres":
		if cfg.Database.URL == "" {
			return errors.New("database.url is required when catalog.source is postgres")
		}
	default:
		return fmt.Errorf("catalog.source must be memory or postgres, got %q", cfg.Catalog.Source)
	}
	switch cfg.AI.Provider {
	case "openai", "gemini", "none":
	default:
		return fmt.Errorf("ai.provider must be openai, gemini or none, got %q", cfg.AI.Provider)
	}
	if cfg.Database.PersistTranscripts && cfg.Database.URL == "" {
		return errors.New("database.url is required when database.persist_transcripts is on")
	}
	if t := *cfg.Assistant.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("assistant.temperature must be within [0, 2], got %v", t)
	}
	if cfg.Admin.APIKey != "" && cfg.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required when admin.api_key is set")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

// BundledKnowledge reports whether the built-in policy corpus is loaded.
func (c *Config) BundledKnowledge() bool {
	return c.Knowledge.Bundled == nil || *c.Knowledge.Bundled
}
