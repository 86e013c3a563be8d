// Package config loads Sentinel's settings from an optional YAML file, a
// .env file and the process environment, in that order of precedence from
// lowest to highest.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sentinel-zero/sentinel/rag"
)

// DefaultPath is read when no config file is named.
const DefaultPath = "sentinel.yaml"

// Provider endpoints. Groq and Gemini both speak the OpenAI wire format.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// ModelConfig configures one chat completion model.
type ModelConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// EmbeddingConfig configures the embedding model.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// StoreConfig selects the vector store. Backend is falkordb, pgvector or
// memory.
type StoreConfig struct {
	Backend     string `yaml:"backend"`
	FalkorDB    string `yaml:"falkordb"`
	Graph       string `yaml:"graph"`
	DatabaseURL string `yaml:"database_url"`
}

// HistoryConfig selects the chat history store. Backend is memory, redis,
// sqlite or postgres; postgres reuses Store.DatabaseURL.
type HistoryConfig struct {
	Backend    string        `yaml:"backend"`
	RedisAddr  string        `yaml:"redis_addr"`
	SqlitePath string        `yaml:"sqlite_path"`
	TTL        time.Duration `yaml:"ttl"`
}

// IngestConfig configures document splitting.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// LogConfig selects the logging backend (std or golog) and level.
type LogConfig struct {
	Backend string `yaml:"backend"`
	Level   string `yaml:"level"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root configuration. API keys are only read from the
// environment.
type Config struct {
	Router    ModelConfig     `yaml:"router"`
	Generator ModelConfig     `yaml:"generator"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	TopK      int             `yaml:"top_k"`
	Store     StoreConfig     `yaml:"store"`
	History   HistoryConfig   `yaml:"history"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`

	GroqAPIKey   string `yaml:"-"`
	GeminiAPIKey string `yaml:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Router: ModelConfig{
			BaseURL:     GroqBaseURL,
			Model:       "llama-3.1-8b-instant",
			Temperature: 0,
		},
		Generator: ModelConfig{
			BaseURL:     GroqBaseURL,
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.1,
		},
		Embedding: EmbeddingConfig{
			BaseURL:   GeminiBaseURL,
			Model:     "gemini-embedding-001",
			Dimension: 3072,
			BatchSize: 15,
		},
		TopK: 5,
		Store: StoreConfig{
			Backend:  "falkordb",
			FalkorDB: "localhost:6379",
			Graph:    "sentinel",
		},
		History: HistoryConfig{
			Backend:    "memory",
			RedisAddr:  "localhost:6379",
			SqlitePath: "sentinel.db",
		},
		Ingest: IngestConfig{ChunkSize: 1200, ChunkOverlap: 200},
		Log:    LogConfig{Backend: "golog", Level: "info"},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads .env files, the YAML file at path and the environment. A
// missing file is not an error when path is empty or DefaultPath.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, rag.NewConfigurationError("config.load", err)
	}

	optional := path == "" || path == DefaultPath
	if path == "" {
		path = DefaultPath
	}

	cfg, err := LoadFile(path)
	if err != nil {
		if !(optional && errors.Is(err, os.ErrNotExist)) {
			return nil, rag.NewConfigurationError("config.load", err)
		}
		cfg = Default()
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, rag.NewConfigurationError("config.load", err)
	}
	return cfg, nil
}

// LoadFile decodes a YAML file over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnvFiles loads .env files into the process environment without
// overriding variables that are already set. With no arguments it loads
// ./.env if present.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		paths = []string{".env"}
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("GROQ_API_KEY", &c.GroqAPIKey)
	str("GEMINI_API_KEY", &c.GeminiAPIKey)
	str("FALKORDB_ADDR", &c.Store.FalkorDB)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("REDIS_ADDR", &c.History.RedisAddr)
	str("SENTINEL_STORE", &c.Store.Backend)
	str("SENTINEL_HISTORY", &c.History.Backend)
	str("SENTINEL_ROUTER_MODEL", &c.Router.Model)
	str("SENTINEL_GENERATOR_MODEL", &c.Generator.Model)
	str("SENTINEL_EMBEDDING_MODEL", &c.Embedding.Model)
	str("SENTINEL_LOG_LEVEL", &c.Log.Level)
	str("SENTINEL_ADDR", &c.Server.Addr)

	if v, ok := lookup("SENTINEL_TOP_K"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SENTINEL_TOP_K: %w", err)
		}
		c.TopK = n
	}
	return nil
}

// FalkorDBURL returns the store address as a falkordb:// connection string
// naming the graph.
func (s StoreConfig) FalkorDBURL() string {
	addr := s.FalkorDB
	if strings.Contains(addr, "://") {
		return addr
	}
	graph := s.Graph
	if graph == "" {
		graph = "sentinel"
	}
	return "falkordb://" + addr + "/" + graph
}

// Need names the parts of the configuration a command depends on.
type Need int

const (
	NeedInference Need = 1 << iota
	NeedEmbedding
	NeedStore
	NeedHistory

	NeedAll = NeedInference | NeedEmbedding | NeedStore | NeedHistory
)

// Validate checks the parts named by need and reports every problem at once
// as a rag.KindConfiguration error.
func (c *Config) Validate(need Need) error {
	var errs []error
	add := func(format string, v ...any) {
		errs = append(errs, fmt.Errorf(format, v...))
	}

	if need&NeedInference != 0 {
		if c.GroqAPIKey == "" {
			add("GROQ_API_KEY is not set")
		}
		for _, m := range []struct {
			name string
			ModelConfig
		}{{"router", c.Router}, {"generator", c.Generator}} {
			if m.BaseURL == "" || m.Model == "" {
				add("%s: base_url and model are required", m.name)
			}
			if m.Temperature < 0 || m.Temperature > 2 {
				add("%s: temperature %v outside [0, 2]", m.name, m.Temperature)
			}
		}
	}

	if need&NeedEmbedding != 0 {
		if c.GeminiAPIKey == "" {
			add("GEMINI_API_KEY is not set")
		}
		if c.Embedding.BaseURL == "" || c.Embedding.Model == "" {
			add("embedding: base_url and model are required")
		}
		if c.Embedding.Dimension <= 0 {
			add("embedding: dimension must be positive")
		}
		if c.Embedding.BatchSize <= 0 {
			add("embedding: batch_size must be positive")
		}
		if c.TopK <= 0 {
			add("top_k must be positive")
		}
		if c.Ingest.ChunkSize <= 0 || c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
			add("ingest: need 0 <= chunk_overlap < chunk_size")
		}
	}

	if need&NeedStore != 0 {
		switch c.Store.Backend {
		case "falkordb":
			if c.Store.FalkorDB == "" {
				add("store: FALKORDB_ADDR is not set")
			}
		case "pgvector":
			if c.Store.DatabaseURL == "" {
				add("store: DATABASE_URL is not set")
			}
		case "memory":
		default:
			add("store: unknown backend %q", c.Store.Backend)
		}
	}

	if need&NeedHistory != 0 {
		switch c.History.Backend {
		case "memory":
		case "redis":
			if c.History.RedisAddr == "" {
				add("history: redis_addr is not set")
			}
		case "sqlite":
			if c.History.SqlitePath == "" {
				add("history: sqlite_path is not set")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				add("history: DATABASE_URL is not set")
			}
		default:
			add("history: unknown backend %q", c.History.Backend)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return rag.NewConfigurationError("config.validate", errors.Join(errs...))
}
