package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP gateway settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// PostgresConfig holds metadata store connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// BlobConfig holds S3-compatible object storage settings. The endpoint is
// typically a MinIO server.
type BlobConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
}

// VectorConfig selects and configures the vector index backend.
type VectorConfig struct {
	Backend   string `yaml:"backend"` // qdrant or pgvector
	QdrantURL string `yaml:"qdrant_url"`
	APIKey    string `yaml:"api_key"`
	Dimension int    `yaml:"dimension"`
}

// EmbeddingConfig points at the embedding service.
type EmbeddingConfig struct {
	URL         string `yaml:"url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

func (c EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// LLMConfig selects and configures the generation provider.
type LLMConfig struct {
	Provider        string  `yaml:"provider"` // ollama, openai or anthropic
	Model           string  `yaml:"model"`
	OllamaHost      string  `yaml:"ollama_host"`
	OpenAIBaseURL   string  `yaml:"openai_base_url"`
	OpenAIKey       string  `yaml:"openai_key"`
	AnthropicKey    string  `yaml:"anthropic_key"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	TimeoutSecs     int     `yaml:"timeout_secs"`
	ContextTokenCap int     `yaml:"context_token_cap"`
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// PipelineConfig holds ingestion and retrieval tunables.
type PipelineConfig struct {
	ChunkSize         int     `yaml:"chunk_size"`
	ChunkOverlap      int     `yaml:"chunk_overlap"`
	ScoreThreshold    float64 `yaml:"score_threshold"`
	MaxResults        int     `yaml:"max_results"`
	IngestWorkers     int     `yaml:"ingest_workers"`
	DefaultCollection string  `yaml:"default_collection"`
}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Blob      BlobConfig      `yaml:"blob"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// Load reads the optional yaml config at path, applies defaults and then
// environment overrides. A missing file yields defaults plus env.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{ListenAddr: ":8001"},
		Postgres: PostgresConfig{Host: "localhost", Port: 5432, User: "openrag", Password: "openrag", Database: "openrag_db"},
		Blob: BlobConfig{
			Endpoint: "http://localhost:9000",
			Region:   "us-east-1",
			Bucket:   "documents",
		},
		Vector:    VectorConfig{Backend: "qdrant", QdrantURL: "http://localhost:6333", Dimension: 384},
		Embedding: EmbeddingConfig{URL: "http://localhost:8002", TimeoutSecs: 30},
		LLM: LLMConfig{
			Provider:        "ollama",
			Model:           "llama3.1:8b",
			OllamaHost:      "http://localhost:11434",
			OpenAIBaseURL:   "https://api.openai.com/v1",
			Temperature:     0.3,
			MaxTokens:       4096,
			TimeoutSecs:     120,
			ContextTokenCap: 6000,
		},
		Pipeline: PipelineConfig{
			ChunkSize:         512,
			ChunkOverlap:      50,
			ScoreThreshold:    0.25,
			MaxResults:        5,
			IngestWorkers:     4,
			DefaultCollection: "documents_embeddings",
		},
	}
}

func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = def.Server.ListenAddr
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = def.Postgres.Port
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = def.Vector.Backend
	}
	if cfg.Vector.Dimension == 0 {
		cfg.Vector.Dimension = def.Vector.Dimension
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = def.Embedding.TimeoutSecs
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = def.LLM.Provider
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = def.LLM.TimeoutSecs
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = def.LLM.MaxTokens
	}
	if cfg.LLM.ContextTokenCap == 0 {
		cfg.LLM.ContextTokenCap = def.LLM.ContextTokenCap
	}
	if cfg.Pipeline.ChunkSize == 0 {
		cfg.Pipeline.ChunkSize = def.Pipeline.ChunkSize
	}
	if cfg.Pipeline.ScoreThreshold == 0 {
		cfg.Pipeline.ScoreThreshold = def.Pipeline.ScoreThreshold
	}
	if cfg.Pipeline.MaxResults == 0 {
		cfg.Pipeline.MaxResults = def.Pipeline.MaxResults
	}
	if cfg.Pipeline.IngestWorkers == 0 {
		cfg.Pipeline.IngestWorkers = def.Pipeline.IngestWorkers
	}
	if cfg.Pipeline.DefaultCollection == "" {
		cfg.Pipeline.DefaultCollection = def.Pipeline.DefaultCollection
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.ListenAddr, "SERVER_ADDR")
	setString(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setString(&cfg.Postgres.User, "POSTGRES_USER")
	setString(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setString(&cfg.Postgres.Database, "POSTGRES_DB")
	setString(&cfg.Blob.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Blob.Region, "MINIO_REGION")
	setString(&cfg.Blob.AccessKey, "MINIO_ROOT_USER")
	setString(&cfg.Blob.SecretKey, "MINIO_ROOT_PASSWORD")
	setString(&cfg.Blob.Bucket, "MINIO_BUCKET_NAME")
	setString(&cfg.Vector.Backend, "VECTOR_BACKEND")
	setString(&cfg.Vector.QdrantURL, "QDRANT_URL")
	setString(&cfg.Vector.APIKey, "QDRANT_API_KEY")
	setInt(&cfg.Vector.Dimension, "QDRANT_VECTOR_SIZE")
	setString(&cfg.Embedding.URL, "EMBEDDING_SERVICE_URL")
	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.OllamaHost, "OLLAMA_HOST")
	setString(&cfg.LLM.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.LLM.AnthropicKey, "ANTHROPIC_API_KEY")
	setFloat(&cfg.LLM.Temperature, "LLM_TEMPERATURE")
	setInt(&cfg.LLM.MaxTokens, "LLM_MAX_TOKENS")
	setInt(&cfg.Pipeline.ChunkSize, "CHUNK_SIZE")
	setInt(&cfg.Pipeline.ChunkOverlap, "CHUNK_OVERLAP")
	setFloat(&cfg.Pipeline.ScoreThreshold, "SCORE_THRESHOLD")
	setInt(&cfg.Pipeline.IngestWorkers, "INGEST_WORKERS")
	setString(&cfg.Pipeline.DefaultCollection, "DEFAULT_COLLECTION")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
