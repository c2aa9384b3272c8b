package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/bestrag/pkg/errors"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Qdrant    QdrantConfig    `koanf:"qdrant"`
	Embedder  EmbedderConfig  `koanf:"embedder"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Catalog   CatalogConfig   `koanf:"catalog"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// QdrantConfig holds the immutable connection parameters for the vector
// database. They are bound once at construction and never mutated.
type QdrantConfig struct {
	URL        string        `koanf:"url"`
	APIKey     string        `koanf:"api_key"`
	Collection string        `koanf:"collection"`
	UseTLS     bool          `koanf:"use_tls"`
	Timeout    time.Duration `koanf:"timeout"`
}

type EmbedderConfig struct {
	Provider   string        `koanf:"provider"` // fastembed, ollama
	BaseURL    string        `koanf:"base_url"`
	DenseModel string        `koanf:"dense_model"`
	LateModel  string        `koanf:"late_model"`
	Dimension  int           `koanf:"dimension"`
	Timeout    time.Duration `koanf:"timeout"`
}

type IngestConfig struct {
	Workers   int `koanf:"workers"`    // concurrent per-page embedding calls
	BatchSize int `koanf:"batch_size"` // points per upsert request
}

type CatalogConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Validate rejects settings that would turn into nonsense requests
// downstream. A negative dimension, for example, would wrap around when
// converted to the unsigned vector size of the collection schema.
func (c *Config) Validate() error {
	if c.Embedder.Dimension <= 0 {
		return errors.New(errors.CodeInvalidInput, "embedder.dimension must be positive", nil).
			WithContext("dimension", c.Embedder.Dimension)
	}
	switch c.Embedder.Provider {
	case "fastembed", "ollama":
	default:
		return errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("unknown embedder.provider %q", c.Embedder.Provider), nil)
	}
	return nil
}

// Global k instance
var k = koanf.New(".")

func Load(path string) (*Config, error) {
	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.exporter", "none")
	k.Set("telemetry.otlp_insecure", true)

	k.Set("qdrant.url", "localhost:6334")
	k.Set("qdrant.collection", "bestrag")
	k.Set("qdrant.timeout", "30s")

	k.Set("embedder.provider", "fastembed")
	k.Set("embedder.base_url", "http://localhost:8000")
	k.Set("embedder.dense_model", "BAAI/bge-small-en-v1.5")
	k.Set("embedder.late_model", "colbert-ir/colbertv2.0")
	k.Set("embedder.dimension", 384)
	k.Set("embedder.timeout", "60s")

	k.Set("ingest.workers", 4)
	k.Set("ingest.batch_size", 32)

	k.Set("catalog.enabled", false)
	k.Set("catalog.path", "bestrag-catalog.db")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (BESTRAG_QDRANT_API_KEY -> qdrant.api_key).
	// Only the first underscore separates section from key.
	if err := k.Load(env.Provider("BESTRAG_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "BESTRAG_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
