// Package config loads process configuration from DOCRAG_* environment
// variables, after an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/chunking"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/retry"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

const envPrefix = "DOCRAG"

type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	Debug     bool   `envconfig:"DEBUG" default:"false"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn warning error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console" validate:"oneof=console json"`

	DatabaseURL      string        `envconfig:"DATABASE_URL" required:"true" validate:"required"`
	DBMaxConns       int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"gt=0"`
	DBMinConns       int32         `envconfig:"DB_MIN_CONNS" default:"1" validate:"gte=0"`
	StatementTimeout time.Duration `envconfig:"DB_STATEMENT_TIMEOUT" default:"30s" validate:"gte=0"`

	APIKeys         []string `envconfig:"API_KEYS"`
	MaxUploadBytes  int64    `envconfig:"MAX_UPLOAD_BYTES" default:"26214400" validate:"gt=0"`
	MaxRequestBytes int64    `envconfig:"MAX_REQUEST_BYTES" default:"2097152" validate:"gt=0"`

	EmbeddingProvider    string `envconfig:"EMBEDDING_PROVIDER" default:"hashing" validate:"oneof=hashing openai gemini"`
	EmbeddingModelID     string `envconfig:"EMBEDDING_MODEL_ID"`
	EmbeddingDimensions  int    `envconfig:"EMBEDDING_DIMENSIONS" default:"384" validate:"gt=0"`
	EmbeddingBaseURL     string `envconfig:"EMBEDDING_BASE_URL" validate:"omitempty,url"`
	EmbeddingBatchSize   int    `envconfig:"EMBEDDING_BATCH_SIZE" default:"32" validate:"gt=0"`
	EmbeddingConcurrency int    `envconfig:"EMBEDDING_CONCURRENCY" default:"4" validate:"gt=0"`

	ChunkSize       int `envconfig:"CHUNK_SIZE" default:"1500" validate:"gt=0"`
	ChunkOverlap    int `envconfig:"CHUNK_OVERLAP" default:"300" validate:"gte=0"`
	TopK            int `envconfig:"TOP_K" default:"5" validate:"gt=0"`
	MaxContextChars int `envconfig:"MAX_CONTEXT_CHARS" default:"6000" validate:"gt=0"`

	MaxRetries          int           `envconfig:"MAX_RETRIES" default:"3" validate:"gt=0"`
	RetryInitialBackoff time.Duration `envconfig:"RETRY_INITIAL_BACKOFF" default:"500ms" validate:"gt=0"`
	RetryMaxBackoff     time.Duration `envconfig:"RETRY_MAX_BACKOFF" default:"10s" validate:"gtefield=RetryInitialBackoff"`

	LLMProvider      string        `envconfig:"LLM_PROVIDER" default:"gemini" validate:"oneof=gemini openai anthropic"`
	LLMModel         string        `envconfig:"LLM_MODEL"`
	LLMTimeout       time.Duration `envconfig:"LLM_TIMEOUT" default:"90s" validate:"gt=0"`
	LLMRatePerSecond float64       `envconfig:"LLM_RATE_PER_SECOND" default:"1" validate:"gte=0"`
	LLMBurst         int           `envconfig:"LLM_BURST" default:"2" validate:"gte=0"`
	LLMMaxTokens     int           `envconfig:"LLM_MAX_TOKENS" default:"8192" validate:"gt=0"`
	LLMTemperature   float64       `envconfig:"LLM_TEMPERATURE" default:"0.2" validate:"gte=0,lte=2"`
	GoogleAPIKey     string        `envconfig:"GOOGLE_API_KEY"`
	OpenAIAPIKey     string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `envconfig:"OPENAI_BASE_URL" validate:"omitempty,url"`
	AnthropicAPIKey  string        `envconfig:"ANTHROPIC_API_KEY"`

	ReconcileTolerance   float64 `envconfig:"RECONCILE_TOLERANCE" default:"0.01" validate:"gte=0"`
	RepairTrailingCommas bool    `envconfig:"REPAIR_TRAILING_COMMAS" default:"true"`
	SchemaDir            string  `envconfig:"SCHEMA_DIR"`

	TesseractPath string `envconfig:"TESSERACT_PATH" default:"tesseract"`
	TesseractPSM  int    `envconfig:"TESSERACT_PSM" default:"6" validate:"gte=0,lte=13"`
	OCRLanguage   string `envconfig:"OCR_LANGUAGE" default:"eng"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"docrag-sources"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s" validate:"gt=0"`
	WorkerConcurrency  int           `envconfig:"WORKER_CONCURRENCY" default:"2" validate:"gt=0"`

	SentryDSN     string `envconfig:"SENTRY_DSN"`
	SentryRelease string `envconfig:"SENTRY_RELEASE"`
	Environment   string `envconfig:"ENVIRONMENT" default:"development"`
}

// Pipeline is the core RAG configuration shared by ingestion and queries.
type Pipeline struct {
	ModelID         string
	ChunkSize       int
	Overlap         int
	TopK            int
	MaxContextChars int
	MaxRetries      int
}

// Load reads .env when present, then the DOCRAG_ environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var validate = validator.New()

// Validate checks value ranges and cross-field constraints. Problems are
// reported as a CONFIGURATION_ERROR.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.Configurationf("invalid %s_%s: failed %q check", envPrefix, envName(fe.StructField()), fe.Tag())
		}
		return domain.Configurationf("invalid config: %v", err)
	}
	return c.Chunking().Validate()
}

func (c *Config) Chunking() chunking.Config {
	return chunking.Config{MaxChunkSize: c.ChunkSize, Overlap: c.ChunkOverlap}
}

// Pipeline projects the core settings.
func (c *Config) Pipeline() Pipeline {
	return Pipeline{
		ModelID:         c.ResolvedEmbeddingModelID(),
		ChunkSize:       c.ChunkSize,
		Overlap:         c.ChunkOverlap,
		TopK:            c.TopK,
		MaxContextChars: c.MaxContextChars,
		MaxRetries:      c.MaxRetries,
	}
}

// RetryPolicy builds the shared exponential policy. MaxRetries bounds the
// total number of attempts.
func (c *Config) RetryPolicy(name string) retry.Policy {
	return retry.NewPolicy(name, c.MaxRetries, c.RetryInitialBackoff, c.RetryMaxBackoff)
}

// ResolvedEmbeddingModelID is the id the configured embedding model reports.
// Stored vectors are only comparable with queries from the same id.
func (c *Config) ResolvedEmbeddingModelID() string {
	switch c.EmbeddingProvider {
	case "openai":
		return fmt.Sprintf("openai:%s-%d", orDefault(c.EmbeddingModelID, "text-embedding-3-small"), c.EmbeddingDimensions)
	case "gemini":
		return fmt.Sprintf("gemini:%s-%d", orDefault(c.EmbeddingModelID, "gemini-embedding-001"), c.EmbeddingDimensions)
	default:
		return fmt.Sprintf("hashing-v1-%d", c.EmbeddingDimensions)
	}
}

func (c *Config) AuthEnabled() bool {
	for _, k := range c.APIKeys {
		if strings.TrimSpace(k) != "" {
			return true
		}
	}
	return false
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// envName converts a Go field name to its environment suffix.
func envName(field string) string {
	var b strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if i > 0 && upper {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
