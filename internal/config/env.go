package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Embedding provider names accepted by EMBED_PROVIDER.
const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	DatabaseURL      string
	SslCertPath      string
	DBConnectTimeout time.Duration

	EmbedProvider    string
	GeminiAPIKey     string
	AzureAPIKey      string
	AzureEndpoint    string
	AzureAPIVersion  string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	EmbedModel       string
	EmbedDim         int
	EmbedBatchSize   int
	EmbedConcurrency int
	EmbedRPS         float64
	EmbedTimeout     time.Duration
	EmbedCacheSize   int

	Repository string
	SourceType string
	Version    string

	IngestWorkers      int
	PersistTimeout     time.Duration
	SkipIncludesPolicy bool
	ChunkPolicyFile    string
	IngestLockFile     string
	IngestRoot         string
	WatchDebounce      time.Duration

	VerifyMinCoverage float64
	VerifyStaleness   time.Duration
	ReportBucket      string
	ReportPrefix      string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string

	JWTSecret string
	Port      string

	LogLevel  string
	LogFormat string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SslCertPath:      getEnv("SSL_CERT_PATH", ""),
		DBConnectTimeout: getEnvDuration("DB_CONNECT_TIMEOUT", 30*time.Second),

		EmbedProvider:    strings.ToLower(getEnv("EMBED_PROVIDER", ProviderAzure)),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		AzureAPIKey:      getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureEndpoint:    getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureAPIVersion:  getEnv("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		EmbedModel:       getEnv("EMBED_MODEL", "text-embedding-3-large"),
		EmbedDim:         getEnvInt("EMBED_DIM", 3072),
		EmbedBatchSize:   getEnvInt("EMBED_BATCH_SIZE", 100),
		EmbedConcurrency: getEnvInt("EMBED_CONCURRENCY", 4),
		EmbedRPS:         getEnvFloat("EMBED_RPS", 0),
		EmbedTimeout:     getEnvDuration("EMBED_TIMEOUT", 60*time.Second),
		EmbedCacheSize:   getEnvInt("EMBED_CACHE_SIZE", 1000),

		Repository: getEnv("KB_REPOSITORY", ""),
		SourceType: getEnv("KB_SOURCE_TYPE", "github"),
		Version:    getEnv("KB_VERSION", ""),

		IngestWorkers:      getEnvInt("INGEST_WORKERS", 1),
		PersistTimeout:     getEnvDuration("PERSIST_TIMEOUT", 2*time.Minute),
		SkipIncludesPolicy: getEnvBool("SKIP_INCLUDES_POLICY", true),
		ChunkPolicyFile:    getEnv("CHUNK_POLICY_FILE", ""),
		IngestLockFile:     getEnv("INGEST_LOCK_FILE", filepath.Join(os.TempDir(), "ksync-ingest.lock")),
		IngestRoot:         getEnv("INGEST_ROOT", "."),
		WatchDebounce:      getEnvDuration("WATCH_DEBOUNCE", 500*time.Millisecond),

		VerifyMinCoverage: getEnvFloat("VERIFY_MIN_COVERAGE", 95),
		VerifyStaleness:   getEnvDuration("VERIFY_STALENESS", 24*time.Hour),
		ReportBucket:      getEnv("REPORT_BUCKET", ""),
		ReportPrefix:      getEnv("REPORT_PREFIX", "ksync/reports"),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		Port:      getEnv("PORT", "8080"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),
	}

	return cfg
}

// Validate reports every missing or inconsistent setting the ingestion and
// search paths need.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	switch c.EmbedProvider {
	case ProviderAzure:
		if c.AzureAPIKey == "" {
			errs = append(errs, errors.New("AZURE_OPENAI_API_KEY not set"))
		}
		if c.AzureEndpoint == "" {
			errs = append(errs, errors.New("AZURE_OPENAI_ENDPOINT not set"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY not set"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMBED_PROVIDER %q not supported", c.EmbedProvider))
	}
	if c.EmbedDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_DIM must be positive, got %d", c.EmbedDim))
	}
	if c.EmbedBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_BATCH_SIZE must be positive, got %d", c.EmbedBatchSize))
	}
	if c.IngestWorkers <= 0 {
		errs = append(errs, fmt.Errorf("INGEST_WORKERS must be positive, got %d", c.IngestWorkers))
	}
	if c.VerifyMinCoverage < 0 || c.VerifyMinCoverage > 100 {
		errs = append(errs, fmt.Errorf("VERIFY_MIN_COVERAGE must be within [0,100], got %v", c.VerifyMinCoverage))
	}
	return errors.Join(errs...)
}

// ValidateStore is the subset of Validate needed by commands that only read
// the store (verify).
func (c *Config) ValidateStore() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL not set")
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config value is not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config value is not a number, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config value is not a bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config value is not a duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
