package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"quality-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port              string
	Env               string
	CORSAllowOrigin   []string
	DatabaseURL       string
	ObjectStoreType   string
	LocalStoreDir     string
	AWSRegion         string
	S3Bucket          string
	S3Prefix          string
	SSEKMSKeyID       string
	QueueBackend      string
	SQSQueueURL       string
	SQSFailedQueueURL string
	JobMaxAttempts    int
	JobBackoffBase    time.Duration
	SampleInterval    time.Duration
	WorkerConcurrency int
	ShutdownTimeout   time.Duration
	AnalyzerURL       string
	AnalyzerTimeout   time.Duration
	LLMProvider       string
	OpenAIAPIKey      string
	LLMModel          string
	LLMTimeout        time.Duration
	QualityConfigFile string
	TracesStdout      bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Error("config.missing", map[string]any{"key": "DATABASE_URL", "env": env})
	}

	return Config{
		Port:              getEnv("PORT", "8080"),
		Env:               env,
		CORSAllowOrigin:   splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:       dbURL,
		ObjectStoreType:   normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:     getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:         getEnv("AWS_REGION", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Prefix:          getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:       getEnv("SSE_KMS_KEY_ID", ""),
		QueueBackend:      normalizeQueueBackend(getEnv("QUEUE_BACKEND", "memory")),
		SQSQueueURL:       getEnv("SQS_QUEUE_URL", ""),
		SQSFailedQueueURL: getEnv("SQS_FAILED_QUEUE_URL", ""),
		JobMaxAttempts:    getEnvInt("JOB_MAX_ATTEMPTS", 3),
		JobBackoffBase:    time.Duration(getEnvInt("JOB_BACKOFF_BASE_MS", 5000)) * time.Millisecond,
		SampleInterval:    getEnvDuration("QUEUE_SAMPLE_INTERVAL", 15*time.Second),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		ShutdownTimeout:   time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
		AnalyzerURL:       getEnv("ANALYZER_URL", ""),
		AnalyzerTimeout:   getEnvDuration("ANALYZER_TIMEOUT", 10*time.Minute),
		LLMProvider:       normalizeLLMProvider(getEnv("LLM_PROVIDER", "")),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:        time.Duration(getEnvInt("OPENAI_TIMEOUT_SECONDS", 120)) * time.Second,
		QualityConfigFile: getEnv("QUALITY_CONFIG_FILE", ""),
		TracesStdout:      getEnvBool("OTEL_TRACES_STDOUT", false),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Error("config.invalid", map[string]any{"key": key, "error": err.Error()})
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Error("config.invalid", map[string]any{"key": key, "error": err.Error()})
		return def
	}
	return val
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeQueueBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	default:
		return "memory"
	}
}

func normalizeLLMProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	default:
		return "none"
	}
}
