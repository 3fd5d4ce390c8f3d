package config

import (
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	// HTTP Configuration
	HTTPAddr        string
	APIPrefix       string
	AllowedOrigins  []string
	MaxBodyBytes    int64
	MaxBatchSize    int
	ShutdownTimeout time.Duration

	// Model Configuration
	ModelName   string
	ArtifactDir string

	// Database Configuration
	DBPath string

	// Logging
	LogLevel  string
	LogFormat string

	// NATS Configuration
	NatsEnabled           bool
	NatsURL               string
	Stream                string
	Subject               string
	Durable               string
	MaxMsgs               int
	MaxAge                time.Duration
	AckWait               time.Duration
	Concurrency           int
	MonitoringTopic       string
	BackpressureThreshold int
}

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://localhost:5174",
	"http://localhost:5175",
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("Could not load env file", "file", envFile, "error", err)
		} else {
			slog.Info("Environment loaded", "file", envFile)
		}
	}

	modelName := getEnv("MODEL_NAME", "student-grade")

	return &Config{
		Environment:     getEnv("ENVIRONMENT", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", net.JoinHostPort(getEnv("HOST", "0.0.0.0"), getEnv("PORT", "8000"))),
		APIPrefix:       normalizePrefix(getEnvAllowEmpty("API_PREFIX", "/api")),
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", defaultOrigins),
		MaxBodyBytes:    int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		MaxBatchSize:    getEnvInt("MAX_BATCH_SIZE", 1000),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", "15s"),

		ModelName:   modelName,
		ArtifactDir: getEnv("ARTIFACT_DIR", "data/model"),
		DBPath:      getEnv("DB_PATH", "data/predictor.sqlite"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		NatsEnabled:           getEnvBool("NATS_ENABLED", false),
		NatsURL:               getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		Stream:                getEnv("STREAM_NAME", "PREDICT"),
		Subject:               getEnv("SUBJECT", "prediction.request."+modelName),
		Durable:               getEnv("QUEUE_DURABLE", "predict-wq"),
		MaxMsgs:               getEnvInt("QUEUE_MAX_MSGS", 2000),
		MaxAge:                getEnvDuration("QUEUE_MAX_AGE", "30s"),
		AckWait:               getEnvDuration("ACK_WAIT", "30s"),
		Concurrency:           getEnvInt("WORKER_CONCURRENCY", 2),
		MonitoringTopic:       getEnv("MONITORING_TOPIC", "monitoring.backpressure"),
		BackpressureThreshold: getEnvInt("BACKPRESSURE_THRESHOLD", 10),
	}, nil
}

// ParseLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.LogLevel)}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func normalizePrefix(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvAllowEmpty distinguishes an unset variable from one set to "".
func getEnvAllowEmpty(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key, defaultVal string) time.Duration {
	val := getEnv(key, defaultVal)
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultVal)
	return d
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
