package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment       string
	HTTPPort          string
	ServiceName       string
	MongoURI          string
	MongoDatabase     string
	MongoCollection   string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	FBAppSecret       string
	FBVerifyToken     string
	FBAppID           string
	FBAPIVersion      string
	FBGraphBaseURL    string
	TokenExpiryMargin time.Duration
	TokenRefreshWin   time.Duration
	SyncInterval      time.Duration
	WorkerCount       int
	QueueSize         int
	TaskTimeout       time.Duration
	RateLimitRPM      int
	TelemetryEndpoint string
	TelemetryInsecure bool
}

// Load reads configuration from environment variables with sane defaults.
// Redis is optional: an empty REDIS_ADDR disables delivery deduplication.
func Load() (Config, error) {
	_ = godotenv.Load()

	appSecret := strings.TrimSpace(os.Getenv("FB_APP_SECRET"))
	if appSecret == "" {
		return Config{}, fmt.Errorf("FB_APP_SECRET is required")
	}
	verifyToken := strings.TrimSpace(os.Getenv("FB_WEBHOOK_VERIFY_TOKEN"))
	if verifyToken == "" {
		return Config{}, fmt.Errorf("FB_WEBHOOK_VERIFY_TOKEN is required")
	}

	cfg := Config{
		Environment:       getEnv("APP_ENV", "development"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		ServiceName:       getEnv("SERVICE_NAME", "agentic-social-sync"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDatabase:     getEnv("MONGO_DATABASE", "agentic_properties"),
		MongoCollection:   getEnv("MONGO_COLLECTION", "agents"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getInt("REDIS_DB", 0),
		FBAppSecret:       appSecret,
		FBVerifyToken:     verifyToken,
		FBAppID:           os.Getenv("FB_APP_ID"),
		FBAPIVersion:      getEnv("FB_API_VERSION", "v19.0"),
		FBGraphBaseURL:    getEnv("FB_GRAPH_BASE_URL", "https://graph.facebook.com"),
		TokenExpiryMargin: getDuration("TOKEN_EXPIRY_MARGIN", 5*time.Minute),
		TokenRefreshWin:   getDuration("TOKEN_REFRESH_WINDOW", 7*24*time.Hour),
		SyncInterval:      getDuration("SYNC_INTERVAL", time.Hour),
		WorkerCount:       getInt("WORKER_COUNT", 4),
		QueueSize:         getInt("QUEUE_SIZE", 64),
		TaskTimeout:       getDuration("TASK_TIMEOUT", time.Minute),
		RateLimitRPM:      getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("MONGO_URI is required")
	}

	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}
