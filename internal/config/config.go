package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	DatabaseURL  string
	NatsURL      string
	NatsToken    string
	RedisAddr    string
	OpenAIAPIKey string
	OpenAIModel  string
	LeadSinkURL  string
	LeadInterval time.Duration
	LeadWindow   time.Duration
	FrontendDir  string
	LogLevel     string
}

func Load() Config {
	// Best effort: a missing .env is normal in containerized deploys.
	_ = godotenv.Load()

	return Config{
		Port:         envInt("PORT", 3000),
		DatabaseURL:  envStr("DATABASE_URL", ""),
		NatsURL:      envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:    envStr("NATS_TOKEN", ""),
		RedisAddr:    envStr("REDIS_ADDR", ""),
		OpenAIAPIKey: envStr("OPENAI_API_KEY", ""),
		OpenAIModel:  envStr("OPENAI_MODEL", "gpt-4o-mini"),
		LeadSinkURL:  envStr("LEAD_SINK_URL", ""),
		LeadInterval: envDur("LEAD_INTERVAL", 45*time.Minute),
		LeadWindow:   envDur("LEAD_WINDOW", 50*time.Minute),
		FrontendDir:  envStr("FRONTEND_DIR", ""),
		LogLevel:     envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
