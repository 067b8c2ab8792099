// Package config provides configuration for the Signal orchestrator.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort     int
	InternalPort int

	// Database
	DatabaseURL string

	// Scheduler settings
	Workers        int
	QueueSize      int
	MaxRetries     int
	RetryBaseDelay time.Duration

	// Relay: when set, progress events are pushed to this base URL
	// instead of the in-process hub.
	RelayURL string

	// LLM settings
	UseLLM     bool
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Confirmation policy
	AutoConfirm bool

	// WebSocket settings
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBufferSize int
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:       getEnvInt("HTTP_PORT", 8000),
		InternalPort:   getEnvInt("INTERNAL_PORT", 8001),
		DatabaseURL:    getEnv("DATABASE_URL", "file:signal.db?cache=shared&mode=rwc"),
		Workers:        getEnvInt("PIPELINE_WORKERS", 4),
		QueueSize:      getEnvInt("PIPELINE_QUEUE_SIZE", 256),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay: time.Duration(getEnvInt("RETRY_BASE_DELAY_MS", 60000)) * time.Millisecond,
		RelayURL:       getEnv("RELAY_URL", ""),
		UseLLM:         getEnvBool("USE_REAL_LLM", false),
		LLMBaseURL:     getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:     time.Duration(getEnvInt("LLM_TIMEOUT_MS", 30000)) * time.Millisecond,
		AutoConfirm:    getEnvBool("AUTO_CONFIRM", false),
		ReadTimeout:    time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		WriteTimeout:   time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		PingInterval:   time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		MaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		SendBufferSize: getEnvInt("WS_SEND_BUFFER_SIZE", 256),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
