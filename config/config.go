package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port          string
	Env           string
	UploadDir     string
	MaxFileSize   int64
	WorkerCount   int
	QueueSize     int
	TaskStore     string
	RedisAddr     string
	TaskRetention time.Duration
	Captioner     string
	OpenAIAPIKey  string
	OpenAIModel   string
}

func Load() *Config {
	return &Config{
		Port:          getEnv("SERVICE_PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		UploadDir:     getEnv("UPLOAD_DIR", filepath.Join(os.TempDir(), "caption-uploads")),
		MaxFileSize:   getEnvAsInt64("MAX_FILE_SIZE", 20*1024*1024),
		WorkerCount:   getEnvAsInt("WORKER_COUNT", 4),
		QueueSize:     getEnvAsInt("QUEUE_SIZE", 64),
		TaskStore:     getEnv("TASK_STORE", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		TaskRetention: getEnvAsDuration("TASK_RETENTION", 30*time.Minute),
		Captioner:     getEnv("CAPTIONER", "builtin"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
