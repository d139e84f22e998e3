package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	DBURL            string
	Port             int
	WorkerHealthPort int
	PollInterval     time.Duration
	StaleLockTimeout time.Duration
	MaxAttempts      int
	WorkerID         string
	LogLevel         string
	MaxBodyBytes     int64
}

func Load() (Config, error) {
	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	return Config{
		DBURL:            dbURL,
		Port:             getEnvInt("PORT", 3000),
		WorkerHealthPort: getEnvInt("WORKER_HEALTH_PORT", 3001),
		PollInterval:     getEnvMillis("WORKER_POLL_INTERVAL_MS", 5000),
		StaleLockTimeout: getEnvMillis("WORKER_STALE_LOCK_TIMEOUT_MS", 300000),
		MaxAttempts:      getEnvInt("WORKER_MAX_ATTEMPTS", 3),
		WorkerID:         getEnv("WORKER_INSTANCE_ID", defaultWorkerID()),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MaxBodyBytes:     int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
	}, nil
}

// hostname-pid-uuid keeps worker identities unique even when several workers
// share a host.

func defaultWorkerID() string {
	host, err := os.Hostname()

	if err != nil || host == "" {
		host = "worker"
	}

	return host + "-" + strconv.Itoa(os.Getpid()) + "-" + uuid.NewString()[:8]
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}
