package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds process configuration loaded from the environment.
type Config struct {
	Port        string
	MongoURI    string
	MongoDBName string
	JWTSecret   string
	TokenExpiry time.Duration

	// RedisURL, when set, switches the dose-event bus to Redis pub/sub so
	// multiple server instances stay in sync.
	RedisURL string

	// Engine tuning.
	DispatchLimit   int
	LockTTL         time.Duration
	ReleaseCooldown time.Duration
}

// LoadConfig reads configuration from .env (if present) and the environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, relying on environment variables")
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB", "medtrack"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		TokenExpiry:     getDuration("TOKEN_EXPIRY", 24*time.Hour),
		RedisURL:        os.Getenv("REDIS_URL"),
		DispatchLimit:   getInt("DISPATCH_LIMIT", 200),
		LockTTL:         getDuration("DOSE_LOCK_TTL", 30*time.Second),
		ReleaseCooldown: getDuration("DOSE_LOCK_COOLDOWN", 2*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.WithField("key", key).Warn("Invalid integer in environment, using default")
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.WithField("key", key).Warn("Invalid duration in environment, using default")
		return fallback
	}
	return d
}
