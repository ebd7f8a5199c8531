package config

import (
	"os"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the civiceye service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Image storage
	ImageDir       string
	MaxUploadBytes int64

	// Detection configuration
	ContentWeight     float64
	SimilarityWeight  float64
	ProximityWeight   float64
	TemporalWeight    float64
	FakeThreshold     float64
	ProximityKm       float64
	NearScore         float64
	TemporalWindow    time.Duration
	MinTextLength     int
	MinImageBytes     int64
	MaxFeatures       int
	DisableVectorizer bool

	// Recent report window fed to the detector
	RecentLimit int

	// Background re-detection
	RedetectInterval time.Duration
	RedetectBatch    int

	// RabbitMQ fan-out (disabled when the URL is empty)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Redis cache (disabled when the address is empty)
	RedisAddr      string
	RedisPassword  string
	RecentCacheTTL time.Duration

	// Email alerts (disabled when the API key is empty)
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string
	ModeratorEmail string

	// Admin authentication
	JWTSecret string

	// Submission rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn(".env file not found, using environment variables")
	}

	config := &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "civiceye"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Image storage defaults (16 MB upload cap)
		ImageDir:       getEnv("IMAGE_DIR", "uploads"),
		MaxUploadBytes: getInt64Env("MAX_UPLOAD_BYTES", 16<<20),

		// Detection defaults
		ContentWeight:     getFloatEnv("CONTENT_WEIGHT", 0.3),
		SimilarityWeight:  getFloatEnv("SIMILARITY_WEIGHT", 0.4),
		ProximityWeight:   getFloatEnv("PROXIMITY_WEIGHT", 0.2),
		TemporalWeight:    getFloatEnv("TEMPORAL_WEIGHT", 0.1),
		FakeThreshold:     getFloatEnv("FAKE_THRESHOLD", 0.7),
		ProximityKm:       getFloatEnv("PROXIMITY_KM", 0.1),
		NearScore:         getFloatEnv("NEAR_SCORE", 0.7),
		TemporalWindow:    getDurationEnv("TEMPORAL_WINDOW", 30*time.Minute),
		MinTextLength:     getIntEnv("MIN_TEXT_LENGTH", 10),
		MinImageBytes:     getInt64Env("MIN_IMAGE_BYTES", 1024),
		MaxFeatures:       getIntEnv("MAX_FEATURES", 5000),
		DisableVectorizer: getBoolEnv("DISABLE_VECTORIZER", false),

		// Recent window defaults
		RecentLimit: getIntEnv("RECENT_LIMIT", 50),

		// Background re-detection defaults
		RedetectInterval: getDurationEnv("REDETECT_INTERVAL", 60*time.Second),
		RedetectBatch:    getIntEnv("REDETECT_BATCH", 10),

		// RabbitMQ defaults
		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "civiceye"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "reports.flagged"),

		// Redis defaults
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RecentCacheTTL: getDurationEnv("RECENT_CACHE_TTL", 30*time.Second),

		// Email defaults
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", "alerts@civiceye.io"),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "CivicEye Alerts"),
		ModeratorEmail: getEnv("MODERATOR_EMAIL", ""),

		// Admin authentication
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Rate limiting defaults
		RateLimitRPS:   getFloatEnv("RATE_LIMIT_RPS", 1),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 5),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return config
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64Env gets a 64-bit integer environment variable or returns a default value
func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv gets a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
