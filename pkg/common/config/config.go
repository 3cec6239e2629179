package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   int
	RateLimitBurst int

	// Patient storage
	RepositoryBackend string // memory or postgres
	PatientFixtures   string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaGroupID     string
	PredictionTopic  string
	MeasurementTopic string

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string

	// Narrative enrichment
	GeminiAPIKey      string
	GeminiModel       string
	EnrichmentTimeout time.Duration

	// Weather
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	WeatherCacheTTL    time.Duration
	WeatherTimeout     time.Duration

	DefaultLocale string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),
		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 40),

		RepositoryBackend: getEnv("REPOSITORY_BACKEND", "memory"),
		PatientFixtures:   getEnv("PATIENT_FIXTURES", "fixtures/patients.yaml"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "copd"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "copd123"),
		PostgresDB:       getEnv("POSTGRES_DB", "copd_monitor"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaEnabled:     getBoolEnv("KAFKA_ENABLED", false),
		KafkaBrokers:     getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "copd-monitor"),
		PredictionTopic:  getEnv("PREDICTION_TOPIC", "copd.predictions"),
		MeasurementTopic: getEnv("MEASUREMENT_TOPIC", "copd.measurements"),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		EnrichmentTimeout: getDuration("ENRICHMENT_TIMEOUT", 20*time.Second),

		OpenWeatherAPIKey:  getEnv("OPENWEATHER_API_KEY", ""),
		OpenWeatherBaseURL: getEnv("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		WeatherCacheTTL:    getDuration("WEATHER_CACHE_TTL", time.Hour),
		WeatherTimeout:     getDuration("WEATHER_TIMEOUT", 10*time.Second),

		DefaultLocale: getEnv("DEFAULT_LOCALE", "fr"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// KAFKA_BROKERS accepts a comma separated list.
func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
