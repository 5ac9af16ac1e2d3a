package config

import (
	"os"      // For environment variables
	"strconv" // For string to number conversion
	"time"    // For cache TTL

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort        string        // Application port
	DBUser         string        // Database user
	DBPassword     string        // Database password
	DBHost         string        // Database host
	DBPort         string        // Database port
	DBName         string        // Database name
	RedisAddr      string        // Redis server address, empty disables caching
	RedisPass      string        // Redis password
	RedisDB        int           // Redis database number
	CacheTTL       time.Duration // Lifetime of cached user reads
	ProfileUserID  uint          // User served as the profile, 0 means lowest id
	RateLimitRPS   float64       // Allowed mutating requests per second per client
	RateLimitBurst int           // Burst size for the rate limiter
	LogLevel       string        // Logrus level name
	IsProd         bool          // Is production environment
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:        getEnv("APP_PORT", "8080"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBHost:         getEnv("DB_HOST", "127.0.0.1"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBName:         getEnv("DB_NAME", "exchange"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPass:      os.Getenv("REDIS_PASS"),
		RedisDB:        getInt("REDIS_DB", 0),
		CacheTTL:       time.Duration(getInt("CACHE_TTL_SECONDS", 60)) * time.Second,
		ProfileUserID:  uint(getInt("PROFILE_USER_ID", 0)),
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 10),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		IsProd:         os.Getenv("IS_PROD") == "true",
	}
}

// DSN builds the MySQL Data Source Name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&charset=utf8mb4"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getInt falls back on missing, malformed or negative values
func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
