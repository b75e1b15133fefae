package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // For durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort      string        // Application port
	DBDriver     string        // mysql, postgres or sqlite
	DBUser       string        // Database user
	DBPassword   string        // Database password
	DBHost       string        // Database host
	DBPort       string        // Database port
	DBName       string        // Database name
	DBPath       string        // SQLite file path
	JWTSecret    string        // JWT secret key
	RedisAddr    string        // Redis server address, empty disables Redis
	RedisPass    string        // Redis password
	RedisDB      int           // Redis database number
	IsProd       bool          // Is production environment
	GatewayDelay time.Duration // Artificial processing delay before resolution
	WebhookURL   string        // Receives payment.succeeded / payment.failed, empty disables
	SummaryCron  string        // Schedule of the daily summary report, empty disables
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	delay, err := time.ParseDuration(getEnv("GATEWAY_DELAY", "0s"))
	if err != nil {
		delay = 0 // Fall back to no delay on a malformed value
	}
	return &Config{
		AppPort:      getEnv("APP_PORT", "8080"),             // Application port
		DBDriver:     getEnv("DB_DRIVER", "mysql"),           // Database dialect
		DBUser:       os.Getenv("DB_USER"),                   // Database user
		DBPassword:   os.Getenv("DB_PASSWORD"),               // Database password
		DBHost:       getEnv("DB_HOST", "127.0.0.1"),         // Database host
		DBPort:       os.Getenv("DB_PORT"),                   // Database port
		DBName:       os.Getenv("DB_NAME"),                   // Database name
		DBPath:       getEnv("DB_PATH", "data/payments.db"),  // SQLite file
		JWTSecret:    os.Getenv("JWT_SECRET"),                // JWT secret key
		RedisAddr:    os.Getenv("REDIS_ADDR"),                // Redis server address
		RedisPass:    os.Getenv("REDIS_PASS"),                // Redis password
		RedisDB:      redisDB,                                // Redis database number
		IsProd:       os.Getenv("IS_PROD") == "true",         // Is production environment
		GatewayDelay: delay,                                  // Gateway delay
		WebhookURL:   os.Getenv("WEBHOOK_URL"),               // Webhook receiver
		SummaryCron:  getEnv("SUMMARY_CRON", "5 0 * * *"),    // Daily at 00:05
	}
}

// getEnv returns the environment value for key or fallback when unset
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
