package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"strings"

	"github.com/alijaya/ispportal/internal/logger"
	"github.com/joho/godotenv"
)

// Config holds process-level settings. Operator settings (thresholds, ACS
// credentials, technician numbers) live in the settings file instead.
type Config struct {
	// Operator settings file
	SettingsFile string

	// Database
	DBEnabled  bool
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisEnabled  bool
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// JWT
	JWTSecret      string
	JWTExpireHours int

	// API, 0 means use web_port from the settings file
	APIPort int

	// WhatsApp gateway
	WhatsAppProvider   string
	WhatsAppInstanceID string
	WhatsAppToken      string
	WhatsAppAPIURL     string

	Log logger.Config
}

// generateSecureSecret generates a cryptographically secure random secret
func generateSecureSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return hex.EncodeToString([]byte(os.Getenv("HOSTNAME") + string(rune(length))))
	}
	return hex.EncodeToString(bytes)
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first without overriding variables already set.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Msg("failed to read .env file")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateSecureSecret(32)
		logger.Warn().Msg("JWT_SECRET not set - generated random secret. Sessions will not persist across restarts.")
	}

	dbEnabled := getEnvBool("DB_ENABLED", false)
	dbPassword := getEnv("DB_PASSWORD", "")
	if dbEnabled && dbPassword == "" {
		logger.Warn().Msg("DB_PASSWORD not set - this is insecure for production!")
		dbPassword = "changeme"
	}

	redisEnabled := getEnvBool("REDIS_ENABLED", false)
	redisPassword := getEnv("REDIS_PASSWORD", "")
	if redisEnabled && redisPassword == "" {
		logger.Warn().Msg("REDIS_PASSWORD not set - Redis is not secured!")
	}

	return &Config{
		SettingsFile: getEnv("SETTINGS_FILE", "settings.json"),

		DBEnabled:  dbEnabled,
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "ispportal"),
		DBPassword: dbPassword,
		DBName:     getEnv("DB_NAME", "ispportal"),

		RedisEnabled:  redisEnabled,
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: redisPassword,

		JWTSecret:      jwtSecret,
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),

		APIPort: getEnvInt("API_PORT", 0),

		WhatsAppProvider:   getEnv("WHATSAPP_PROVIDER", "ultramsg"),
		WhatsAppInstanceID: getEnv("WHATSAPP_INSTANCE_ID", ""),
		WhatsAppToken:      getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppAPIURL:     getEnv("WHATSAPP_API_URL", ""),

		Log: logger.DefaultConfig(),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
