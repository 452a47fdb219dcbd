package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	Datastore       string
	MongoURI        string
	MongoDatabase   string
	SQLitePath      string
	RedisURL        string
	FrontendOrigins []string

	JWTSecret string
	JWTExpire time.Duration

	AIProvider    string
	GroqAPIKey    string
	GroqModel     string
	GroqBaseURL   string
	GeminiAPIKey  string
	GeminiModel   string
	AITimeout     time.Duration
	ChatAutoTitle bool

	LogLevel         string
	LogFormat        string
	LogFile          string
	RateLimitEnabled bool

	AdminEmail    string
	AdminUsername string
	AdminPassword string
}

func (c Config) IsProduction() bool { return c.Environment == "production" }

// Load reads configuration from the environment, after loading a .env file if one exists.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := Config{
		Port:        getEnv("PORT", "5000"),
		Environment: getEnv("NODE_ENV", getEnv("APP_ENV", "development")),

		Datastore:       strings.ToLower(getEnv("DATASTORE", "mongo")),
		MongoURI:        getEnv("MONGODB_URI", ""),
		MongoDatabase:   getEnv("MONGODB_DATABASE", "careease"),
		SQLitePath:      getEnv("SQLITE_PATH", "careease.db"),
		RedisURL:        getEnv("REDIS_URL", ""),
		FrontendOrigins: splitList(getEnv("FRONTEND_URL", "http://localhost:3000")),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpire: getEnvAsDuration("JWT_EXPIRE", 7*24*time.Hour),

		AIProvider:    strings.ToLower(getEnv("AI_PROVIDER", "groq")),
		GroqAPIKey:    getEnv("GROQ_API_KEY", ""),
		GroqModel:     getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GroqBaseURL:   getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		AITimeout:     getEnvAsDuration("AI_TIMEOUT", 30*time.Second),
		ChatAutoTitle: getEnvAsBool("CHAT_AUTO_TITLE", false),

		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		LogFile:          getEnv("LOG_FILE", ""),
		RateLimitEnabled: getEnvAsBool("RATE_LIMIT_ENABLED", true),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is required"))
	}
	switch c.Datastore {
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI environment variable is required when DATASTORE=mongo"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DATASTORE %q", c.Datastore))
	}
	if c.AIProvider != "groq" && c.AIProvider != "gemini" {
		errs = append(errs, fmt.Errorf("unsupported AI_PROVIDER %q", c.AIProvider))
	}
	return errors.Join(errs...)
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations plus a whole-day form such as "7d".
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	value, err := parseDuration(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("Invalid %s value %q, using default %s", key, raw, defaultValue)
		return defaultValue
	}
	return value
}

func parseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
