package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	RedisAddr   string
	RedisDB     int
	SkipAuth    bool
	Environment string
	AppId       string

	// Reconciler tuning
	CacheTTL      time.Duration // freshness window for the per-user ticket cache
	CacheCap      int           // max tickets persisted per cache entry
	PageSize      int           // live subscription window / pagination page size
	DisplayCount  int           // default rendered slice of the merged collection
	CreateTimeout time.Duration // bound on a ticket-creation write
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		JWTSecret:     getEnv("JWT_SECRET", "secret"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:        getEnv("DB_NAME", "go-helpdesk"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SkipAuth:      getEnv("SKIP_AUTH", "false") == "true",
		Environment:   getEnv("ENVIRONMENT", "development"),
		AppId:         getEnv("APP_ID", "go-helpdesk"),
		CacheTTL:      getEnvDuration("CACHE_TTL", 60*time.Second),
		CacheCap:      getEnvInt("CACHE_CAP", 100),
		PageSize:      getEnvInt("PAGE_SIZE", 20),
		DisplayCount:  getEnvInt("DISPLAY_COUNT", 5),
		CreateTimeout: getEnvDuration("CREATE_TIMEOUT", 25*time.Second),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
