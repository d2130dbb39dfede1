package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port        string
	BindAddress string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	RedisHost   string
	RedisPort   string
	JWTSecret   string

	// Game tuning
	MatchDurationSeconds int // countdown budget per match
	DeckSize             int // questions per deck
	MaxErrors            int // wrong answers before elimination
	ClockSyncTicks       int // local ticks between countdown persists
	// ClockDriftWindowSeconds is the accepted divergence between the two
	// players' local countdowns; it equals ClockSyncTicks because the
	// countdown is a local projection persisted only every sync interval.
	ClockDriftWindowSeconds int
}

func Load() *Config {
	syncTicks := getEnvInt("CLOCK_SYNC_TICKS", 5)
	return &Config{
		Port:        getEnv("PORT", "8080"),
		BindAddress: getEnv("BIND_ADDRESS", "localhost"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "elementduel"),
		DBPassword:  getEnv("DB_PASSWORD", "elementduel123"),
		DBName:      getEnv("DB_NAME", "elementduel"),
		RedisHost:   getEnv("REDIS_HOST", "localhost"),
		RedisPort:   getEnv("REDIS_PORT", "6379"),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		MatchDurationSeconds:    getEnvInt("MATCH_DURATION_SECONDS", 180),
		DeckSize:                getEnvInt("DECK_SIZE", 10),
		MaxErrors:               getEnvInt("MAX_ERRORS", 3),
		ClockSyncTicks:          syncTicks,
		ClockDriftWindowSeconds: syncTicks,
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
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	return client
}
