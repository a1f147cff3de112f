package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	Env                   string
	LogLevel              string
	AllowedOrigin         string
	DatabaseURL           string
	RedisURL              string
	FeedChannel           string
	CarryOverCacheTTL     time.Duration
	AuthSecret            string
	AccessTokenTTLMinutes int
	PersistTimeout        time.Duration
	StatusClearAfter      time.Duration
}

// Load reads the environment, with an optional .env file in the working directory for
// local development. Invalid or non-positive numbers fall back to their defaults.
func Load() Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("FEED_CHANNEL", "habibeat:daily_entries")
	v.SetDefault("CARRYOVER_CACHE_TTL_SECONDS", 300)
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 480)
	v.SetDefault("PERSIST_TIMEOUT_SECONDS", 10)
	v.SetDefault("STATUS_CLEAR_MILLIS", 2000)

	// Missing file is fine.
	_ = v.ReadInConfig()

	return Config{
		Port:                  v.GetString("PORT"),
		Env:                   strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		LogLevel:              strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		AllowedOrigin:         v.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:           strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisURL:              strings.TrimSpace(v.GetString("REDIS_URL")),
		FeedChannel:           v.GetString("FEED_CHANNEL"),
		CarryOverCacheTTL:     time.Duration(positiveInt(v, "CARRYOVER_CACHE_TTL_SECONDS", 300)) * time.Second,
		AuthSecret:            strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes: positiveInt(v, "ACCESS_TOKEN_TTL_MINUTES", 480),
		PersistTimeout:        time.Duration(positiveInt(v, "PERSIST_TIMEOUT_SECONDS", 10)) * time.Second,
		StatusClearAfter:      time.Duration(positiveInt(v, "STATUS_CLEAR_MILLIS", 2000)) * time.Millisecond,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) Development() bool {
	return c.Env == "" || c.Env == "development"
}

func positiveInt(v *viper.Viper, key string, fallback int) int {
	n := v.GetInt(key)
	if n < 1 {
		return fallback
	}
	return n
}
