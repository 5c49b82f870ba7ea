package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all settings for the publish queue. It is constructed once
// in main and passed to the engine by value; nothing reads the environment
// after Load returns.
type Config struct {
	DBPath        string
	Port          string
	PollInterval  time.Duration
	MaxRetries    int
	RetentionDays int
	OAuth         OAuthConfig
}

// OAuthConfig holds OAuth client settings per platform
type OAuthConfig struct {
	YouTube  ProviderConfig
	Facebook ProviderConfig
	TikTok   ProviderConfig
}

// ProviderConfig holds one OAuth provider's client settings
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Load reads configuration from a .env file (if present) and the
// environment, with defaults suitable for local development
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	return &Config{
		DBPath:        getEnv("DB_PATH", "publish.db"),
		Port:          getEnv("SERVER_PORT", "8080"),
		PollInterval:  time.Duration(getIntEnv("POLL_INTERVAL_MS", 60000)) * time.Millisecond,
		MaxRetries:    getIntEnv("MAX_RETRIES", 3),
		RetentionDays: getIntEnv("RETENTION_DAYS", 7),
		OAuth: OAuthConfig{
			YouTube: ProviderConfig{
				ClientID:     getEnv("YOUTUBE_CLIENT_ID", ""),
				ClientSecret: getEnv("YOUTUBE_CLIENT_SECRET", ""),
				RedirectURI:  getEnv("YOUTUBE_REDIRECT_URI", ""),
			},
			Facebook: ProviderConfig{
				ClientID:     getEnv("FACEBOOK_CLIENT_ID", ""),
				ClientSecret: getEnv("FACEBOOK_CLIENT_SECRET", ""),
				RedirectURI:  getEnv("FACEBOOK_REDIRECT_URI", ""),
			},
			TikTok: ProviderConfig{
				ClientID:     getEnv("TIKTOK_CLIENT_ID", ""),
				ClientSecret: getEnv("TIKTOK_CLIENT_SECRET", ""),
				RedirectURI:  getEnv("TIKTOK_REDIRECT_URI", ""),
			},
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}
