package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Auction  AuctionConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret string
}

// AuctionConfig holds the timing rules of the bidding engine and the sweep.
type AuctionConfig struct {
	SweepInterval time.Duration
	// A bid landing with no more than AntiSnipeWindow left pushes the
	// deadline to now + AntiSnipeExtension.
	AntiSnipeWindow    time.Duration
	AntiSnipeExtension time.Duration
	// MaxExtensions caps how many times a single auction may be extended.
	// 0 means unlimited.
	MaxExtensions int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "auction_house"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Auction: AuctionConfig{
			SweepInterval:      getEnvDuration("SWEEP_INTERVAL", time.Minute),
			AntiSnipeWindow:    getEnvDuration("ANTI_SNIPE_WINDOW", 5*time.Minute),
			AntiSnipeExtension: getEnvDuration("ANTI_SNIPE_EXTENSION", 5*time.Minute),
			MaxExtensions:      getEnvInt("ANTI_SNIPE_MAX_EXTENSIONS", 0),
		},
	}

	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if config.Auction.AntiSnipeWindow < 0 || config.Auction.AntiSnipeExtension < 0 {
		return nil, fmt.Errorf("anti-snipe durations must not be negative")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
