package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// Cache store backends.
const (
	BackendFirestore = "firestore"
	BackendSQLite    = "sqlite"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	AllowedOrigins string

	CacheBackend        string
	SQLitePath          string
	FirebaseProjectID   string
	FirebaseCredsBase64 string
	FirebaseCredsFile   string

	PrimaryDatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ERaktKoshBaseURL string
	ERaktKoshMock    bool
	ScrapeStates     []string
	ScrapeWorkers    int
	FetchTimeout     time.Duration

	CacheDuration          time.Duration
	RefreshInterval        time.Duration
	RetryInterval          time.Duration
	DefaultDonorBloodGroup model.BloodType
}

// LoadDotEnv reads .env.local and .env when present. Missing files are not an error.
func LoadDotEnv() {
	_ = godotenv.Load(".env.local", ".env")
}

// Load reads environment variables into a Config with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		GinMode:             getEnv("GIN_MODE", "release"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
		AllowedOrigins:      strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")),
		CacheBackend:        strings.ToLower(getEnv("CACHE_BACKEND", BackendFirestore)),
		SQLitePath:          getEnv("SQLITE_PATH", "bloodaid-cache.db"),
		FirebaseProjectID:   strings.TrimSpace(os.Getenv("FIREBASE_PROJECT_ID")),
		FirebaseCredsBase64: strings.TrimSpace(os.Getenv("FIREBASE_CREDS_BASE64")),
		FirebaseCredsFile:   strings.TrimSpace(os.Getenv("FIREBASE_CREDS_FILE")),
		PrimaryDatabaseURL:  strings.TrimSpace(os.Getenv("PRIMARY_DATABASE_URL")),
		RedisAddr:           strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		ERaktKoshBaseURL:    strings.TrimSpace(os.Getenv("ERAKTKOSH_BASE_URL")),
		ScrapeStates:        splitList(os.Getenv("SCRAPE_STATES")),
	}

	var err error
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, fmt.Errorf("parse REDIS_DB: %w", err)
	}
	if cfg.ERaktKoshMock, err = parseBoolEnv("ERAKTKOSH_MOCK", false); err != nil {
		return Config{}, fmt.Errorf("parse ERAKTKOSH_MOCK: %w", err)
	}
	if cfg.ScrapeWorkers, err = parseIntEnv("SCRAPE_WORKERS", 5); err != nil {
		return Config{}, fmt.Errorf("parse SCRAPE_WORKERS: %w", err)
	}
	if cfg.FetchTimeout, err = parseDurationEnv("FETCH_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, fmt.Errorf("parse FETCH_TIMEOUT: %w", err)
	}
	if cfg.CacheDuration, err = parseDurationEnv("CACHE_DURATION", 2*time.Hour); err != nil {
		return Config{}, fmt.Errorf("parse CACHE_DURATION: %w", err)
	}
	if cfg.RefreshInterval, err = parseDurationEnv("REFRESH_INTERVAL", 2*time.Hour); err != nil {
		return Config{}, fmt.Errorf("parse REFRESH_INTERVAL: %w", err)
	}
	if cfg.RetryInterval, err = parseDurationEnv("RETRY_INTERVAL", 30*time.Minute); err != nil {
		return Config{}, fmt.Errorf("parse RETRY_INTERVAL: %w", err)
	}
	group, err := model.ParseBloodType(getEnv("DEFAULT_DONOR_BLOOD_GROUP", string(model.OPos)))
	if err != nil {
		return Config{}, fmt.Errorf("parse DEFAULT_DONOR_BLOOD_GROUP: %w", err)
	}
	cfg.DefaultDonorBloodGroup = group

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures required fields are present for the selected backend.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	switch c.CacheBackend {
	case BackendFirestore:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required")
		}
		if c.FirebaseCredsBase64 == "" && c.FirebaseCredsFile == "" {
			return errors.New("provide FIREBASE_CREDS_BASE64 or FIREBASE_CREDS_FILE for Firestore auth")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q (want %s or %s)", c.CacheBackend, BackendFirestore, BackendSQLite)
	}
	if c.ScrapeWorkers <= 0 {
		return errors.New("SCRAPE_WORKERS must be positive")
	}
	if c.CacheDuration <= 0 || c.RefreshInterval <= 0 || c.RetryInterval <= 0 {
		return errors.New("CACHE_DURATION, REFRESH_INTERVAL and RETRY_INTERVAL must be positive")
	}
	return nil
}

// FirebaseCredentialsJSON returns the service account JSON bytes and the source used.
func (c Config) FirebaseCredentialsJSON() ([]byte, string, error) {
	if c.FirebaseCredsBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(c.FirebaseCredsBase64)
		if err != nil {
			return nil, "base64", fmt.Errorf("decode FIREBASE_CREDS_BASE64: %w", err)
		}
		return decoded, "base64", nil
	}
	if c.FirebaseCredsFile != "" {
		data, err := os.ReadFile(c.FirebaseCredsFile)
		if err != nil {
			return nil, "file", fmt.Errorf("read FIREBASE_CREDS_FILE: %w", err)
		}
		return data, "file", nil
	}
	return nil, "", errors.New("no firebase credentials found")
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultVal bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseIntEnv(key string, defaultVal int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(val)
}

func parseDurationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(val)
}
