package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Ingest   IngestConfig
	Identity IdentityLookupConfig
	Batch    BatchConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// AppConfig holds application configuration
type AppConfig struct {
	Name               string
	Version            string
	Port               int
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
}

// IngestConfig controls workbook parsing.
type IngestConfig struct {
	ParseConcurrency int
	MaxUploadMB      int
	EmitNormalized   bool
	WarningSampleCap int
}

type IdentityLookupConfig struct {
	ChunkSize   int
	Concurrency int
	Timeout     time.Duration
}

type BatchConfig struct {
	ExportTimeout time.Duration
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
		slog.Info("no .env file found, using process environment")
	}

	config := &Config{}

	// Database configuration
	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "cmlabs-hris"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := getEnvInt("APP_PORT", 8080)
	if err != nil {
		return nil, err
	}

	config.App = AppConfig{
		Name:               getEnv("APP_NAME", "dtr-ingest"),
		Version:            getEnv("APP_VERSION", "v1.0.0"),
		Port:               appPort,
		Env:                getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	config.JWT = JWTConfig{
		Secret: getEnv("JWT_SECRET_KEY", ""),
	}

	// Ingest configuration
	parseConcurrency, err := getEnvInt("INGEST_PARSE_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	maxUploadMB, err := getEnvInt("INGEST_MAX_UPLOAD_MB", 20)
	if err != nil {
		return nil, err
	}
	emitNormalized, err := getEnvBool("INGEST_EMIT_NORMALIZED", true)
	if err != nil {
		return nil, err
	}
	sampleCap, err := getEnvInt("INGEST_WARNING_SAMPLE_CAP", 10)
	if err != nil {
		return nil, err
	}
	config.Ingest = IngestConfig{
		ParseConcurrency: parseConcurrency,
		MaxUploadMB:      maxUploadMB,
		EmitNormalized:   emitNormalized,
		WarningSampleCap: sampleCap,
	}

	// Identity lookup configuration
	chunkSize, err := getEnvInt("IDENTITY_LOOKUP_CHUNK_SIZE", 200)
	if err != nil {
		return nil, err
	}
	lookupConcurrency, err := getEnvInt("IDENTITY_LOOKUP_CONCURRENCY", 2)
	if err != nil {
		return nil, err
	}
	lookupTimeout, err := getEnvDuration("IDENTITY_LOOKUP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	config.Identity = IdentityLookupConfig{
		ChunkSize:   chunkSize,
		Concurrency: lookupConcurrency,
		Timeout:     lookupTimeout,
	}

	// Batch session configuration
	exportTimeout, err := getEnvDuration("EXPORT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	idleTTL, err := getEnvDuration("BATCH_IDLE_TTL", 2*time.Hour)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := getEnvDuration("BATCH_SWEEP_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	config.Batch = BatchConfig{
		ExportTimeout: exportTimeout,
		IdleTTL:       idleTTL,
		SweepInterval: sweepInterval,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Ingest.ParseConcurrency < 1 {
		return fmt.Errorf("INGEST_PARSE_CONCURRENCY must be at least 1")
	}
	if c.Ingest.MaxUploadMB < 1 {
		return fmt.Errorf("INGEST_MAX_UPLOAD_MB must be at least 1")
	}
	if c.Identity.ChunkSize < 1 || c.Identity.Concurrency < 1 {
		return fmt.Errorf("IDENTITY_LOOKUP_CHUNK_SIZE and IDENTITY_LOOKUP_CONCURRENCY must be at least 1")
	}
	if c.Batch.SweepInterval <= 0 {
		return fmt.Errorf("BATCH_SWEEP_INTERVAL must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// MaxUploadBytes is the per-file upload cap.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Ingest.MaxUploadMB) << 20
}

// SlogLevel maps LOG_LEVEL onto slog; unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvSlice(env string, fallback []string) []string {
	value := getEnv(env, "")
	if value == "" {
		return fallback
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
