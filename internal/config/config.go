package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OTel        OTelConfig
	Pipeline    PipelineConfig
	Env         string
	Port        string
	ServiceType ServiceType
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type PipelineConfig struct {
	StagesFile     string        // YAML stage file; empty means the built-in stages
	IdleBudget     time.Duration // budget handed to idle jobs by the timer scheduler
	MountRoute     string        // route the mount hook builds its context for
	RequestTimeout time.Duration // per request budget for seoFetch/minFetch
}

type ServiceType string

const (
	ServiceTypeServer  ServiceType = "server"
	ServiceTypeExample ServiceType = "example"
)

// Load loads configuration from environment variables.
// In development, it loads from a service-specific .env file (.env.server)
// and falls back to .env if that file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("FETCHPIPE_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:         getEnv("FETCHPIPE_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		ServiceType: serviceType,
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "fetchpipe"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Pipeline: PipelineConfig{
			StagesFile:     getEnv("STAGES_FILE", ""),
			IdleBudget:     getEnvDuration("IDLE_BUDGET", 50*time.Millisecond),
			MountRoute:     getEnv("MOUNT_ROUTE", "/"),
			RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		},
	}

	if cfg.Pipeline.IdleBudget <= 0 {
		return Config{}, fmt.Errorf("IDLE_BUDGET must be positive, got %s", cfg.Pipeline.IdleBudget)
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Config{}, fmt.Errorf("PORT must be numeric: %w", err)
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
