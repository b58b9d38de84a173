package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	// Render engine: the page that hosts the scriptable editor plus the
	// polling contract for its out-of-band completion signal.
	EditorHostURL      string
	RenderPollInterval time.Duration
	RenderPollTimeout  time.Duration
	JobRunBudget       time.Duration

	// Artifact storage.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	StorageBaseURL string
	StoragePath    string

	// External identification providers.
	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiModel     string
	RegistryAPIURL  string
	RegistryAPIKey  string
	InstagramHandle string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		EditorHostURL:      getEnv("EDITOR_HOST_URL", "http://localhost:8081/editor"),
		RenderPollInterval: time.Second * time.Duration(getEnvInt("RENDER_POLL_INTERVAL_SECONDS", 1)),
		RenderPollTimeout:  time.Second * time.Duration(getEnvInt("RENDER_POLL_TIMEOUT_SECONDS", 60)),
		JobRunBudget:       time.Second * time.Duration(getEnvInt("JOB_RUN_BUDGET_SECONDS", 120)),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "posters"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),

		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		RegistryAPIURL:  getEnv("REGISTRY_API_URL", "https://api.checkcardetails.co.uk/vehicledata"),
		RegistryAPIKey:  os.Getenv("REGISTRY_API_KEY"),
		InstagramHandle: getEnv("INSTAGRAM_HANDLE", ""),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
