package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Object storage (Supabase-compatible)
	StorageURL        string
	StorageServiceKey string
	StorageBucket     string

	// Clip generation vendors
	ClipVendor   string // "luma", "runway", or "veo"
	LumaKey      string
	RunwayKey    string
	GeminiKey    string // used by the Veo generator
	VeoModel     string

	// OpenAI (marketing script generation)
	OpenAIKey string

	// ElevenLabs (voiceover TTS)
	ElevenLabsKey string

	// Shotstack (final video compositing)
	ShotstackKey string
	ShotstackEnv string // "stage" or "v1"

	// ScraperAPI (listing page scraping)
	ScraperAPIKey string

	// Payments
	PaymentSecretKey     string
	PaymentWebhookSecret string

	// Worker
	MaxConcurrentJobs int
	StaleJobMaxAge    time.Duration // processing jobs older than this get force-failed
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:              getEnv("API_PORT", "8080"),
		WorkerEnabled:        getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:        getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379"),
		StorageURL:           getEnv("STORAGE_URL", ""),
		StorageServiceKey:    getEnv("STORAGE_SERVICE_KEY", ""),
		StorageBucket:        getEnv("STORAGE_BUCKET", "listing-videos"),
		ClipVendor:           getEnv("CLIP_VENDOR", "luma"),
		LumaKey:              getEnv("LUMA_API_KEY", ""),
		RunwayKey:            getEnv("RUNWAY_API_KEY", ""),
		GeminiKey:            getEnv("GEMINI_API_KEY", ""),
		VeoModel:             getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		OpenAIKey:            getEnv("OPENAI_API_KEY", ""),
		ElevenLabsKey:        getEnv("ELEVENLABS_API_KEY", ""),
		ShotstackKey:         getEnv("SHOTSTACK_API_KEY", ""),
		ShotstackEnv:         getEnv("SHOTSTACK_ENV", "stage"),
		ScraperAPIKey:        getEnv("SCRAPERAPI_KEY", ""),
		PaymentSecretKey:     getEnv("PAYMENT_SECRET_KEY", ""),
		PaymentWebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		MaxConcurrentJobs:    getEnvInt("MAX_CONCURRENT_JOBS", 5),
		StaleJobMaxAge:       getEnvDuration("STALE_JOB_MAX_AGE", 30*time.Minute),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.StorageURL == "" || cfg.StorageServiceKey == "" {
		return nil, fmt.Errorf("STORAGE_URL and STORAGE_SERVICE_KEY are required")
	}

	if cfg.ElevenLabsKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY is required for voiceover")
	}

	if cfg.ShotstackKey == "" {
		return nil, fmt.Errorf("SHOTSTACK_API_KEY is required for video compositing")
	}

	// The AI clip flow needs whichever vendor is selected; the motion flow
	// works with none of them configured.
	switch cfg.ClipVendor {
	case "luma", "runway", "veo":
	default:
		return nil, fmt.Errorf("CLIP_VENDOR must be one of luma, runway, veo (got %q)", cfg.ClipVendor)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
