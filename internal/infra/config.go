package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	StoragePath      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	ShutdownTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
	MaxUploadBytes   int64

	ReplicateAPIToken   string
	ReplicateBaseURL    string
	ReplicateVideoModel string
	ReplicateTextModel  string
	ProviderTimeout     time.Duration
	DownloadTimeout     time.Duration
	SegmentDurations    []int

	PromptProvider string
	GeminiAPIKey   string
	GeminiModel    string
	GeminiBaseURL  string
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	OpenAIOrg      string

	FFmpegPath  string
	FFprobePath string

	PreviewSegmentSeconds int
	PreviewLengthSeconds  float64
	PreviewFPS            int
	PreviewWidth          int
	FullSegmentSeconds    int
	FullFPS               int
	FullWidth             int
	CrossfadeSeconds      float64

	MaxConcurrentJobs int
	MaxQueuedJobs     int

	PaymentEnforced bool
	StripeSecretKey string
	StripeBaseURL   string

	ObjectStorageEndpoint  string
	ObjectStorageAccessKey string
	ObjectStorageSecretKey string
	ObjectStorageBucket    string
	ObjectStorageRegion    string
	ObjectStorageUseSSL    bool
	ObjectStoragePublicURL string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8000"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		ShutdownTimeout:  time.Second * time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 30)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_MB", 15)) << 20,

		ReplicateAPIToken:   strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:    getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateVideoModel: getEnv("REPLICATE_MODEL_VIDEO", "bytedance/seedance-1-lite"),
		ReplicateTextModel:  getEnv("REPLICATE_MODEL_TEXT", "deepseek-ai/deepseek-r1"),
		ProviderTimeout:     time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 600)),
		DownloadTimeout:     time.Second * time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_SECONDS", 180)),
		SegmentDurations:    getEnvIntList("REPLICATE_SEGMENT_DURATIONS"),

		PromptProvider: getEnv("PROMPT_PROVIDER", "replicate"),
		GeminiAPIKey:   strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL:  getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OpenAIAPIKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:      strings.TrimSpace(os.Getenv("OPENAI_ORG")),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		PreviewSegmentSeconds: getEnvInt("PREVIEW_SEGMENT_SECONDS", 5),
		PreviewLengthSeconds:  getEnvFloat("PREVIEW_LENGTH_SECONDS", 4),
		PreviewFPS:            getEnvInt("PREVIEW_FPS", 24),
		PreviewWidth:          getEnvInt("PREVIEW_WIDTH", 480),
		FullSegmentSeconds:    getEnvInt("FULL_SEGMENT_SECONDS", 5),
		FullFPS:               getEnvInt("FULL_FPS", 24),
		FullWidth:             getEnvInt("FULL_WIDTH", 720),
		CrossfadeSeconds:      getEnvFloat("CROSSFADE_SECONDS", 1.0),

		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 4),
		MaxQueuedJobs:     getEnvInt("MAX_QUEUED_JOBS", 16),

		PaymentEnforced: getEnvBool("PAYMENT_ENFORCED", false),
		StripeSecretKey: strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		StripeBaseURL:   getEnv("STRIPE_BASE_URL", "https://api.stripe.com/v1"),

		ObjectStorageEndpoint:  os.Getenv("OBJECT_STORAGE_ENDPOINT"),
		ObjectStorageAccessKey: os.Getenv("OBJECT_STORAGE_ACCESS_KEY"),
		ObjectStorageSecretKey: os.Getenv("OBJECT_STORAGE_SECRET_KEY"),
		ObjectStorageBucket:    getEnv("OBJECT_STORAGE_BUCKET", "manifest-videos"),
		ObjectStorageRegion:    os.Getenv("OBJECT_STORAGE_REGION"),
		ObjectStorageUseSSL:    getEnvBool("OBJECT_STORAGE_USE_SSL", true),
		ObjectStoragePublicURL: os.Getenv("OBJECT_STORAGE_PUBLIC_URL"),
	}

	if cfg.CrossfadeSeconds < 0 {
		return nil, fmt.Errorf("CROSSFADE_SECONDS must not be negative")
	}
	if cfg.CrossfadeSeconds >= float64(cfg.FullSegmentSeconds) {
		return nil, fmt.Errorf("CROSSFADE_SECONDS (%.2f) must be shorter than FULL_SEGMENT_SECONDS (%d)", cfg.CrossfadeSeconds, cfg.FullSegmentSeconds)
	}
	if cfg.PreviewLengthSeconds <= 0 {
		return nil, fmt.Errorf("PREVIEW_LENGTH_SECONDS must be positive")
	}
	if cfg.MaxConcurrentJobs < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}
	if cfg.MaxQueuedJobs < 0 {
		return nil, fmt.Errorf("MAX_QUEUED_JOBS must not be negative")
	}
	switch cfg.PromptProvider = strings.ToLower(strings.TrimSpace(cfg.PromptProvider)); cfg.PromptProvider {
	case "replicate", "gemini", "openai", "static":
	default:
		return nil, fmt.Errorf("PROMPT_PROVIDER %q is not one of replicate, gemini, openai, static", cfg.PromptProvider)
	}
	if cfg.PaymentEnforced && cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required when PAYMENT_ENFORCED is set")
	}

	return cfg, nil
}

// ObjectStorageEnabled reports whether finished artifacts should be published.
func (c *Config) ObjectStorageEnabled() bool {
	return c.ObjectStorageEndpoint != "" && c.ObjectStorageAccessKey != "" && c.ObjectStorageSecretKey != ""
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

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvIntList(key string) []int {
	var out []int
	for _, part := range getEnvList(key, nil) {
		if i, err := strconv.Atoi(part); err == nil && i > 0 {
			out = append(out, i)
		}
	}
	return out
}
