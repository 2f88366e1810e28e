package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Transport sizing defaults, all calibrated against the one request
// ceiling. Base64-embedding inflates the video by ~33%, so the fallback
// ceiling is the largest file whose inflated body still fits the request
// ceiling (ceiling * 3/4). The inline threshold sits much lower: above it
// the staged path is preferred and embedding is reserved for the fallback.
const (
	DefaultRequestCeiling        int64 = 128 << 20 // 128 MiB, endpoint request-body limit
	DefaultInlineFallbackCeiling int64 = 96 << 20  // DefaultRequestCeiling * 3/4
	DefaultInlineThreshold       int64 = 20 << 20  // 20 MiB
	DefaultMaxUploadBytes        int64 = 2 << 30   // 2 GiB
)

type Config struct {
	// Server settings
	ServerPort   string        `json:"server_port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Debug        bool          `json:"debug"`

	// Application paths
	LogDir string `json:"log_dir"`

	// CORS Configuration
	CORS CORSConfig `json:"cors"`

	// Rate Limiting
	RateLimit RateLimitConfig `json:"rate_limit"`

	// Analysis pipeline configuration
	Analysis AnalysisConfig `json:"analysis"`

	// Application version
	Version string `json:"version"`

	// Request and shutdown timeouts
	RequestTimeout  time.Duration `json:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type CORSConfig struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute"`
	BurstSize         int  `json:"burst_size"`
}

// AnalysisConfig tunes the upload-strategy and inference pipeline.
type AnalysisConfig struct {
	// APIKey is the default credential used when a request does not carry
	// its own. May be empty; the pipeline then requires a per-request key.
	APIKey string `json:"-"`

	BaseURL string `json:"base_url"`
	Model   string `json:"model"`

	// ProcessTimeout bounds a single invocation end to end.
	ProcessTimeout time.Duration `json:"process_timeout"`

	// Staged-upload polling: fixed initial delay, fixed inter-poll delay,
	// and a hard cap on attempts so a stuck asset fails instead of hanging.
	PollInitialDelay time.Duration `json:"poll_initial_delay"`
	PollInterval     time.Duration `json:"poll_interval"`
	PollMaxAttempts  int           `json:"poll_max_attempts"`

	// Transport sizing. Files under InlineThreshold are embedded in the
	// request; larger files go through the staged upload path. A staged
	// upload that fails at the transport level may fall back to embedding
	// only while the file is under InlineFallbackCeiling, which must keep
	// the base64-inflated body within RequestCeiling. Files over
	// MaxUploadBytes are rejected before any network call.
	RequestCeiling        int64 `json:"request_ceiling"`
	InlineThreshold       int64 `json:"inline_threshold"`
	InlineFallbackCeiling int64 `json:"inline_fallback_ceiling"`
	MaxUploadBytes        int64 `json:"max_upload_bytes"`

	// JobTTL is how long finished jobs stay queryable in the registry.
	JobTTL time.Duration `json:"job_ttl"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Server settings
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		Debug:        getEnvAsBool("DEBUG", false),

		// Application paths
		LogDir: getEnv("LOG_DIR", "./logs"),

		// Application version
		Version: getEnv("VERSION", "1.0.0"),

		// Request and shutdown timeouts
		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 5*time.Minute),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		// CORS Configuration
		CORS: CORSConfig{
			Enabled:        getEnvAsBool("CORS_ENABLED", true),
			AllowedOrigins: getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsStringSlice(
				"CORS_ALLOWED_METHODS",
				[]string{"GET", "POST", "OPTIONS"},
			),
			AllowedHeaders:   getEnvAsStringSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type"}),
			ExposedHeaders:   getEnvAsStringSlice("CORS_EXPOSED_HEADERS", []string{}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 86400),
		},

		// Rate Limiting
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
			BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
		},

		// Analysis pipeline
		Analysis: AnalysisConfig{
			APIKey:           getEnv("GEMINI_API_KEY", ""),
			BaseURL:          getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Model:            getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			ProcessTimeout:   getEnvAsDuration("ANALYSIS_PROCESS_TIMEOUT", 10*time.Minute),
			PollInitialDelay: getEnvAsDuration("ANALYSIS_POLL_INITIAL_DELAY", 2*time.Second),
			PollInterval:     getEnvAsDuration("ANALYSIS_POLL_INTERVAL", 3*time.Second),
			PollMaxAttempts:  getEnvAsInt("ANALYSIS_POLL_MAX_ATTEMPTS", 60),

			RequestCeiling:        getEnvAsInt64("ANALYSIS_REQUEST_CEILING", DefaultRequestCeiling),
			InlineThreshold:       getEnvAsInt64("ANALYSIS_INLINE_THRESHOLD", DefaultInlineThreshold),
			InlineFallbackCeiling: getEnvAsInt64("ANALYSIS_INLINE_FALLBACK_CEILING", DefaultInlineFallbackCeiling),
			MaxUploadBytes:        getEnvAsInt64("ANALYSIS_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),

			JobTTL: getEnvAsDuration("ANALYSIS_JOB_TTL", 1*time.Hour),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	// Validate paths
	if err := os.MkdirAll(filepath.Clean(c.LogDir), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// Validate timeouts
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}

	return c.Analysis.Validate()
}

func (c *AnalysisConfig) Validate() error {
	if c.ProcessTimeout <= 0 {
		return fmt.Errorf("analysis process timeout must be positive")
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("poll max attempts must be positive")
	}
	if c.RequestCeiling <= 0 {
		return fmt.Errorf("request ceiling must be positive")
	}
	if c.InlineThreshold <= 0 {
		return fmt.Errorf("inline threshold must be positive")
	}
	if c.InlineFallbackCeiling < c.InlineThreshold {
		return fmt.Errorf("inline fallback ceiling must not be below the inline threshold")
	}
	// Base64 inflates by a third; an embedded fallback at the ceiling must
	// still fit within one request.
	if c.InlineFallbackCeiling+c.InlineFallbackCeiling/3 > c.RequestCeiling {
		return fmt.Errorf("inline fallback ceiling of %d bytes inflates past the request ceiling of %d bytes", c.InlineFallbackCeiling, c.RequestCeiling)
	}
	if c.MaxUploadBytes < c.InlineThreshold {
		return fmt.Errorf("max upload size must not be below the inline threshold")
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			return strings.Split(value, ",")
		}
	}
	return defaultValue
}
