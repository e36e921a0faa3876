// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/hylacviet-media/utils"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the media service
type Config struct {
	Server   ServerConfig   `json:"server"`
	Security SecurityConfig `json:"security"`
	JWT      JWTConfig      `json:"jwt"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics"`
	Cache    CacheConfig    `json:"cache"`
	Media    MediaConfig    `json:"media"`
}

type ServerConfig struct {
	Host              string        `json:"host" validate:"required"`
	Port              int           `json:"port" validate:"min=1,max=65535"`
	ReadTimeout       time.Duration `json:"read_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `json:"write_timeout" validate:"gt=0"`
	IdleTimeout       time.Duration `json:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" validate:"gt=0"`
	BodyLimit         int           `json:"body_limit" validate:"gt=0"`
	EnableCompression bool          `json:"enable_compression"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age" validate:"gte=0"`

	// Rate Limiting
	UploadRateLimit int           `json:"upload_rate_limit" validate:"gte=0"` // requests per window, 0 disables
	GlobalRateLimit int           `json:"global_rate_limit" validate:"gte=0"`
	RateLimitWindow time.Duration `json:"rate_limit_window" validate:"gt=0"`

	// Content Security
	XFrameOptions  string `json:"x_frame_options"`
	ReferrerPolicy string `json:"referrer_policy"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key" validate:"required,min=32"`
	AccessTokenTTL time.Duration `json:"access_token_ttl" validate:"gt=0"`
	Issuer         string        `json:"issuer"`   // checked only when set
	Audience       string        `json:"audience"` // checked only when set
}

type LoggingConfig struct {
	Level      string `json:"level" validate:"oneof=debug info warn error"`
	Format     string `json:"format" validate:"oneof=json text"`
	Output     string `json:"output" validate:"oneof=stdout file both"`
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
	AddSource  bool   `json:"add_source"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path" validate:"required_if=Enabled true"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	RedisURL    string        `json:"redis_url" validate:"required_if=Enabled true"`
	RedisDB     int           `json:"redis_db" validate:"gte=0"`
	RedisPrefix string        `json:"redis_prefix"`
	DialTimeout time.Duration `json:"dial_timeout"`
}

// MediaConfig controls the ingestion pipeline
type MediaConfig struct {
	StorageDir       string `json:"storage_dir" validate:"required"`
	PublicPrefix     string `json:"public_prefix" validate:"required,startswith=/"`
	MaxUploadBytes   int64  `json:"max_upload_bytes" validate:"gt=0"`
	MaxImageWidth    int    `json:"max_image_width" validate:"gt=0"`
	WebPQuality      int    `json:"webp_quality" validate:"min=1,max=100"`
	MaxPixels        int64  `json:"max_pixels" validate:"gt=0"`
	TranscodeWorkers int    `json:"transcode_workers" validate:"gt=0"`
	TranscodeQueue   int    `json:"transcode_queue" validate:"gte=0"`
}

// DefaultMediaConfig returns the pipeline defaults used when no environment overrides exist
func DefaultMediaConfig() MediaConfig {
	return MediaConfig{
		StorageDir:       utils.DefaultUploadDir,
		PublicPrefix:     utils.DefaultPublicPrefix,
		MaxUploadBytes:   utils.MaxUploadBytes,
		MaxImageWidth:    utils.MaxImageWidth,
		WebPQuality:      utils.WebPQuality,
		MaxPixels:        utils.MaxImagePixels,
		TranscodeWorkers: runtime.NumCPU(),
		TranscodeQueue:   utils.DefaultTranscodeQueueSize,
	}
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	media := DefaultMediaConfig()
	cfg := &Config{
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", utils.TransportBodyLimit),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", utils.CORSMaxAge),
			UploadRateLimit:  getEnvInt("UPLOAD_RATE_LIMIT", 60),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			XFrameOptions:    getEnvString("X_FRAME_OPTIONS", "DENY"),
			ReferrerPolicy:   getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", ""),
			Audience:       getEnvString("JWT_AUDIENCE", ""),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Format:     getEnvString("LOG_FORMAT", "json"),
			Output:     getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:   getEnvString("LOG_FILE_PATH", "/var/log/hylacviet/media.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
			AddSource:  getEnvBool("LOG_ENABLE_CALLER", false),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", false),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "hylacviet:media:"),
			DialTimeout: getEnvDuration("CACHE_DIAL_TIMEOUT", 5*time.Second),
		},
		Media: MediaConfig{
			StorageDir:       getEnvString("MEDIA_STORAGE_DIR", media.StorageDir),
			PublicPrefix:     getEnvString("MEDIA_PUBLIC_PREFIX", media.PublicPrefix),
			MaxUploadBytes:   getEnvInt64("MEDIA_MAX_UPLOAD_BYTES", media.MaxUploadBytes),
			MaxImageWidth:    getEnvInt("MEDIA_MAX_IMAGE_WIDTH", media.MaxImageWidth),
			WebPQuality:      getEnvInt("MEDIA_WEBP_QUALITY", media.WebPQuality),
			MaxPixels:        getEnvInt64("MEDIA_MAX_PIXELS", media.MaxPixels),
			TranscodeWorkers: getEnvInt("MEDIA_TRANSCODE_WORKERS", media.TranscodeWorkers),
			TranscodeQueue:   getEnvInt("MEDIA_TRANSCODE_QUEUE", media.TranscodeQueue),
		},
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from the given file if it exists.
// Variables already present in the process environment win.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateConfig runs struct tag validation and the cross-field checks tags cannot express.
// All problems are reported together.
func ValidateConfig(cfg *Config) error {
	problems, err := structProblems(cfg)
	if err != nil {
		return err
	}

	if cfg.Media.MaxUploadBytes > 0 && cfg.Server.BodyLimit > 0 && int64(cfg.Server.BodyLimit) < cfg.Media.MaxUploadBytes {
		problems = append(problems, "SERVER_BODY_LIMIT must not be smaller than MEDIA_MAX_UPLOAD_BYTES")
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.FilePath == "" {
		problems = append(problems, "LOG_FILE_PATH is required when LOG_OUTPUT writes to a file")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}

	return nil
}

// ValidateMediaConfig checks a media section assembled outside LoadConfig,
// e.g. from command line flags.
func ValidateMediaConfig(media MediaConfig) error {
	problems, err := structProblems(&media)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func structProblems(v any) ([]string, error) {
	err := validator.New().Struct(v)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return problems, nil
}
