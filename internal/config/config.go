package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Queue     QueueConfig
	Analysis  AnalysisConfig
	Groq      GroqConfig
	Media     MediaConfig
	Render    RenderConfig
	R2        R2Config
	Messenger MessengerConfig
}

type ServerConfig struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
}

type RateLimitConfig struct {
	WindowSeconds int
	MaxRequests   int
}

type QueueConfig struct {
	Concurrency int
	MaxRetry    int
}

// AnalysisConfig controls which extraction sub-tasks run and the media
// bounds enforced at acquisition time.
type AnalysisConfig struct {
	Mode            string // "audio", "frames" or "hybrid"
	MaxVideoMB      int
	MaxDurationSec  int
	FrameCount      int
	StyleContextMax int
}

type GroqConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	FallbackModels []string
	VisionModel    string
	TimeoutSec     int
}

type MediaConfig struct {
	ServiceURL           string
	DownloadTimeoutSec   int
	TranscribeTimeoutSec int
	FramesTimeoutSec     int
}

type RenderConfig struct {
	ServiceURL string
	TimeoutSec int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type MessengerConfig struct {
	APIKey       string
	BaseURL      string
	ImageFieldID string
	LinkFieldID  string
	TimeoutSec   int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("GROQ_API_KEY")
	readSecret("MESSENGER_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.public_base_url", "PUBLIC_BASE_URL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("auth.enabled", "AUTH_ENABLED")
	_ = viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("ratelimit.window_seconds", "RATELIMIT_WINDOW_SECONDS")
	_ = viper.BindEnv("ratelimit.max_requests", "RATELIMIT_MAX_REQUESTS")
	_ = viper.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY")
	_ = viper.BindEnv("queue.max_retry", "QUEUE_MAX_RETRY")
	_ = viper.BindEnv("analysis.mode", "ANALYSIS_MODE")
	_ = viper.BindEnv("analysis.max_video_mb", "ANALYSIS_MAX_VIDEO_MB")
	_ = viper.BindEnv("analysis.max_duration_sec", "ANALYSIS_MAX_DURATION_SEC")
	_ = viper.BindEnv("analysis.frame_count", "ANALYSIS_FRAME_COUNT")
	_ = viper.BindEnv("analysis.style_context_max", "ANALYSIS_STYLE_CONTEXT_MAX")
	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("groq.model", "GROQ_MODEL")
	_ = viper.BindEnv("groq.fallback_models", "GROQ_FALLBACK_MODELS")
	_ = viper.BindEnv("groq.vision_model", "GROQ_VISION_MODEL")
	_ = viper.BindEnv("groq.timeout", "GROQ_TIMEOUT")
	_ = viper.BindEnv("media.service_url", "MEDIA_SERVICE_URL")
	_ = viper.BindEnv("media.download_timeout", "MEDIA_DOWNLOAD_TIMEOUT")
	_ = viper.BindEnv("media.transcribe_timeout", "MEDIA_TRANSCRIBE_TIMEOUT")
	_ = viper.BindEnv("media.frames_timeout", "MEDIA_FRAMES_TIMEOUT")
	_ = viper.BindEnv("render.service_url", "RENDER_SERVICE_URL")
	_ = viper.BindEnv("render.timeout", "RENDER_TIMEOUT")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("messenger.api_key", "MESSENGER_API_KEY")
	_ = viper.BindEnv("messenger.base_url", "MESSENGER_BASE_URL")
	_ = viper.BindEnv("messenger.image_field_id", "MESSENGER_IMAGE_FIELD_ID")
	_ = viper.BindEnv("messenger.link_field_id", "MESSENGER_LINK_FIELD_ID")
	_ = viper.BindEnv("messenger.timeout", "MESSENGER_TIMEOUT")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.public_base_url", "http://localhost:8000")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.jwt_secret", "change-me-in-production")
	viper.SetDefault("ratelimit.window_seconds", 60)
	viper.SetDefault("ratelimit.max_requests", 5)
	viper.SetDefault("queue.concurrency", 4)
	viper.SetDefault("queue.max_retry", 3)
	viper.SetDefault("analysis.mode", "hybrid")
	viper.SetDefault("analysis.max_video_mb", 100)
	viper.SetDefault("analysis.max_duration_sec", 180)
	viper.SetDefault("analysis.frame_count", 4)
	viper.SetDefault("analysis.style_context_max", 3)

	// Groq defaults
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "llama-3.3-70b-versatile")
	viper.SetDefault("groq.fallback_models", []string{"llama-3.1-8b-instant"})
	viper.SetDefault("groq.vision_model", "llama-3.2-90b-vision-preview")
	viper.SetDefault("groq.timeout", 60)

	// Media toolbox defaults
	viper.SetDefault("media.service_url", "http://localhost:8084")
	viper.SetDefault("media.download_timeout", 60)
	viper.SetDefault("media.transcribe_timeout", 90)
	viper.SetDefault("media.frames_timeout", 30)

	// Render service defaults
	viper.SetDefault("render.service_url", "http://localhost:8085")
	viper.SetDefault("render.timeout", 30)

	// Messenger defaults
	viper.SetDefault("messenger.base_url", "https://api.manychat.com")
	viper.SetDefault("messenger.timeout", 15)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:          viper.GetString("server.port"),
			Env:           viper.GetString("server.env"),
			LogLevel:      viper.GetString("server.log_level"),
			PublicBaseURL: strings.TrimRight(viper.GetString("server.public_base_url"), "/"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			Enabled:   viper.GetBool("auth.enabled"),
			JWTSecret: viper.GetString("auth.jwt_secret"),
		},
		RateLimit: RateLimitConfig{
			WindowSeconds: viper.GetInt("ratelimit.window_seconds"),
			MaxRequests:   viper.GetInt("ratelimit.max_requests"),
		},
		Queue: QueueConfig{
			Concurrency: viper.GetInt("queue.concurrency"),
			MaxRetry:    viper.GetInt("queue.max_retry"),
		},
		Analysis: AnalysisConfig{
			Mode:            viper.GetString("analysis.mode"),
			MaxVideoMB:      viper.GetInt("analysis.max_video_mb"),
			MaxDurationSec:  viper.GetInt("analysis.max_duration_sec"),
			FrameCount:      viper.GetInt("analysis.frame_count"),
			StyleContextMax: viper.GetInt("analysis.style_context_max"),
		},
		Groq: GroqConfig{
			APIKey:         viper.GetString("groq.api_key"),
			BaseURL:        viper.GetString("groq.base_url"),
			Model:          viper.GetString("groq.model"),
			FallbackModels: viper.GetStringSlice("groq.fallback_models"),
			VisionModel:    viper.GetString("groq.vision_model"),
			TimeoutSec:     viper.GetInt("groq.timeout"),
		},
		Media: MediaConfig{
			ServiceURL:           viper.GetString("media.service_url"),
			DownloadTimeoutSec:   viper.GetInt("media.download_timeout"),
			TranscribeTimeoutSec: viper.GetInt("media.transcribe_timeout"),
			FramesTimeoutSec:     viper.GetInt("media.frames_timeout"),
		},
		Render: RenderConfig{
			ServiceURL: viper.GetString("render.service_url"),
			TimeoutSec: viper.GetInt("render.timeout"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Messenger: MessengerConfig{
			APIKey:       viper.GetString("messenger.api_key"),
			BaseURL:      viper.GetString("messenger.base_url"),
			ImageFieldID: viper.GetString("messenger.image_field_id"),
			LinkFieldID:  viper.GetString("messenger.link_field_id"),
			TimeoutSec:   viper.GetInt("messenger.timeout"),
		},
	}

	return cfg, nil
}
