package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

type Config struct {
	Port string

	VisionProvider string
	GeminiAPIKey   string
	GeminiModel    string
	OllamaURL      string
	OllamaModel    string
	PromptFile     string

	DatabaseURL string
	StaticDir   string
	CORSOrigins []string

	HistoryLimit   int
	MaxUploadBytes int64
	ImageMaxSide   int
	ModelTimeout   time.Duration
	DetectCacheTTL time.Duration

	TelegramBotToken string

	Archive ArchiveConfig

	LogLevel  string
	LogFormat string
	LogFile   string
}

type ArchiveConfig struct {
	Bucket        string
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

func (a ArchiveConfig) Enabled() bool { return strings.TrimSpace(a.Bucket) != "" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8000")
	v.SetDefault("VISION_PROVIDER", ProviderGemini)
	v.SetDefault("GEMINI_MODEL", "gemini-3-pro-preview")
	v.SetDefault("OLLAMA_URL", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "llava")
	v.SetDefault("DATABASE_URL", "products.db")
	v.SetDefault("STATIC_DIR", "frontend")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("HISTORY_LIMIT", 50)
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("IMAGE_MAX_SIDE", 2048)
	v.SetDefault("MODEL_TIMEOUT", "0s")
	v.SetDefault("DETECT_CACHE_TTL", "0s")
	v.SetDefault("ARCHIVE_REGION", "auto")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads configuration from the process environment, a .env file in the
// working directory (if any) and, when file is not empty, a config file in
// any format viper understands. Environment wins over the file.
func Load(file string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	modelTimeout, err := duration(v, "MODEL_TIMEOUT")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := duration(v, "DETECT_CACHE_TTL")
	if err != nil {
		return nil, err
	}

	return &Config{
		Port: strings.TrimSpace(v.GetString("PORT")),

		VisionProvider: strings.ToLower(strings.TrimSpace(v.GetString("VISION_PROVIDER"))),
		GeminiAPIKey:   strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
		GeminiModel:    strings.TrimSpace(v.GetString("GEMINI_MODEL")),
		OllamaURL:      strings.TrimSpace(v.GetString("OLLAMA_URL")),
		OllamaModel:    strings.TrimSpace(v.GetString("OLLAMA_MODEL")),
		PromptFile:     strings.TrimSpace(v.GetString("DETECTION_PROMPT_FILE")),

		DatabaseURL: strings.TrimSpace(v.GetString("DATABASE_URL")),
		StaticDir:   strings.TrimSpace(v.GetString("STATIC_DIR")),
		CORSOrigins: splitList(v.GetString("CORS_ALLOW_ORIGINS")),

		HistoryLimit:   v.GetInt("HISTORY_LIMIT"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_MB") << 20,
		ImageMaxSide:   v.GetInt("IMAGE_MAX_SIDE"),
		ModelTimeout:   modelTimeout,
		DetectCacheTTL: cacheTTL,

		TelegramBotToken: strings.TrimSpace(v.GetString("TELEGRAM_BOT_TOKEN")),

		Archive: ArchiveConfig{
			Bucket:        strings.TrimSpace(v.GetString("ARCHIVE_BUCKET")),
			Endpoint:      strings.TrimSpace(v.GetString("ARCHIVE_ENDPOINT")),
			Region:        strings.TrimSpace(v.GetString("ARCHIVE_REGION")),
			AccessKey:     strings.TrimSpace(v.GetString("ARCHIVE_ACCESS_KEY")),
			SecretKey:     strings.TrimSpace(v.GetString("ARCHIVE_SECRET_KEY")),
			PublicBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("ARCHIVE_PUBLIC_BASE_URL")), "/"),
		},

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
		LogFile:   strings.TrimSpace(v.GetString("LOG_FILE")),
	}, nil
}

// Validate checks the settings needed to serve detections. The model
// credential is required for the gemini provider: startup must fail without it.
func (c *Config) Validate() error {
	var errs []error
	switch c.VisionProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY not set"))
		}
		if c.GeminiModel == "" {
			errs = append(errs, errors.New("GEMINI_MODEL is empty"))
		}
	case ProviderOllama:
		if c.OllamaURL == "" || c.OllamaModel == "" {
			errs = append(errs, errors.New("OLLAMA_URL and OLLAMA_MODEL are required for the ollama provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown VISION_PROVIDER %q (want gemini or ollama)", c.VisionProvider))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("HISTORY_LIMIT must be > 0, got %d", c.HistoryLimit))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be > 0"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is empty"))
	}
	if c.Archive.Enabled() && c.Archive.PublicBaseURL == "" && c.Archive.Endpoint == "" {
		errs = append(errs, errors.New("ARCHIVE_PUBLIC_BASE_URL or ARCHIVE_ENDPOINT is required when ARCHIVE_BUCKET is set"))
	}
	return errors.Join(errs...)
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
