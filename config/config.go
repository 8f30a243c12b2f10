package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "visual-measurement"
	EnvFileName = "config.env"
)

// DefaultModels is the fallback order of vision model variants.
var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-3-flash-preview"}

// Config holds all runtime settings. Every field has an environment variable.
type Config struct {
	GeminiAPIKey string   // GEMINI_API_KEY
	Models       []string // GEMINI_MODELS, comma separated

	ImageDelay      time.Duration // API_CALL_DELAY
	ProductDelay    time.Duration // PRODUCT_DELAY
	URLTimeout      time.Duration // URL_TIMEOUT
	GeminiTimeout   time.Duration // GEMINI_TIMEOUT
	DownloadTimeout time.Duration // DOWNLOAD_TIMEOUT

	MinConfidence  float64 // MIN_CONFIDENCE
	HighVariance   float64 // HIGH_VARIANCE
	MaxImages      int     // MAX_IMAGES
	MaxImageBytes  int64   // MAX_IMAGE_BYTES
	MaxConcurrency int     // MAX_CONCURRENT_VALIDATIONS

	RequireImageHint        bool // REQUIRE_IMAGE_HINT
	AllowMissingContentType bool // ALLOW_MISSING_CONTENT_TYPE

	HTTPAddr        string // HTTP_ADDR
	BotToken        string // BOT_TOKEN
	AdminTelegramID int64  // ADMIN_TELEGRAM_ID
	DBPath          string // MEASURE_DB_PATH
}

// Default returns the configuration used when no environment is set.
func Default() Config {
	return Config{
		Models:          append([]string(nil), DefaultModels...),
		ImageDelay:      500 * time.Millisecond,
		ProductDelay:    time.Second,
		URLTimeout:      3 * time.Second,
		GeminiTimeout:   30 * time.Second,
		DownloadTimeout: 30 * time.Second,
		MinConfidence:   0.5,
		HighVariance:    1.5,
		MaxImages:       5,
		MaxImageBytes:   10 * 1024 * 1024,
		MaxConcurrency:  1,
		HTTPAddr:        ":8000",
		DBPath:          "measure.db",
	}
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory and from .env in the working directory. Errors are ignored
// since the files may not exist.
func LoadEnvFile() {
	if configBase, err := os.UserConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
	}
	_ = godotenv.Load()
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()
	var errs []error

	cfg.GeminiAPIKey = strings.TrimSpace(getenv("GEMINI_API_KEY"))
	if v := getenv("GEMINI_MODELS"); v != "" {
		cfg.Models = splitList(v)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"API_CALL_DELAY", &cfg.ImageDelay},
		{"PRODUCT_DELAY", &cfg.ProductDelay},
		{"URL_TIMEOUT", &cfg.URLTimeout},
		{"GEMINI_TIMEOUT", &cfg.GeminiTimeout},
		{"DOWNLOAD_TIMEOUT", &cfg.DownloadTimeout},
	}
	for _, d := range durations {
		if v := getenv(d.key); v != "" {
			parsed, err := ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", d.key, err))
				continue
			}
			*d.dst = parsed
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"MIN_CONFIDENCE", &cfg.MinConfidence},
		{"HIGH_VARIANCE", &cfg.HighVariance},
	}
	for _, f := range floats {
		if v := getenv(f.key); v != "" {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", f.key, err))
				continue
			}
			*f.dst = parsed
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_IMAGES", &cfg.MaxImages},
		{"MAX_CONCURRENT_VALIDATIONS", &cfg.MaxConcurrency},
	}
	for _, i := range ints {
		if v := getenv(i.key); v != "" {
			parsed, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", i.key, err))
				continue
			}
			*i.dst = parsed
		}
	}

	if v := getenv("MAX_IMAGE_BYTES"); v != "" {
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_IMAGE_BYTES: %w", err))
		} else {
			cfg.MaxImageBytes = parsed
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"REQUIRE_IMAGE_HINT", &cfg.RequireImageHint},
		{"ALLOW_MISSING_CONTENT_TYPE", &cfg.AllowMissingContentType},
	}
	for _, b := range bools {
		if v := getenv(b.key); v != "" {
			parsed, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", b.key, err))
				continue
			}
			*b.dst = parsed
		}
	}

	if v := getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := getenv("MEASURE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	cfg.BotToken = strings.TrimSpace(getenv("BOT_TOKEN"))
	if v := getenv("ADMIN_TELEGRAM_ID"); v != "" {
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_TELEGRAM_ID must be a valid integer: %w", err))
		} else {
			cfg.AdminTelegramID = parsed
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that the pipeline cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is not set"))
	}
	if len(c.Models) == 0 {
		errs = append(errs, errors.New("GEMINI_MODELS must list at least one model"))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("MIN_CONFIDENCE must be within [0, 1], got %v", c.MinConfidence))
	}
	if c.HighVariance <= 0 {
		errs = append(errs, fmt.Errorf("HIGH_VARIANCE must be positive, got %v", c.HighVariance))
	}
	if c.MaxImages < 1 {
		errs = append(errs, fmt.Errorf("MAX_IMAGES must be at least 1, got %d", c.MaxImages))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_VALIDATIONS must be at least 1, got %d", c.MaxConcurrency))
	}
	if c.URLTimeout <= 0 || c.GeminiTimeout <= 0 {
		errs = append(errs, errors.New("URL_TIMEOUT and GEMINI_TIMEOUT must be positive"))
	}
	if c.BotToken != "" && c.AdminTelegramID == 0 {
		errs = append(errs, errors.New("ADMIN_TELEGRAM_ID is required when BOT_TOKEN is set"))
	}
	return errors.Join(errs...)
}

// ParseDuration accepts Go duration syntax ("500ms") or a bare number of
// seconds ("1.5").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
