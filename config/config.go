package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"sjsage522/pricetracker/internal/extractor"
	"sjsage522/pricetracker/internal/price"
	apperrors "sjsage522/pricetracker/pkg/errors"
	"sjsage522/pricetracker/services/notifier"
	"sjsage522/pricetracker/services/tracker"
)

// Config represents the application configuration
type Config struct {
	// Product configuration
	ProductURL  string
	TargetPrice decimal.Decimal
	Currency    string

	// Tracking loop configuration
	CheckInterval  time.Duration
	FailureCeiling int
	FetchTimeout   time.Duration
	HistorySize    int
	LogTailSize    int

	// Telegram configuration
	TelegramToken  string
	TelegramChatID string
	TelegramAPIURL string

	// Extractor configuration
	UseBrowser bool
	ChromePath string
	UserAgent  string

	// Redis configuration, empty address disables event publishing
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Memcache configuration, empty address disables rate limit blocking
	MemcacheAddr   string
	RateLimitBlock time.Duration

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		ProductURL:           getEnv("PRODUCT_URL", ""),
		TargetPrice:          p.decimalVar("TARGET_PRICE"),
		Currency:             getEnv("CURRENCY", "EGP"),
		CheckInterval:        p.secondsVar("CHECK_INTERVAL_SECONDS", tracker.DefaultInterval),
		FailureCeiling:       p.intVar("FAILURE_CEILING", tracker.DefaultFailureCeiling),
		FetchTimeout:         p.secondsVar("FETCH_TIMEOUT_SECONDS", tracker.DefaultFetchTimeout),
		HistorySize:          p.intVar("HISTORY_SIZE", price.DefaultHistorySize),
		LogTailSize:          p.intVar("LOG_TAIL_SIZE", tracker.DefaultLogTailSize),
		TelegramToken:        getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID:       getEnv("TELEGRAM_CHAT_ID", ""),
		TelegramAPIURL:       getEnv("TELEGRAM_API_URL", ""),
		UseBrowser:           p.boolVar("USE_BROWSER", true),
		ChromePath:           getEnv("CHROME_PATH", ""),
		UserAgent:            getEnv("USER_AGENT", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              p.intVar("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "pricetracker:events"),
		RedisStreamMaxLength: p.intVar("REDIS_STREAM_MAX_LENGTH", 1000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RateLimitBlock:       p.secondsVar("RATE_LIMIT_BLOCK_SECONDS", 10*time.Minute),
		Environment:          getEnv("TRACKER_ENVIRONMENT", "development"),
	}
	if len(p.errs) > 0 {
		return nil, apperrors.NewConfiguration(strings.Join(p.errs, "; "), nil)
	}
	return cfg, nil
}

// Validate checks that the configuration can start a run
func (c *Config) Validate() error {
	if c.ProductURL == "" {
		return apperrors.NewConfiguration("PRODUCT_URL is required", nil)
	}
	if err := c.Settings().Validate(); err != nil {
		return apperrors.NewConfiguration("invalid tracker settings", err)
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == "") {
		return apperrors.NewConfiguration("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID must be set together", nil)
	}
	if c.TelegramChatID != "" {
		if _, err := strconv.ParseInt(c.TelegramChatID, 10, 64); err != nil {
			return apperrors.NewConfiguration("TELEGRAM_CHAT_ID must be numeric", err)
		}
	}
	if c.RedisAddr != "" && c.RedisStream == "" {
		return apperrors.NewConfiguration("REDIS_STREAM must not be empty", nil)
	}
	return nil
}

// Settings projects the tracking loop settings
func (c *Config) Settings() tracker.Settings {
	return tracker.Settings{
		URL:            c.ProductURL,
		TargetPrice:    c.TargetPrice,
		Currency:       c.Currency,
		Interval:       c.CheckInterval,
		FailureCeiling: c.FailureCeiling,
		FetchTimeout:   c.FetchTimeout,
		HistorySize:    c.HistorySize,
		LogTailSize:    c.LogTailSize,
	}
}

// ExtractorOptions projects the extractor options
func (c *Config) ExtractorOptions() extractor.Options {
	opts := extractor.DefaultOptions()
	opts.UseBrowser = c.UseBrowser
	opts.ChromePath = c.ChromePath
	opts.UserAgent = c.UserAgent
	if c.RateLimitBlock > 0 {
		opts.BlockTime = c.RateLimitBlock
	}
	return opts
}

// Telegram projects the notifier configuration
func (c *Config) Telegram() notifier.TelegramConfig {
	return notifier.TelegramConfig{
		Token:  c.TelegramToken,
		ChatID: c.TelegramChatID,
		APIURL: c.TelegramAPIURL,
	}
}

// Save writes the configuration as a dotenv file that LoadConfig reads back
func Save(c *Config, path string) error {
	values := map[string]string{
		"PRODUCT_URL":              c.ProductURL,
		"TARGET_PRICE":             c.TargetPrice.String(),
		"CURRENCY":                 c.Currency,
		"CHECK_INTERVAL_SECONDS":   strconv.Itoa(int(c.CheckInterval / time.Second)),
		"FAILURE_CEILING":          strconv.Itoa(c.FailureCeiling),
		"FETCH_TIMEOUT_SECONDS":    strconv.Itoa(int(c.FetchTimeout / time.Second)),
		"HISTORY_SIZE":             strconv.Itoa(c.HistorySize),
		"LOG_TAIL_SIZE":            strconv.Itoa(c.LogTailSize),
		"TELEGRAM_TOKEN":           c.TelegramToken,
		"TELEGRAM_CHAT_ID":         c.TelegramChatID,
		"TELEGRAM_API_URL":         c.TelegramAPIURL,
		"USE_BROWSER":              strconv.FormatBool(c.UseBrowser),
		"CHROME_PATH":              c.ChromePath,
		"USER_AGENT":               c.UserAgent,
		"REDIS_ADDR":               c.RedisAddr,
		"REDIS_DB":                 strconv.Itoa(c.RedisDB),
		"REDIS_STREAM":             c.RedisStream,
		"REDIS_STREAM_MAX_LENGTH":  strconv.Itoa(c.RedisStreamMaxLength),
		"MEMCACHE_ADDR":            c.MemcacheAddr,
		"RATE_LIMIT_BLOCK_SECONDS": strconv.Itoa(int(c.RateLimitBlock / time.Second)),
		"TRACKER_ENVIRONMENT":      c.Environment,
	}
	if err := godotenv.Write(values, path); err != nil {
		return apperrors.NewConfiguration("failed to save config to "+path, err)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parser collects every malformed variable instead of stopping at the first
type parser struct {
	errs []string
}

func (p *parser) fail(key, value string) {
	p.errs = append(p.errs, fmt.Sprintf("%s has invalid value %q", key, value))
}

func (p *parser) intVar(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value)
		return defaultValue
	}
	return n
}

func (p *parser) secondsVar(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n > maxSeconds || n < -maxSeconds {
		p.fail(key, value)
		return defaultValue
	}
	return time.Duration(n) * time.Second
}

// maxSeconds is the largest whole-second count a time.Duration can hold
const maxSeconds = math.MaxInt64 / int64(time.Second)

func (p *parser) boolVar(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value)
		return defaultValue
	}
	return b
}

func (p *parser) decimalVar(key string) decimal.Decimal {
	value := getEnv(key, "")
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		p.fail(key, value)
		return decimal.Zero
	}
	return d
}
