package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"CryptoPulse/internal/model"
)

// Config holds all application configuration.
type Config struct {
	CoinGecko struct {
		BaseURL    string        `yaml:"base_url"`
		APIKey     string        `yaml:"api_key"`
		APIKeyType string        `yaml:"api_key_type"` // "demo" or "pro"
		VsCurrency string        `yaml:"vs_currency"`
		Timeout    time.Duration `yaml:"timeout"`
		// Source is "coingecko" or "mock"; mock serves generated data offline.
		Source     string        `yaml:"source"`
	} `yaml:"coingecko"`
	Sentiment struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"sentiment"`
	Coins struct {
		Tracked   []string            `yaml:"tracked"`
		Top       int                 `yaml:"top"`
		History   []model.HistoryCoin `yaml:"history"`
		Portfolio []string            `yaml:"portfolio"`
	} `yaml:"coins"`
	LookbackDays int `yaml:"lookback_days"`
	Retry        struct {
		MaxAttempts  int           `yaml:"max_attempts"`
		InitialDelay time.Duration `yaml:"initial_delay"`
		MaxDelay     time.Duration `yaml:"max_delay"`
		Multiplier   float64       `yaml:"multiplier"`
	} `yaml:"retry"`
	RateLimit struct {
		RequestsPerMinute int `yaml:"requests_per_minute"`
		Burst             int `yaml:"burst"`
	} `yaml:"rate_limit"`
	Output struct {
		Mode               string `yaml:"mode"` // "local" or "s3"
		Dir                string `yaml:"dir"`
		FileName           string `yaml:"file_name"`
		Parquet            bool   `yaml:"parquet"`
		ParquetCompression string `yaml:"parquet_compression"`
		Timezone           string `yaml:"timezone"`
		ReplaceCorrupt     bool   `yaml:"replace_corrupt"`
	} `yaml:"output"`
	S3 struct {
		Bucket          string `yaml:"bucket"`
		Prefix          string `yaml:"prefix"`
		Region          string `yaml:"region"`
		Endpoint        string `yaml:"endpoint"`
		PathStyle       bool   `yaml:"path_style"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
	} `yaml:"s3"`
	Schedule struct {
		Cron       string `yaml:"cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
		MaxAge int    `yaml:"max_age"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("COINGECKO_BASE_URL"); v != "" {
		c.CoinGecko.BaseURL = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		c.CoinGecko.APIKey = v
	}
	if v := os.Getenv("FNG_BASE_URL"); v != "" {
		c.Sentiment.BaseURL = v
	}
	if v := os.Getenv("TRACKED_COINS"); v != "" {
		c.Coins.Tracked = splitList(v)
	}
	if v := os.Getenv("LOOKBACK_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LookbackDays = n
		}
	}
	if v := os.Getenv("OUTPUT_MODE"); v != "" {
		c.Output.Mode = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.S3.Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.S3.Region = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("CRON_SCHEDULE"); v != "" {
		c.Schedule.Cron = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		c.Schedule.RunOnStart = v == "true"
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
}

func (c *Config) applyDefaults() {
	if c.CoinGecko.BaseURL == "" {
		c.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.CoinGecko.VsCurrency == "" {
		c.CoinGecko.VsCurrency = "usd"
	}
	if c.CoinGecko.Source == "" {
		c.CoinGecko.Source = "coingecko"
	}
	if c.CoinGecko.Timeout == 0 {
		c.CoinGecko.Timeout = 30 * time.Second
	}
	if c.Sentiment.BaseURL == "" {
		c.Sentiment.BaseURL = "https://api.alternative.me"
	}
	if len(c.Coins.Tracked) == 0 && c.Coins.Top == 0 {
		c.Coins.Top = 50
	}
	if c.Coins.History == nil {
		c.Coins.History = []model.HistoryCoin{
			{Symbol: "BTC", ID: "bitcoin"},
			{Symbol: "ETH", ID: "ethereum"},
			{Symbol: "BNB", ID: "binancecoin"},
			{Symbol: "SOL", ID: "solana"},
			{Symbol: "SUI", ID: "sui"},
		}
	}
	if c.Coins.Portfolio == nil {
		c.Coins.Portfolio = []string{"bitcoin", "ethereum", "solana", "binancecoin", "the-open-network"}
	}
	if c.LookbackDays == 0 {
		c.LookbackDays = 30
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = 5 * time.Second
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 90 * time.Second
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 12
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 1
	}
	if c.Output.Mode == "" {
		c.Output.Mode = "local"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "data"
	}
	if c.Output.FileName == "" {
		c.Output.FileName = "crypto_portfolio.xlsx"
	}
	if c.Output.ParquetCompression == "" {
		c.Output.ParquetCompression = "snappy"
	}
	if c.Output.Timezone == "" {
		c.Output.Timezone = "UTC"
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 0 */6 * * *"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks that required fields are set and values are in range.
func (c *Config) Validate() error {
	if len(c.Coins.Tracked) == 0 && c.Coins.Top <= 0 {
		return fmt.Errorf("coins.tracked must be non-empty or coins.top positive")
	}
	if c.Coins.Top > 250 {
		return fmt.Errorf("coins.top must be at most 250")
	}
	symbols := make(map[string]bool, len(c.Coins.History))
	for i, h := range c.Coins.History {
		if h.Symbol == "" || h.ID == "" {
			return fmt.Errorf("coins.history[%d] requires symbol and id", i)
		}
		key := strings.ToUpper(h.Symbol)
		if symbols[key] {
			return fmt.Errorf("coins.history: duplicate symbol %q", h.Symbol)
		}
		symbols[key] = true
	}
	if c.LookbackDays <= 0 {
		return fmt.Errorf("lookback_days must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must not be negative")
	}
	switch c.CoinGecko.Source {
	case "coingecko", "mock":
	default:
		return fmt.Errorf("coingecko.source must be coingecko or mock, got %q", c.CoinGecko.Source)
	}
	switch c.Output.ParquetCompression {
	case "snappy", "gzip", "none":
	default:
		return fmt.Errorf("output.parquet_compression must be snappy, gzip or none")
	}
	switch c.CoinGecko.APIKeyType {
	case "", "demo", "pro":
	default:
		return fmt.Errorf("coingecko.api_key_type must be demo or pro")
	}
	switch c.Output.Mode {
	case "local":
		if c.Output.Dir == "" {
			return fmt.Errorf("output.dir is required for local mode")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for s3 mode")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("s3.region is required for s3 mode")
		}
	default:
		return fmt.Errorf("output.mode must be local or s3, got %q", c.Output.Mode)
	}
	if !strings.HasSuffix(strings.ToLower(c.Output.FileName), ".xlsx") {
		return fmt.Errorf("output.file_name must end in .xlsx")
	}
	if _, err := time.LoadLocation(c.Output.Timezone); err != nil {
		return fmt.Errorf("output.timezone: %w", err)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// Location returns the configured report timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Output.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
