package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoPulse/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.CoinGecko.BaseURL)
	assert.Equal(t, "coingecko", cfg.CoinGecko.Source)
	assert.Equal(t, 50, cfg.Coins.Top)
	assert.Len(t, cfg.Coins.History, 5)
	assert.Equal(t, 30, cfg.LookbackDays)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, "local", cfg.Output.Mode)
	assert.Equal(t, "crypto_portfolio.xlsx", cfg.Output.FileName)
	assert.Equal(t, "snappy", cfg.Output.ParquetCompression)
	assert.Equal(t, "0 0 */6 * * *", cfg.Schedule.Cron)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
coingecko:
  vs_currency: eur
  timeout: 10s
coins:
  tracked: [bitcoin, ethereum]
  history:
    - { symbol: BTC, id: bitcoin }
lookback_days: 90
retry:
  initial_delay: 2s
output:
  mode: s3
  parquet: true
  timezone: Asia/Singapore
s3:
  bucket: reports
  region: ap-southeast-1
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "eur", cfg.CoinGecko.VsCurrency)
	assert.Equal(t, 10*time.Second, cfg.CoinGecko.Timeout)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, cfg.Coins.Tracked)
	assert.Zero(t, cfg.Coins.Top)
	assert.Equal(t, []model.HistoryCoin{{Symbol: "BTC", ID: "bitcoin"}}, cfg.Coins.History)
	assert.Equal(t, 90, cfg.LookbackDays)
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay)
	assert.True(t, cfg.Output.Parquet)
	assert.Equal(t, "Asia/Singapore", cfg.Location().String())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "coins: [unclosed"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COINGECKO_API_KEY", "secret")
	t.Setenv("TRACKED_COINS", "bitcoin, solana,,")
	t.Setenv("LOOKBACK_DAYS", "7")
	t.Setenv("OUTPUT_DIR", "/tmp/out")
	t.Setenv("RUN_ON_START", "true")

	cfg, err := Load(writeConfig(t, "lookback_days: 365\n"))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.CoinGecko.APIKey)
	assert.Equal(t, []string{"bitcoin", "solana"}, cfg.Coins.Tracked)
	assert.Equal(t, 7, cfg.LookbackDays)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.True(t, cfg.Schedule.RunOnStart)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"top too large", func(c *Config) { c.Coins.Top = 500 }, "coins.top"},
		{"history missing id", func(c *Config) { c.Coins.History = []model.HistoryCoin{{Symbol: "BTC"}} }, "symbol and id"},
		{"duplicate history symbol", func(c *Config) {
			c.Coins.History = []model.HistoryCoin{{Symbol: "BTC", ID: "bitcoin"}, {Symbol: "btc", ID: "bitcoin-cash"}}
		}, "duplicate symbol"},
		{"negative lookback", func(c *Config) { c.LookbackDays = -1 }, "lookback_days"},
		{"bad mode", func(c *Config) { c.Output.Mode = "ftp" }, "output.mode"},
		{"s3 without bucket", func(c *Config) { c.Output.Mode = "s3"; c.S3.Region = "eu-west-1" }, "s3.bucket"},
		{"not xlsx", func(c *Config) { c.Output.FileName = "report.csv" }, ".xlsx"},
		{"bad timezone", func(c *Config) { c.Output.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad source", func(c *Config) { c.CoinGecko.Source = "binance" }, "coingecko.source"},
		{"bad compression", func(c *Config) { c.Output.ParquetCompression = "lz4" }, "parquet_compression"},
		{"bad key type", func(c *Config) { c.CoinGecko.APIKeyType = "enterprise" }, "api_key_type"},
		{"telegram half set", func(c *Config) { c.Telegram.BotToken = "x" }, "telegram"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			require.NoError(t, cfg.Validate())
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
